// Package projects is the project registry.
//
// A project is a named audit target with a URL the scanner is pointed at.
// Reads go through the rbac gate; deletion and membership changes are
// administrator-only. Every mutation, and every denied attempt at one, is
// recorded in the audit trail.
//
// Deleting a project removes its scans, reports and memberships in a single
// transaction, so a failure part way leaves the project untouched.
//
//	svc := projects.NewService(db, gate, recorder, logger)
//
//	project, err := svc.CreateProject(ctx, actor, projects.NewProject{
//		Name: "Customer portal",
//		URL:  "https://portal.example.com",
//	})
package projects
