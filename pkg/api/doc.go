// Package api provides the HTTP JSON API of warden.
//
// # Overview
//
// All routes live under /api/v1 on a gorilla/mux router. Every route except
// POST /auth/login requires an "Authorization: Bearer <token>" header
// carrying a session token issued by login.
//
// Handlers are thin: they decode the request, call the owning service with
// the authenticated identity and map the returned error onto a status code
// with httputil.WriteServiceError. Access decisions and audit entries are
// made by the services, never here.
//
// # Routes
//
//	POST   /auth/login                  open a session (rate limited per client)
//	POST   /auth/logout                 revoke the current session
//	GET    /auth/me                     current identity
//	PUT    /auth/password               change own password
//	GET    /users                       list identities (administrator)
//	POST   /users                       create identity (administrator)
//	PUT    /users/{id}/password         reset password
//	PUT    /users/{id}/active           activate or deactivate
//	GET    /projects                    visible projects
//	POST   /projects                    create project
//	GET    /projects/{id}               project with latest scan, report and stats
//	DELETE /projects/{id}               delete project and its archive
//	PUT    /projects/{id}/status        change status
//	GET    /projects/{id}/members       list members
//	POST   /projects/{id}/members       grant access
//	DELETE /projects/{id}/members/{uid} revoke access
//	GET    /projects/{id}/scans         scan history
//	POST   /projects/{id}/scans         run the scanner now
//	GET    /projects/{id}/scans/latest  newest scan or null
//	GET    /projects/{id}/reports       report history
//	POST   /projects/{id}/reports       multipart upload (report_file, report_date)
//	GET    /projects/{id}/reports/latest newest report or null
//	GET    /projects/{id}/stats         latest vulnerability summary
//	GET    /stats                       dashboard
//	GET    /audit                       audit trail (administrator, ?format=csv)
//
// # Status codes
//
//	400 invalid input or malformed payload
//	401 missing session or bad credentials
//	403 access denied
//	404 unknown project or user
//	409 duplicate username or email
//	413 upload too large
//	429 too many login attempts
//	502 scanner failed or produced no output
//	504 scanner timed out
package api
