// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, project)
//	httputil.WriteCreated(w, identity)
//	httputil.WriteNoContent(w)
//
// Service errors are mapped onto status codes in one place:
//
//	if err := svc.DeleteProject(ctx, actor, id); err != nil {
//		httputil.WriteServiceError(w, r, err)
//		return
//	}
//
// apperr.ErrNotFound becomes 404 and apperr.ErrAccessDenied 403; they are
// never conflated. Anything unclassified is logged and answered with a
// generic 500 body.
//
// # Request Parsing
//
//	var req CreateProjectRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(16<<20),
//	)
package httputil
