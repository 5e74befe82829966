// Package audit records the append-only trail of security-relevant actions.
//
// Every mutating operation appends one Entry after its primary attempt,
// carrying the outcome (success, failure or denied). Entries flow through a
// Recorder into a Logger sink:
//
//	sink := audit.NewMultiLogger(dbLogger, fileLogger)
//	recorder := audit.NewRecorder(sink, logger, metrics)
//	recorder.Record(ctx, audit.Entry{
//		ActorID:    audit.Int64(actor.ID),
//		Action:     audit.ActionDelete,
//		Resource:   audit.ResourceProject,
//		ResourceID: audit.Int64(projectID),
//		Detail:     "Deleted project: Example",
//	})
//
// Record is best-effort: a failed append is logged and counted but never
// returned, so auditing cannot undo or block the primary mutation.
//
// OriginMiddleware stores the client address and user agent in the request
// context; the Recorder copies them onto each entry.
package audit
