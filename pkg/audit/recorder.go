package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/observability"
)

// Recorder is the best-effort boundary in front of an audit sink. Record never
// fails the caller: append errors are logged, counted and dropped.
type Recorder struct {
	sink    Logger
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewRecorder wraps sink. metrics may be nil.
func NewRecorder(sink Logger, logger *observability.Logger, metrics *observability.Metrics) *Recorder {
	if sink == nil {
		sink = NopLogger{}
	}
	return &Recorder{
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Record appends entry after filling its timestamp, default outcome and
// request origin, and bounding its text fields to the column limits. It runs detached from ctx cancellation so an audited
// mutation is not left unrecorded when the client disconnects.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeSuccess
	}
	if origin, ok := OriginFromContext(ctx); ok {
		if entry.IPAddress == "" {
			entry.IPAddress = origin.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = origin.UserAgent
		}
	}

	sanitize(&entry)

	defer observability.RecoverPanicWithCallback(r.logger, "audit append", func(err error) {
		r.fail(&entry, err)
	})

	if err := r.sink.Log(context.WithoutCancel(ctx), &entry); err != nil {
		r.fail(&entry, err)
		return
	}

	if r.metrics != nil {
		r.metrics.AuditEntriesTotal.WithLabelValues(string(entry.Action), string(entry.Outcome)).Inc()
	}
}

func (r *Recorder) fail(entry *Entry, cause error) {
	err := fmt.Errorf("%w: %v", apperr.ErrAuditAppendFailed, cause)

	r.logger.WithError(err).WithFields(map[string]interface{}{
		"action":   string(entry.Action),
		"resource": string(entry.Resource),
		"outcome":  string(entry.Outcome),
	}).Error("Failed to append audit entry")

	if r.metrics != nil {
		r.metrics.AuditFailuresTotal.Inc()
	}
}
