package auth

import (
	"context"
	"errors"
	"time"

	"github.com/intellium/patentguard/pkg/observability"
)

// AuditEvent describes one security-relevant auth outcome
type AuditEvent struct {
	Action    string
	Status    string
	UserID    int64
	Email     string
	Reason    string
	Err       error
	CreatedAt time.Time
}

// AuditLogger writes auth events to the structured log and counts them
type AuditLogger struct {
	metrics *observability.Metrics
	now     func() time.Time
}

// NewAuditLogger creates a new audit logger. metrics may be nil.
func NewAuditLogger(metrics *observability.Metrics) *AuditLogger {
	return &AuditLogger{metrics: metrics, now: time.Now}
}

// LogAction records an audit event. Failures are logged at warn level,
// store outages at error level.
func (al *AuditLogger) LogAction(ctx context.Context, ev *AuditEvent) error {
	if ev.Action == "" {
		return errors.New("action is required")
	}
	if ev.Status == "" {
		return errors.New("status is required")
	}
	if al == nil {
		return nil
	}

	ev.CreatedAt = al.now().UTC()
	al.metrics.RecordAuthEvent(ev.Action, ev.Status)

	fields := map[string]interface{}{
		"audit":  true,
		"action": ev.Action,
		"status": ev.Status,
	}
	if ev.UserID != 0 {
		fields["subject_id"] = ev.UserID
	}
	if ev.Email != "" {
		fields["email"] = ev.Email
	}
	if ev.Reason != "" {
		fields["reason"] = ev.Reason
	}
	logger := observability.FromContext(ctx).WithFields(fields).WithError(ev.Err)

	switch {
	case ev.Status == StatusError:
		logger.Error("Auth event")
	case ev.Status == StatusSuccess:
		logger.Info("Auth event")
	default:
		logger.Warn("Auth event")
	}
	return nil
}

// Audit actions
const (
	ActionRegister  = "auth.register"
	ActionLogin     = "auth.login"
	ActionRefresh   = "auth.refresh"
	ActionResolve   = "auth.resolve"
	ActionBootstrap = "auth.bootstrap"
	ActionLookup    = "auth.lookup"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
	StatusError   = "error"
)
