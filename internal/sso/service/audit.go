package service

import (
	"context"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/internal/sso/store"
	"github.com/mercuryedu/mercury-sso/pkg/idx"
	"github.com/mercuryedu/mercury-sso/pkg/slogx"
)

// recordAudit appends one write-ahead log line for a session. Audit writes
// never fail the flow; a storage error is logged and swallowed so the
// protocol step it describes can still complete or propagate its own error.
func recordAudit(ctx context.Context, st store.Store, sessionID, event, message string, sensitive bool) {
	e := domain.AuditEvent{
		ID:        idx.New().String(),
		SessionID: sessionID,
		Event:     event,
		Message:   message,
		Sensitive: sensitive,
	}
	if err := st.AuditEvents().CreateAuditEvent(ctx, e); err != nil {
		slogx.FromContext(ctx).Error("audit write failed",
			"session_id", sessionID, "event", event, "error", err)
	}
}
