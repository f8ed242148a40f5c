package logger

import (
	"context"
	"log/slog"
	"time"
)

// Gate audit event types
const (
	EventGateGranted   = "gate_granted"
	EventGateRejected  = "gate_rejected"
	EventGateLockedOut = "gate_locked_out"
	EventGateBlocked   = "gate_blocked_submit"
)

// GateEvent describes one password submission against a gate
type GateEvent struct {
	Type         string
	ClientID     string
	IPAddress    string
	UserAgent    string
	FailureCount int
	Lockout      time.Duration
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogGateEvent logs a gate submission outcome. Grants are logged at info,
// everything else at warn.
func (al *AuditLogger) LogGateEvent(ctx context.Context, event GateEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "gate"),
		slog.String("event_type", event.Type),
		slog.Bool("success", event.Type == EventGateGranted),
		slog.Int("failure_count", event.FailureCount),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", MaskID(event.ClientID)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.Lockout > 0 {
		attrs = append(attrs, slog.Int("lockout_seconds", int(event.Lockout/time.Second)))
	}

	level := slog.LevelWarn
	if event.Type == EventGateGranted {
		level = slog.LevelInfo
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
