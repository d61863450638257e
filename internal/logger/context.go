package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are structured fields added to every record logged with a context carrying them.
type LogFields struct {
	TicketID  *int64
	Trigger   *string // automation trigger, "spawn" or "send"
	Component string  // e.g. "kanban.service.dispatcher"
}

// WithLogFields enriches ctx with fields. Newer non-empty values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)
	if fields.TicketID != nil {
		merged.TicketID = fields.TicketID
	}
	if fields.Trigger != nil {
		merged.Trigger = fields.Trigger
	}
	if fields.Component != "" {
		merged.Component = fields.Component
	}
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from ctx.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
