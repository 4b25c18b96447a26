package middleware

import "context"

type contextKey string

const ctxDriverID contextKey = "driver_id"

func DriverIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxDriverID).(string); ok {
		return v
	}
	return ""
}

// WithDriverID injects the driver identifier into the context for downstream handlers.
func WithDriverID(ctx context.Context, driverID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxDriverID, driverID)
}
