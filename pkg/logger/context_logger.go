package logger

import (
	"context"
	"time"

	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextLogBuilder collects fields for one entry and pulls request metadata
// out of the context. Fields are only gathered when the level is enabled.
type ContextLogBuilder struct {
	entry  *zapcore.CheckedEntry
	ctx    context.Context
	fields []zap.Field
}

func newBuilder(ctx context.Context, level zapcore.Level, message string) *ContextLogBuilder {
	b := &ContextLogBuilder{
		ctx:   ctx,
		entry: GetLogger().Check(level, message),
	}
	if b.entry != nil {
		b.fields = make([]zap.Field, 0, 12)
		b.extractContextFields()
	}
	return b
}

func (b *ContextLogBuilder) enabled() bool {
	return b.entry != nil
}

func (b *ContextLogBuilder) extractContextFields() {
	if b.ctx == nil {
		return
	}

	if requestID := ctxutil.GetRequestID(b.ctx); requestID != "" {
		b.fields = append(b.fields, zap.String("request_id", requestID))
	}
	if correlationID := ctxutil.GetCorrelationID(b.ctx); correlationID != "" {
		b.fields = append(b.fields, zap.String("correlation_id", correlationID))
	}
	if clientIP := ctxutil.GetClientIP(b.ctx); clientIP != "" {
		b.fields = append(b.fields, zap.String("client_ip", clientIP))
	}
	if userID, ok := ctxutil.GetUserID(b.ctx); ok {
		b.fields = append(b.fields, zap.Uint("user_id", userID))
	}
	if accountID, ok := ctxutil.GetAccountID(b.ctx); ok {
		b.fields = append(b.fields, zap.Uint("account_id", accountID))
	}
	if sessionID := ctxutil.GetSessionID(b.ctx); sessionID != "" {
		b.fields = append(b.fields, zap.String("session_ref", redact(sessionID)))
	}
	if module := ctxutil.GetModule(b.ctx); module != "" {
		b.fields = append(b.fields, zap.String("module", module))
	}
	if function := ctxutil.GetFunction(b.ctx); function != "" {
		b.fields = append(b.fields, zap.String("function", function))
	}
}

// redact keeps a short prefix of a secret identifier for correlation.
func redact(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:8] + "..."
}

func (b *ContextLogBuilder) String(key, value string) *ContextLogBuilder {
	if b.enabled() {
		b.fields = append(b.fields, zap.String(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Strings(key string, values []string) *ContextLogBuilder {
	if b.enabled() {
		b.fields = append(b.fields, zap.Strings(key, values))
	}
	return b
}

// Secret logs a redacted form of a token or identifier.
func (b *ContextLogBuilder) Secret(key, value string) *ContextLogBuilder {
	if b.enabled() {
		b.fields = append(b.fields, zap.String(key, redact(value)))
	}
	return b
}

func (b *ContextLogBuilder) Int(key string, value int) *ContextLogBuilder {
	if b.enabled() {
		b.fields = append(b.fields, zap.Int(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Int64(key string, value int64) *ContextLogBuilder {
	if b.enabled() {
		b.fields = append(b.fields, zap.Int64(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Uint(key string, value uint) *ContextLogBuilder {
	if b.enabled() {
		b.fields = append(b.fields, zap.Uint(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Bool(key string, value bool) *ContextLogBuilder {
	if b.enabled() {
		b.fields = append(b.fields, zap.Bool(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Time(key string, value time.Time) *ContextLogBuilder {
	if b.enabled() {
		b.fields = append(b.fields, zap.Time(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Duration(value time.Duration) *ContextLogBuilder {
	if b.enabled() {
		b.fields = append(b.fields, zap.Duration("duration", value))
	}
	return b
}

func (b *ContextLogBuilder) Err(err error) *ContextLogBuilder {
	if b.enabled() && err != nil {
		b.fields = append(b.fields, zap.Error(err))
	}
	return b
}

func (b *ContextLogBuilder) Any(key string, value interface{}) *ContextLogBuilder {
	if b.enabled() {
		b.fields = append(b.fields, zap.Any(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Method(method string) *ContextLogBuilder {
	return b.String("method", method)
}

func (b *ContextLogBuilder) Path(path string) *ContextLogBuilder {
	return b.String("path", path)
}

func (b *ContextLogBuilder) StatusCode(code int) *ContextLogBuilder {
	return b.Int("status_code", code)
}

// Log writes the entry. Nothing is written once the context is cancelled.
func (b *ContextLogBuilder) Log() {
	if !b.enabled() {
		return
	}

	if b.ctx != nil {
		select {
		case <-b.ctx.Done():
			return
		default:
		}
	}

	b.entry.Write(b.fields...)
}

func InfoWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.InfoLevel, message)
}

func WarnWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.WarnLevel, message)
}

func ErrorWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.ErrorLevel, message)
}

func DebugWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.DebugLevel, message)
}
