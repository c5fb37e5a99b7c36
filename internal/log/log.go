// Package log wires logrus for the service and carries a request-scoped
// entry (with its correlation id) through context.Context.
package log

import (
	"context"
	"os"

	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	correlationKey
)

// CorrelationHeader is read from incoming requests and echoed back.
const CorrelationHeader = "X-Correlation-ID"

// Init configures the global logger.  Text output is used in dev, JSON
// everywhere else.
func Init(level logrus.Level, dev bool) {
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
	if dev {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

// FromContext returns the entry stored in ctx, or the standard logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if e, ok := ctx.Value(loggerKey).(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// ToContext stores entry in ctx.
func ToContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey, entry)
}

// ContextWithCorrelationID stores id in ctx along with a logger entry
// that reports it on every line.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, correlationKey, id)
	return ToContext(ctx, FromContext(ctx).WithField("correlation_id", id))
}

// CorrelationIDFromContext returns the correlation id of ctx, generating a
// fresh one when none is set.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok && id != "" {
		return id
	}
	return NewCorrelationID()
}

// NewCorrelationID returns a short random id.
func NewCorrelationID() string { return "gen_" + shortuuid.New() }
