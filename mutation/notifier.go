package mutation

import (
	"context"
	"errors"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/query"
)

// DefaultErrorMessage is shown when no message can be derived from an error.
const DefaultErrorMessage = "error connecting to server"

// Severity ranks a user-facing notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a transient user-facing message.
type Notification struct {
	Message  string
	Severity Severity
}

// Notifier receives notifications. It is called once per surfaced event;
// collapsing rapid repeats is up to the implementation.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(context.Context, Notification) {}

type logNotifier struct {
	logger observe.Logger
}

// NewLogNotifier returns a Notifier that writes notifications to logger.
func NewLogNotifier(logger observe.Logger) Notifier {
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	return &logNotifier{logger: logger}
}

func (l *logNotifier) Notify(ctx context.Context, n Notification) {
	fields := []observe.Field{{Key: "severity", Value: n.Severity.String()}}
	switch n.Severity {
	case SeverityError:
		l.logger.Error(ctx, n.Message, fields...)
	case SeverityWarning:
		l.logger.Warn(ctx, n.Message, fields...)
	default:
		l.logger.Info(ctx, n.Message, fields...)
	}
}

// MessageFromError derives a user-facing message from err.
func MessageFromError(err error) string {
	if err == nil {
		return DefaultErrorMessage
	}
	var me *MutationError
	if errors.As(err, &me) && me.Err != nil {
		err = me.Err
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultErrorMessage
}

// FetchErrorNotifier reports failed fetches to n as error notifications.
func FetchErrorNotifier(n Notifier) query.ErrorNotifier {
	return func(ctx context.Context, _ cache.Key, err error) {
		n.Notify(ctx, Notification{Message: MessageFromError(err), Severity: SeverityError})
	}
}
