package notifiers

import "context"

// Notifier delivers a notification over one channel (email, Telegram, SQS, etc).
type Notifier interface {
	ID() string
	Type() string
	Notify(ctx context.Context, n Notification) error
}

// Logger is the structured logging surface channels write delivery
// outcomes to. internal/logger.Logger satisfies it.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type discardLogger struct{}

func (discardLogger) InfoObj(string, string, interface{})  {}
func (discardLogger) DebugObj(string, string, interface{}) {}
func (discardLogger) WarnObj(string, string, interface{})  {}
func (discardLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return discardLogger{}
	}
	return log
}
