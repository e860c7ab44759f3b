package cache

import (
	"fmt"

	"go.uber.org/zap"
)

// Notice describes a failed mutation to show the user.
type Notice struct {
	Operation string
	ID        string
	Err       error
}

func (n Notice) Message() string {
	if n.ID == "" {
		return fmt.Sprintf("Failed to %s flashcard: %v", n.Operation, n.Err)
	}
	return fmt.Sprintf("Failed to %s flashcard %s: %v", n.Operation, n.ID, n.Err)
}

// Notifier presents transient failure notices.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a logger at warn level.
type LogNotifier struct {
	Log *zap.Logger
}

func (l LogNotifier) Notify(n Notice) {
	l.Log.Warn(n.Message(),
		zap.String("operation", n.Operation),
		zap.String("id", n.ID),
		zap.Error(n.Err),
	)
}
