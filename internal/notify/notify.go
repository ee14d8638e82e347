// Package notify delivers user-facing notifications raised by the dashboard
// (alert triggers, batch-add summaries, quota warnings).
package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"ai-market-dashboard/internal/logger"
	"ai-market-dashboard/internal/types"
)

// Notifier delivers a single notification. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, title, message string, kind types.NotificationKind) error
}

// New builds a Notification with a fresh ID.
func New(title, message string, kind types.NotificationKind) types.Notification {
	return types.Notification{
		ID:      uuid.NewString(),
		Title:   title,
		Message: message,
		Kind:    kind,
	}
}

// LogNotifier writes notifications to the structured log. It is the default
// sink and also keeps a bounded in-memory feed of recent notifications.
type LogNotifier struct {
	mu     sync.Mutex
	recent []types.Notification
	limit  int
}

const defaultFeedLimit = 50

// NewLogNotifier creates a log notifier retaining the last 50 notifications.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{limit: defaultFeedLimit}
}

func (n *LogNotifier) Notify(ctx context.Context, title, message string, kind types.NotificationKind) error {
	note := New(title, message, kind)

	n.mu.Lock()
	n.recent = append(n.recent, note)
	if len(n.recent) > n.limit {
		n.recent = n.recent[len(n.recent)-n.limit:]
	}
	n.mu.Unlock()

	switch kind {
	case types.NotifyAlert:
		logger.Warn(ctx, "Notification", "id", note.ID, "kind", string(kind), "title", title, "message", message)
	default:
		logger.Info(ctx, "Notification", "id", note.ID, "kind", string(kind), "title", title, "message", message)
	}
	return nil
}

// Recent returns a copy of the retained notification feed, oldest first.
func (n *LogNotifier) Recent() []types.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.Notification, len(n.recent))
	copy(out, n.recent)
	return out
}

// Multi fans a notification out to several sinks. Delivery failures in one
// sink do not block the others; the first error is returned.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, title, message string, kind types.NotificationKind) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, title, message, kind); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
