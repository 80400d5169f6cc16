package gestiones

import (
	"sync"
	"time"
)

// successTTL is how long a success notification stays visible.
const successTTL = 3 * time.Second

// Notifier holds the transient success notification. A message auto-dismisses
// after the TTL; only the most recent message is kept.
type Notifier struct {
	mu       sync.Mutex
	message  string
	deadline time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewNotifier creates a notifier with the default TTL.
func NewNotifier() *Notifier {
	return &Notifier{ttl: successTTL, now: time.Now}
}

// Show replaces the current notification.
func (n *Notifier) Show(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.message = message
	n.deadline = n.now().Add(n.ttl)
}

// Current returns the active notification, if it has not expired.
func (n *Notifier) Current() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.message == "" || n.now().After(n.deadline) {
		return "", false
	}
	return n.message, true
}

// Clear dismisses the notification early.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.message = ""
}
