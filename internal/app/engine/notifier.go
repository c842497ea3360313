package engine

import (
	"sync/atomic"

	"mentorlink/internal/app/mentorship"
	"mentorlink/internal/app/user"
)

// Notifier is the per-session notification switch. While disabled, open threads do not
// poll in the background and unread badges are hidden. It starts enabled and is never
// persisted.
type Notifier struct {
	disabled atomic.Bool
}

// NewNotifier returns an enabled Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Enabled() bool {
	return !n.disabled.Load()
}

func (n *Notifier) SetEnabled(enabled bool) {
	n.disabled.Store(!enabled)
}

// Toggle flips the switch and returns the new state.
func (n *Notifier) Toggle() bool {
	for {
		old := n.disabled.Load()
		if n.disabled.CompareAndSwap(old, !old) {
			return old
		}
	}
}

// UnreadCount counts messages written by the other role that are not read yet.
func UnreadCount(msgs []mentorship.Message, self user.Role) int {
	n := 0
	for _, m := range msgs {
		if m.SenderRole != self && !m.Read {
			n++
		}
	}
	return n
}
