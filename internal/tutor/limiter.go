package tutor

import "github.com/jonboyfraser/whatsapp-spanish-tutor/internal/store"

// DefaultReplyCap is the daily free-chat reply limit.
const DefaultReplyCap = 8

// Action is the limiter's verdict for one free-chat turn.
type Action int

const (
	// ActionContinue lets the turn proceed; the caller increments the
	// reply counter after a successful reply.
	ActionContinue Action = iota
	// ActionClose ends the window; the caller emits a farewell and
	// resets the window state.
	ActionClose
)

// Limiter tracks the bounded daily free-chat window. It is stateless;
// all state lives on the session.
type Limiter struct {
	cap int
}

// NewLimiter creates a limiter with the given daily cap; values <= 0
// fall back to DefaultReplyCap.
func NewLimiter(cap int) *Limiter {
	if cap <= 0 {
		cap = DefaultReplyCap
	}
	return &Limiter{cap: cap}
}

// Admit decides whether one more free-chat turn may proceed. With the
// window closed the limiter is inert and always continues.
func (l *Limiter) Admit(sess *store.Session) Action {
	if sess.ConversationMode && sess.RepliesToday >= l.cap {
		return ActionClose
	}
	return ActionContinue
}

// EnableWindow returns the delta that opens a fresh daily window:
// conversation mode on, reply counter reset. Invoked by the scheduled
// broadcast after pushing a conversation starter, and by the RESET
// command.
func (l *Limiter) EnableWindow() store.Delta {
	return store.Delta{
		ConversationMode: store.Ptr(true),
		RepliesToday:     store.Ptr(0),
	}
}

// CloseWindow returns the delta that force-closes the window after the
// cap is crossed.
func (l *Limiter) CloseWindow() store.Delta {
	return store.Delta{
		ConversationMode: store.Ptr(false),
		RepliesToday:     store.Ptr(0),
	}
}
