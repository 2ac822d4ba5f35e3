// Package store persists per-learner sessions and the append-only
// interaction log. Backends are last-write-wins; callers serialize
// updates per learner identity (see KeyedMutex).
package store

import "time"

// Mode is the session's output-language policy.
type Mode string

const (
	ModeSpanish   Mode = "ES"
	ModeEnglish   Mode = "EN"
	ModeBilingual Mode = "BILINGÜE"
)

// NormalizeMode maps a raw command word to a Mode. The unaccented
// BILINGUE alias is accepted and normalizes to BILINGÜE. ok is false
// when the word is not a mode command.
func NormalizeMode(word string) (Mode, bool) {
	switch word {
	case "ES":
		return ModeSpanish, true
	case "EN":
		return ModeEnglish, true
	case "BILINGÜE", "BILINGUE":
		return ModeBilingual, true
	}
	return "", false
}

// Session is the persisted per-learner state, keyed by the learner's
// phone number. Sessions are created lazily on first contact and never
// deleted.
type Session struct {
	Identity         string    `json:"identity"`
	Mode             Mode      `json:"mode"`
	LessonID         string    `json:"lessonId"`
	PendingQuizID    string    `json:"pendingQuizId,omitempty"`
	PendingTaskID    string    `json:"pendingTaskId,omitempty"`
	ConversationMode bool      `json:"conversationMode"`
	RepliesToday     int       `json:"repliesToday"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Interaction is one graded learner answer. Records are append-only and
// never mutated; the aggregate score is always derived from them.
type Interaction struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	PromptID  string    `json:"promptId"`
	Answer    string    `json:"answer"`
	Analysis  string    `json:"analysis"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

// Delta is a partial session update. Nil fields are left untouched;
// pointers to zero values clear the field. Exactly one Delta is applied
// per inbound message.
type Delta struct {
	Mode             *Mode
	LessonID         *string
	PendingQuizID    *string
	PendingTaskID    *string
	ConversationMode *bool
	RepliesToday     *int
}

// IsZero reports whether the delta changes nothing.
func (d *Delta) IsZero() bool {
	return d == nil || (d.Mode == nil && d.LessonID == nil &&
		d.PendingQuizID == nil && d.PendingTaskID == nil &&
		d.ConversationMode == nil && d.RepliesToday == nil)
}

// apply merges the delta into a session and bumps UpdatedAt.
func (d *Delta) apply(s *Session, now time.Time) {
	if d.Mode != nil {
		s.Mode = *d.Mode
	}
	if d.LessonID != nil {
		s.LessonID = *d.LessonID
	}
	if d.PendingQuizID != nil {
		s.PendingQuizID = *d.PendingQuizID
	}
	if d.PendingTaskID != nil {
		s.PendingTaskID = *d.PendingTaskID
	}
	if d.ConversationMode != nil {
		s.ConversationMode = *d.ConversationMode
	}
	if d.RepliesToday != nil {
		s.RepliesToday = *d.RepliesToday
	}
	s.UpdatedAt = now
}

// Ptr returns a pointer to v; convenience for building deltas.
func Ptr[T any](v T) *T {
	return &v
}
