// Package tutor is the per-learner tutoring core: it classifies inbound
// messages against the session's pending expectations, grades answers
// through the oracle bridge, and produces the next session state and
// outbound message lines.
package tutor

import (
	"strings"

	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/store"
)

// Intent is the closed set of outcomes Classify can produce. Exactly one
// intent is resolved per inbound message.
type Intent int

const (
	IntentFreeChat Intent = iota
	IntentSetMode
	IntentLessonMissing
	IntentWarmup
	IntentStartQuiz
	IntentAnswerQuiz
	IntentStartTask
	IntentAnswerTask
	IntentShowReflection
	IntentResetWindow
	IntentQueryScore
	IntentHelp
)

// String returns the intent name for logs and metrics labels.
func (i Intent) String() string {
	switch i {
	case IntentFreeChat:
		return "free_chat"
	case IntentSetMode:
		return "set_mode"
	case IntentLessonMissing:
		return "lesson_missing"
	case IntentWarmup:
		return "warmup"
	case IntentStartQuiz:
		return "start_quiz"
	case IntentAnswerQuiz:
		return "answer_quiz"
	case IntentStartTask:
		return "start_task"
	case IntentAnswerTask:
		return "answer_task"
	case IntentShowReflection:
		return "show_reflection"
	case IntentResetWindow:
		return "reset_window"
	case IntentQueryScore:
		return "query_score"
	case IntentHelp:
		return "help"
	}
	return "unknown"
}

// Classification is the resolved intent plus any argument it carries.
type Classification struct {
	Intent Intent
	// Mode is set for IntentSetMode.
	Mode store.Mode
}

// Classify maps a session and inbound text to exactly one intent.
// Evaluation order is fixed; the first matching rule wins:
//
//  1. open conversation window        -> FreeChat
//  2. mode command (ES/EN/BILINGÜE)   -> SetMode
//  3. current lesson unresolvable     -> LessonMissing
//  4. WARMUP                          -> Warmup
//  5. QUIZ                            -> StartQuiz
//  6. pending quiz                    -> AnswerQuiz
//  7. TASK                            -> StartTask
//  8. pending task                    -> AnswerTask
//  9. REFLECT                         -> ShowReflection
// 10. RESET                          -> ResetWindow
// 11. SCORE                          -> QueryScore
// 12. anything else                  -> Help
//
// lessonResolvable tells the classifier whether the session's lesson id
// resolves in the content index; the classifier itself stays a pure
// function of its inputs.
func Classify(sess *store.Session, text string, lessonResolvable bool) Classification {
	trimmed := strings.TrimSpace(text)
	upper := strings.ToUpper(trimmed)

	if sess.ConversationMode {
		return Classification{Intent: IntentFreeChat}
	}

	if mode, ok := store.NormalizeMode(upper); ok {
		return Classification{Intent: IntentSetMode, Mode: mode}
	}

	if !lessonResolvable {
		return Classification{Intent: IntentLessonMissing}
	}

	switch {
	case upper == "WARMUP":
		return Classification{Intent: IntentWarmup}
	case upper == "QUIZ":
		return Classification{Intent: IntentStartQuiz}
	case sess.PendingQuizID != "":
		return Classification{Intent: IntentAnswerQuiz}
	case upper == "TASK":
		return Classification{Intent: IntentStartTask}
	case sess.PendingTaskID != "":
		return Classification{Intent: IntentAnswerTask}
	case upper == "REFLECT":
		return Classification{Intent: IntentShowReflection}
	case upper == "RESET":
		return Classification{Intent: IntentResetWindow}
	case upper == "SCORE":
		return Classification{Intent: IntentQueryScore}
	}

	return Classification{Intent: IntentHelp}
}
