package tutor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/content"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/oracle"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/store"
)

const chatInstruction = `Eres un compañero de conversación para un estudiante de español.
You are a conversation partner for a Spanish learner.

Keep replies short and friendly. Answer in Spanish with a brief English gloss
when the learner seems to struggle. Never grade or score the learner here.`

const helpEs = "Comandos: WARMUP, QUIZ, TASK, REFLECT, SCORE, RESET, ES, EN, BILINGÜE."
const helpEn = "Commands: WARMUP, QUIZ, TASK, REFLECT, SCORE, RESET, ES, EN, BILINGÜE."

// ScoreSource is the slice of the store the machine needs for SCORE.
type ScoreSource interface {
	AverageScore(ctx context.Context, identity string) (avg float64, count int, err error)
}

// Result is what one inbound message resolves to: a partial session
// update, zero or more outbound message lines, and at most one
// interaction record to append. The caller persists the record before
// the delta so a pending expectation is never cleared without its
// logged answer.
type Result struct {
	Intent      Intent
	Delta       store.Delta
	Messages    []string
	Interaction *store.Interaction
}

// Machine owns the session mutation rules. It consults the limiter for
// the conversation sub-mode, classifies the message, then drives the
// content index and evaluator bridge as the resolved intent requires.
type Machine struct {
	content *content.Index
	eval    *Evaluator
	chat    oracle.Client
	limiter *Limiter
	scores  ScoreSource

	chatMaxTokens int
	chatTimeout   time.Duration
}

// NewMachine wires the tutoring core together.
func NewMachine(idx *content.Index, eval *Evaluator, chat oracle.Client, limiter *Limiter, scores ScoreSource) *Machine {
	return &Machine{
		content:       idx,
		eval:          eval,
		chat:          chat,
		limiter:       limiter,
		scores:        scores,
		chatMaxTokens: 300,
		chatTimeout:   defaultOracleTimeout,
	}
}

// Respond resolves one inbound message against the session snapshot.
// The session itself is not mutated; the caller applies the delta.
// Errors are store failures only; content and oracle faults degrade to
// learner-visible messages.
func (m *Machine) Respond(ctx context.Context, sess *store.Session, text string) (*Result, error) {
	cls := Classify(sess, text, m.content.HasLesson(sess.LessonID))
	res := &Result{Intent: cls.Intent}

	switch cls.Intent {
	case IntentFreeChat:
		return m.freeChat(ctx, sess, text, res)

	case IntentSetMode:
		res.Delta.Mode = store.Ptr(cls.Mode)
		res.Messages = bilingual(
			fmt.Sprintf("Modo actualizado: %s.", cls.Mode),
			fmt.Sprintf("Mode updated: %s.", cls.Mode),
			cls.Mode)

	case IntentLessonMissing:
		res.Messages = bilingual(
			"No encuentro tu lección actual. Avisa a tu tutor.",
			"I can't find your current lesson. Please contact your tutor.",
			sess.Mode)

	case IntentWarmup:
		m.warmup(sess, res)

	case IntentStartQuiz:
		m.startQuiz(sess, res)

	case IntentAnswerQuiz:
		m.answerQuiz(ctx, sess, text, res)

	case IntentStartTask:
		m.startTask(sess, res)

	case IntentAnswerTask:
		m.answerTask(ctx, sess, text, res)

	case IntentShowReflection:
		m.reflection(sess, res)

	case IntentResetWindow:
		res.Delta = m.limiter.EnableWindow()
		res.Messages = bilingual(
			"Ventana de conversación reiniciada. ¡Hablemos!",
			"Conversation window reset. Let's talk!",
			sess.Mode)

	case IntentQueryScore:
		if err := m.score(ctx, sess, res); err != nil {
			return nil, err
		}

	case IntentHelp:
		res.Messages = bilingual(helpEs, helpEn, sess.Mode)
	}

	return res, nil
}

func (m *Machine) warmup(sess *store.Session, res *Result) {
	lesson, err := m.content.FindLesson(sess.LessonID)
	if err != nil {
		res.Messages = contentMissing(sess.Mode)
		return
	}
	opener, err := m.content.OpenerOf(lesson)
	if err != nil {
		res.Messages = contentMissing(sess.Mode)
		return
	}
	res.Messages = bilingual(opener.Es, opener.En, sess.Mode)
}

func (m *Machine) startQuiz(sess *store.Session, res *Result) {
	quiz, err := m.content.RandomQuiz()
	if err != nil {
		res.Messages = contentMissing(sess.Mode)
		return
	}
	res.Delta.PendingQuizID = store.Ptr(quiz.ID)
	// Quiz prompts go out as authored, not mode-filtered.
	res.Messages = []string{quiz.Prompt}
}

func (m *Machine) answerQuiz(ctx context.Context, sess *store.Session, text string, res *Result) {
	quiz, err := m.content.QuizByID(sess.PendingQuizID)
	if err != nil {
		// The pending expectation stays set: clearing it here would drop
		// the learner's turn without a logged interaction.
		log.Printf("pending quiz %s for %s does not resolve", sess.PendingQuizID, sess.Identity)
		res.Messages = contentMissing(sess.Mode)
		return
	}

	expected := quiz.ExpectedLanguage
	if quiz.Answer != "" {
		expected = fmt.Sprintf("%s (answered in %s)", quiz.Answer, quiz.ExpectedLanguage)
	}
	ev := m.eval.Evaluate(ctx, text, quiz.Prompt, expected)
	res.Interaction = m.record(sess, quiz.ID, text, ev)
	res.Delta.PendingQuizID = store.Ptr("")
	res.Messages = []string{ev.Analysis}
}

func (m *Machine) startTask(sess *store.Session, res *Result) {
	task, err := m.content.RandomTask()
	if err != nil {
		res.Messages = contentMissing(sess.Mode)
		return
	}
	res.Delta.PendingTaskID = store.Ptr(task.ID)
	res.Messages = bilingual(task.PromptEs, task.PromptEn, sess.Mode)
}

func (m *Machine) answerTask(ctx context.Context, sess *store.Session, text string, res *Result) {
	task, err := m.content.TaskByID(sess.PendingTaskID)
	if err != nil {
		log.Printf("pending task %s for %s does not resolve", sess.PendingTaskID, sess.Identity)
		res.Messages = contentMissing(sess.Mode)
		return
	}

	ev := m.eval.Evaluate(ctx, text, task.PromptEs, task.ExpectedOutput)
	next := m.content.NextLessonID(sess.LessonID)

	res.Interaction = m.record(sess, task.ID, text, ev)
	res.Delta.PendingTaskID = store.Ptr("")
	res.Delta.LessonID = store.Ptr(next)
	res.Messages = append([]string{ev.Analysis}, bilingual(
		fmt.Sprintf("Avanzamos a la lección %s.", next),
		fmt.Sprintf("Advancing to lesson %s.", next),
		sess.Mode)...)
}

func (m *Machine) reflection(sess *store.Session, res *Result) {
	lesson, err := m.content.FindLesson(sess.LessonID)
	if err != nil {
		res.Messages = contentMissing(sess.Mode)
		return
	}
	refl, err := m.content.ReflectionOf(lesson)
	if err != nil {
		// No reflection authored for this lesson: nothing goes out.
		return
	}
	res.Messages = bilingual(refl.Es, refl.En, sess.Mode)
}

func (m *Machine) score(ctx context.Context, sess *store.Session, res *Result) error {
	avg, count, err := m.scores.AverageScore(ctx, sess.Identity)
	if err != nil {
		return fmt.Errorf("average score: %w", err)
	}

	if count == 0 {
		res.Messages = bilingual(
			"Aún no hay respuestas registradas.",
			"No recorded answers yet.",
			sess.Mode)
		return nil
	}

	res.Messages = bilingual(
		fmt.Sprintf("Tu puntuación: %.1f%%", avg*100),
		fmt.Sprintf("Your score: %.1f%%", avg*100),
		sess.Mode)
	return nil
}

func (m *Machine) freeChat(ctx context.Context, sess *store.Session, text string, res *Result) (*Result, error) {
	if m.limiter.Admit(sess) == ActionClose {
		res.Delta = m.limiter.CloseWindow()
		res.Messages = bilingual(
			"¡Hasta mañana! Hemos llegado al límite de hoy.",
			"See you tomorrow! We've reached today's limit.",
			sess.Mode)
		return res, nil
	}

	cctx, cancel := context.WithTimeout(ctx, m.chatTimeout)
	defer cancel()

	reply, err := m.chat.Complete(cctx, chatInstruction, text, m.chatMaxTokens)
	if err != nil {
		log.Printf("free chat oracle failed for %s: %v", sess.Identity, err)
		res.Messages = bilingual(
			"Lo siento, no puedo responder ahora mismo.",
			"Sorry, I can't reply right now.",
			sess.Mode)
		return res, nil
	}

	res.Delta.RepliesToday = store.Ptr(sess.RepliesToday + 1)
	// Free-chat replies pass through verbatim.
	res.Messages = []string{reply}
	return res, nil
}

func (m *Machine) record(sess *store.Session, promptID, answer string, ev Evaluation) *store.Interaction {
	return &store.Interaction{
		ID:        uuid.New().String(),
		SessionID: sess.Identity,
		PromptID:  promptID,
		Answer:    answer,
		Analysis:  ev.Analysis,
		Score:     ev.Score,
		CreatedAt: time.Now().UTC(),
	}
}

// bilingual renders one (spanish, english) pair per the session's output
// policy: ES and EN modes yield a single line, BILINGÜE yields both.
// Empty lines are omitted; the transport joins lines with line breaks.
func bilingual(es, en string, mode store.Mode) []string {
	var lines []string
	if mode != store.ModeEnglish && es != "" {
		lines = append(lines, "ES: "+es)
	}
	if mode != store.ModeSpanish && en != "" {
		lines = append(lines, "EN: "+en)
	}
	return lines
}

func contentMissing(mode store.Mode) []string {
	return bilingual(
		"Ese contenido no está disponible ahora mismo.",
		"That content isn't available right now.",
		mode)
}
