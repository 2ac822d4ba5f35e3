package tutor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/oracle"
)

// Categorical tags the oracle must lead its verdict with. The mapping to
// scores is fixed; anything else scores 0 (fail-safe low, never high).
const (
	tagCorrect   = "[CORRECTO]"
	tagPartial   = "[PARCIAL]"
	tagIncorrect = "[INCORRECTO]"
)

const defaultOracleTimeout = 30 * time.Second

// fallbackAnalysis is sent when the oracle fails; the turn is still
// logged with score 0 so the learner's answer is not silently lost.
const fallbackAnalysis = "Lo siento, no pude evaluar tu respuesta esta vez. Inténtalo de nuevo más tarde.\n" +
	"Sorry, I couldn't evaluate your answer this time. Please try again later."

const gradingInstruction = `Eres un tutor de español evaluando la respuesta de un estudiante.
You are a Spanish tutor grading a learner's answer.

Respond bilingually (Spanish first, then English) with short, encouraging feedback.
Your reply MUST begin with exactly one of these tags:
` + tagCorrect + ` if the answer is fully correct
` + tagPartial + ` if the answer is partially correct
` + tagIncorrect + ` if the answer is incorrect

Nothing may precede the tag.`

// Evaluation is the bridge's parsed verdict.
type Evaluation struct {
	// Analysis is the oracle's feedback with the leading tag stripped.
	Analysis string
	// Score is drawn from {0, 0.5, 1}.
	Score float64
}

// Evaluator submits learner answers to the grading oracle and parses the
// categorical verdict into a score. Oracle faults never propagate: the
// bridge degrades to a fixed apology with score 0 and the caller logs
// and replies normally.
type Evaluator struct {
	client    oracle.Client
	maxTokens int
	timeout   time.Duration
}

// NewEvaluator creates an evaluator over an oracle client. maxTokens and
// timeout fall back to sane defaults when zero.
func NewEvaluator(client oracle.Client, maxTokens int, timeout time.Duration) *Evaluator {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	return &Evaluator{client: client, maxTokens: maxTokens, timeout: timeout}
}

// Evaluate grades one learner answer against the prompt it responds to
// and the expected language or output. It never returns an error.
func (e *Evaluator) Evaluate(ctx context.Context, answer, promptContext, expected string) Evaluation {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	content := fmt.Sprintf("Prompt given to the learner:\n%s\n\nExpected (language or model output):\n%s\n\nLearner's answer:\n%s",
		promptContext, expected, answer)

	reply, err := e.client.Complete(ctx, gradingInstruction, content, e.maxTokens)
	if err != nil {
		log.Printf("oracle evaluation failed: %v", err)
		return Evaluation{Analysis: fallbackAnalysis, Score: 0}
	}

	return parseVerdict(reply)
}

// parseVerdict maps the leading tag to a score. A missing or unknown tag
// scores 0 with the reply passed through untouched.
func parseVerdict(reply string) Evaluation {
	trimmed := strings.TrimSpace(reply)

	for _, tc := range []struct {
		tag   string
		score float64
	}{
		{tagCorrect, 1},
		{tagPartial, 0.5},
		{tagIncorrect, 0},
	} {
		if strings.HasPrefix(trimmed, tc.tag) {
			analysis := strings.TrimSpace(strings.TrimPrefix(trimmed, tc.tag))
			if analysis == "" {
				analysis = trimmed
			}
			return Evaluation{Analysis: analysis, Score: tc.score}
		}
	}

	return Evaluation{Analysis: trimmed, Score: 0}
}
