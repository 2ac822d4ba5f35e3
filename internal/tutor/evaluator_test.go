package tutor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_VerdictMapping(t *testing.T) {
	tests := []struct {
		name         string
		reply        string
		wantScore    float64
		wantAnalysis string
	}{
		{
			name:         "correct",
			reply:        "[CORRECTO] ¡Muy bien! Perfect answer.",
			wantScore:    1,
			wantAnalysis: "¡Muy bien! Perfect answer.",
		},
		{
			name:         "partial",
			reply:        "[PARCIAL] Casi. Watch the accent.",
			wantScore:    0.5,
			wantAnalysis: "Casi. Watch the accent.",
		},
		{
			name:         "incorrect",
			reply:        "[INCORRECTO] No exactamente. Try again.",
			wantScore:    0,
			wantAnalysis: "No exactamente. Try again.",
		},
		{
			name:         "missing tag scores zero",
			reply:        "Great answer, well done!",
			wantScore:    0,
			wantAnalysis: "Great answer, well done!",
		},
		{
			name:         "unknown tag scores zero",
			reply:        "[EXCELENTE] amazing",
			wantScore:    0,
			wantAnalysis: "[EXCELENTE] amazing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockOracle()
			mock.AddResponse(tt.reply, nil)
			eval := NewEvaluator(mock, 0, 0)

			ev := eval.Evaluate(context.Background(), "answer", "prompt", "expected")
			assert.Equal(t, tt.wantScore, ev.Score)
			assert.Equal(t, tt.wantAnalysis, ev.Analysis)
		})
	}
}

func TestEvaluate_OracleFailure(t *testing.T) {
	mock := NewMockOracle()
	mock.AddResponse("", errors.New("rate limited"))
	eval := NewEvaluator(mock, 0, 0)

	ev := eval.Evaluate(context.Background(), "answer", "prompt", "expected")
	assert.Zero(t, ev.Score)
	assert.Equal(t, fallbackAnalysis, ev.Analysis)
}

func TestEvaluate_PassesAnswerContext(t *testing.T) {
	mock := NewMockOracle()
	mock.AddResponse("[CORRECTO] bien", nil)
	eval := NewEvaluator(mock, 150, time.Second)

	eval.Evaluate(context.Background(), "buenos días", "¿Cómo se dice good morning?", "es")

	calls := mock.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, gradingInstruction, calls[0].SystemInstruction)
	assert.Contains(t, calls[0].UserContent, "buenos días")
	assert.Contains(t, calls[0].UserContent, "¿Cómo se dice good morning?")
	assert.Equal(t, 150, calls[0].MaxTokens)
}

func TestEvaluate_TagOnlyReplyKeepsTag(t *testing.T) {
	mock := NewMockOracle()
	mock.AddResponse("[CORRECTO]", nil)
	eval := NewEvaluator(mock, 0, 0)

	ev := eval.Evaluate(context.Background(), "a", "p", "e")
	assert.Equal(t, float64(1), ev.Score)
	// A bare tag still yields a non-empty analysis line.
	assert.NotEmpty(t, ev.Analysis)
}
