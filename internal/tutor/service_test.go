package tutor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/content"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/store"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/transport"
)

// captureSender records outbound sends in memory.
type captureSender struct {
	mu    sync.Mutex
	sends map[string][][]string
}

func newCaptureSender() *captureSender {
	return &captureSender{sends: make(map[string][][]string)}
}

func (c *captureSender) Send(ctx context.Context, to string, lines []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]string, len(lines))
	copy(cp, lines)
	c.sends[to] = append(c.sends[to], cp)
	return nil
}

func (c *captureSender) sent(to string) [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends[to]
}

func fixtureService(t *testing.T, oracle *MockOracle) (*Service, *store.MemoryStore, *captureSender) {
	t.Helper()
	st := store.NewMemoryStore("l1")
	idx := fixtureIndex(t)
	eval := NewEvaluator(oracle, 0, 0)
	limiter := NewLimiter(8)
	machine := NewMachine(idx, eval, oracle, limiter, st)
	sender := newCaptureSender()
	return NewService(st, machine, idx, sender, limiter), st, sender
}

func TestHandleMessage_CreatesSessionAndReplies(t *testing.T) {
	svc, st, sender := fixtureService(t, NewMockOracle())
	ctx := context.Background()

	lines, err := svc.HandleMessage(ctx, "whatsapp:+1555", "WARMUP")
	require.NoError(t, err)
	assert.Equal(t, []string{"ES: hola", "EN: hello"}, lines)
	assert.Equal(t, [][]string{{"ES: hola", "EN: hello"}}, sender.sent("whatsapp:+1555"))

	sess, err := st.GetOrCreate(ctx, "whatsapp:+1555")
	require.NoError(t, err)
	assert.Equal(t, store.ModeBilingual, sess.Mode)
	assert.Equal(t, "l1", sess.LessonID)
}

func TestHandleMessage_QuizEndToEnd(t *testing.T) {
	oracle := NewMockOracle()
	oracle.AddResponse("[CORRECTO] ¡Perfecto!", nil)
	svc, st, _ := fixtureService(t, oracle)
	ctx := context.Background()

	_, err := svc.HandleMessage(ctx, "whatsapp:+1555", "QUIZ")
	require.NoError(t, err)

	sess, err := st.GetOrCreate(ctx, "whatsapp:+1555")
	require.NoError(t, err)
	assert.Equal(t, "q1", sess.PendingQuizID)

	lines, err := svc.HandleMessage(ctx, "whatsapp:+1555", "buenos días")
	require.NoError(t, err)
	assert.Equal(t, []string{"¡Perfecto!"}, lines)

	sess, err = st.GetOrCreate(ctx, "whatsapp:+1555")
	require.NoError(t, err)
	assert.Empty(t, sess.PendingQuizID)

	recs := st.Interactions("whatsapp:+1555")
	require.Len(t, recs, 1)
	assert.Equal(t, "q1", recs[0].PromptID)
	assert.Equal(t, float64(1), recs[0].Score)

	// The logged answer now feeds SCORE.
	lines, err = svc.HandleMessage(ctx, "whatsapp:+1555", "SCORE")
	require.NoError(t, err)
	assert.Equal(t, []string{"ES: Tu puntuación: 100.0%", "EN: Your score: 100.0%"}, lines)
}

func TestHandleMessage_ModeSticksAcrossMessages(t *testing.T) {
	svc, _, _ := fixtureService(t, NewMockOracle())
	ctx := context.Background()

	_, err := svc.HandleMessage(ctx, "whatsapp:+1555", "ES")
	require.NoError(t, err)

	lines, err := svc.HandleMessage(ctx, "whatsapp:+1555", "WARMUP")
	require.NoError(t, err)
	assert.Equal(t, []string{"ES: hola"}, lines)
}

func TestHandleMessage_FreeChatWindow(t *testing.T) {
	oracle := NewMockOracle()
	for i := 0; i < 8; i++ {
		oracle.AddResponse("sí, claro", nil)
	}
	svc, st, _ := fixtureService(t, oracle)
	ctx := context.Background()

	_, err := svc.HandleMessage(ctx, "whatsapp:+1555", "RESET")
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		lines, err := svc.HandleMessage(ctx, "whatsapp:+1555", "hola")
		require.NoError(t, err)
		assert.Equal(t, []string{"sí, claro"}, lines)
	}

	// Ninth turn crosses the cap: farewell, window closed.
	lines, err := svc.HandleMessage(ctx, "whatsapp:+1555", "hola")
	require.NoError(t, err)
	assert.Contains(t, lines[0], "Hasta mañana")

	sess, err := st.GetOrCreate(ctx, "whatsapp:+1555")
	require.NoError(t, err)
	assert.False(t, sess.ConversationMode)
	assert.Zero(t, sess.RepliesToday)

	// Out of the window, commands work again.
	lines, err = svc.HandleMessage(ctx, "whatsapp:+1555", "WARMUP")
	require.NoError(t, err)
	assert.Equal(t, []string{"ES: hola", "EN: hello"}, lines)
}

func TestBroadcast(t *testing.T) {
	svc, st, sender := fixtureService(t, NewMockOracle())
	ctx := context.Background()

	_, err := st.GetOrCreate(ctx, "whatsapp:+1111")
	require.NoError(t, err)
	_, err = st.GetOrCreate(ctx, "whatsapp:+2222")
	require.NoError(t, err)
	_, err = st.Update(ctx, "whatsapp:+2222", store.Delta{Mode: store.Ptr(store.ModeSpanish)})
	require.NoError(t, err)

	n, err := svc.Broadcast(ctx, content.SlotNoon)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got1 := sender.sent("whatsapp:+1111")
	require.Len(t, got1, 1)
	assert.Len(t, got1[0], 2) // bilingual: both lines

	got2 := sender.sent("whatsapp:+2222")
	require.Len(t, got2, 1)
	assert.Len(t, got2[0], 1) // ES only

	for _, id := range []string{"whatsapp:+1111", "whatsapp:+2222"} {
		sess, err := st.GetOrCreate(ctx, id)
		require.NoError(t, err)
		assert.True(t, sess.ConversationMode, id)
		assert.Zero(t, sess.RepliesToday, id)
	}
}

func TestBroadcast_InvalidSlot(t *testing.T) {
	svc, _, _ := fixtureService(t, NewMockOracle())

	_, err := svc.Broadcast(context.Background(), "midnight")
	assert.ErrorIs(t, err, content.ErrInvalidSlot)
}

func TestBroadcast_SendFailureSkipsSession(t *testing.T) {
	st := store.NewMemoryStore("l1")
	idx := fixtureIndex(t)
	oracle := NewMockOracle()
	limiter := NewLimiter(8)
	machine := NewMachine(idx, NewEvaluator(oracle, 0, 0), oracle, limiter, st)

	sender := transport.SenderFunc(func(ctx context.Context, to string, lines []string) error {
		if to == "whatsapp:+1111" {
			return assert.AnError
		}
		return nil
	})
	svc := NewService(st, machine, idx, sender, limiter)
	ctx := context.Background()

	_, err := st.GetOrCreate(ctx, "whatsapp:+1111")
	require.NoError(t, err)
	_, err = st.GetOrCreate(ctx, "whatsapp:+2222")
	require.NoError(t, err)

	n, err := svc.Broadcast(ctx, content.SlotMorning)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The failed learner's window stays closed.
	sess, err := st.GetOrCreate(ctx, "whatsapp:+1111")
	require.NoError(t, err)
	assert.False(t, sess.ConversationMode)
}
