package tutor

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/content"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/observability"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/store"
	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/transport"
	obs "github.com/jonboyfraser/whatsapp-spanish-tutor/pkg/observability"
)

// broadcastConcurrency bounds the parallel sends of one scheduled
// broadcast run.
const broadcastConcurrency = 8

// Service ties the tutoring machine to persistence and the outbound
// transport. It serializes all writes per learner with a keyed mutex,
// so a learner's messages are processed strictly in arrival order even
// when the webhook handles them on different goroutines.
type Service struct {
	store   store.Store
	machine *Machine
	content *content.Index
	sender  transport.Sender
	limiter *Limiter
	locks   *store.KeyedMutex
}

// NewService creates a message-processing service.
func NewService(st store.Store, m *Machine, idx *content.Index, sender transport.Sender, limiter *Limiter) *Service {
	return &Service{
		store:   st,
		machine: m,
		content: idx,
		sender:  sender,
		limiter: limiter,
		locks:   store.NewKeyedMutex(),
	}
}

// HandleMessage processes one inbound learner message end to end:
// resolve the session, run the machine, persist the interaction record
// before the session delta, then send the outbound lines. The returned
// lines mirror what was sent, for callers that echo responses.
func (s *Service) HandleMessage(ctx context.Context, from, body string) ([]string, error) {
	ctx, span := observability.StartSpan(ctx, "tutor.handle_message", map[string]any{
		"identity": from,
	})
	defer span.End()

	start := time.Now()

	s.locks.Lock(from)
	defer s.locks.Unlock(from)

	sess, err := s.store.GetOrCreate(ctx, from)
	if err != nil {
		obs.RecordStoreError("get_or_create")
		span.SetError(err)
		return nil, fmt.Errorf("load session %s: %w", from, err)
	}

	res, err := s.machine.Respond(ctx, sess, body)
	if err != nil {
		obs.RecordStoreError("average_score")
		span.SetError(err)
		return nil, fmt.Errorf("respond to %s: %w", from, err)
	}
	span.SetAttribute("intent", res.Intent.String())

	// The record lands before the delta. If the append fails the
	// pending expectation stays on the session and the learner can
	// answer again.
	if res.Interaction != nil {
		if err := s.store.AppendInteraction(ctx, res.Interaction); err != nil {
			obs.RecordStoreError("append_interaction")
			span.SetError(err)
			return nil, fmt.Errorf("append interaction for %s: %w", from, err)
		}
	}

	if !res.Delta.IsZero() {
		if _, err := s.store.Update(ctx, from, res.Delta); err != nil {
			obs.RecordStoreError("update")
			span.SetError(err)
			return nil, fmt.Errorf("update session %s: %w", from, err)
		}
	}

	if len(res.Messages) > 0 {
		if err := s.sender.Send(ctx, from, res.Messages); err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("send to %s: %w", from, err)
		}
	}

	obs.RecordMessage(res.Intent.String(), time.Since(start))
	return res.Messages, nil
}

// Broadcast pushes the slot's conversation starter to every known
// session and opens a fresh free-chat window for each. Per-session
// failures are logged and skipped; the run keeps going. Returns the
// number of learners reached.
func (s *Service) Broadcast(ctx context.Context, slot string) (int, error) {
	ctx, span := observability.StartSpan(ctx, "tutor.broadcast", map[string]any{
		"slot": slot,
	})
	defer span.End()

	starter, err := s.content.StarterFor(slot)
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	sessions, err := s.store.AllSessions(ctx)
	if err != nil {
		obs.RecordStoreError("all_sessions")
		span.SetError(err)
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastConcurrency)

	for _, sess := range sessions {
		sess := sess
		g.Go(func() error {
			lines := bilingual(starter.Es, starter.En, sess.Mode)
			if err := s.sender.Send(gctx, sess.Identity, lines); err != nil {
				log.Printf("broadcast %s: send to %s failed: %v", slot, sess.Identity, err)
				return nil
			}

			s.locks.Lock(sess.Identity)
			defer s.locks.Unlock(sess.Identity)
			if _, err := s.store.Update(gctx, sess.Identity, s.limiter.EnableWindow()); err != nil {
				obs.RecordStoreError("update")
				log.Printf("broadcast %s: open window for %s failed: %v", slot, sess.Identity, err)
				return nil
			}

			sent.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.SetError(err)
		return int(sent.Load()), err
	}

	n := int(sent.Load())
	span.SetAttribute("sent", n)
	obs.RecordBroadcast(slot, n)
	return n, nil
}
