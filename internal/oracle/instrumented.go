package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/observability"
	obs "github.com/jonboyfraser/whatsapp-spanish-tutor/pkg/observability"
)

// InstrumentedClient wraps a Client with tracing and metrics. Every
// completion gets a span and a provider-labelled request counter and
// latency observation.
type InstrumentedClient struct {
	client  Client
	enabled bool
}

// NewInstrumentedClient wraps a client with automatic observability.
func NewInstrumentedClient(client Client) *InstrumentedClient {
	return &InstrumentedClient{client: client, enabled: true}
}

// Complete implements Client with instrumentation around the wrapped
// client's call.
func (c *InstrumentedClient) Complete(ctx context.Context, systemInstruction, userContent string, maxTokens int) (string, error) {
	if !c.enabled {
		return c.client.Complete(ctx, systemInstruction, userContent, maxTokens)
	}

	ctx, span := observability.StartSpan(ctx, fmt.Sprintf("oracle.%s.complete", c.client.Name()), map[string]any{
		"oracle.provider":   c.client.Name(),
		"oracle.max_tokens": maxTokens,
	})
	defer span.End()

	start := time.Now()
	text, err := c.client.Complete(ctx, systemInstruction, userContent, maxTokens)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		span.SetError(err)
	}
	obs.RecordOracleRequest(c.client.Name(), status, duration)
	span.SetAttribute("oracle.response_chars", len(text))

	return text, err
}

// Name implements Client.
func (c *InstrumentedClient) Name() string { return c.client.Name() }
