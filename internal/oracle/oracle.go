// Package oracle wraps the external free-text grading/response service.
// The tutoring core treats it as a black box that turns a system
// instruction plus user content into natural-language text; all parsing
// of that text happens in the evaluator bridge.
package oracle

import (
	"context"
	"fmt"
	"sync"
)

// Client is the grading-oracle contract.
type Client interface {
	// Complete sends one instruction/content pair and returns the raw
	// reply text.
	Complete(ctx context.Context, systemInstruction, userContent string, maxTokens int) (string, error)

	// Name returns the provider name.
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	// Provider is the registered provider name ("openai", "gemini").
	Provider string
	// Model is the provider-specific model identifier.
	Model string
	// APIKey overrides the provider's environment lookup.
	APIKey string
}

// Factory creates a provider client from its config.
type Factory func(cfg Config) (Client, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterFactory registers a provider factory under a name.
func RegisterFactory(name string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[name] = f
}

// New creates a client for the configured provider.
func New(cfg Config) (Client, error) {
	factoryMu.RLock()
	f, ok := factories[cfg.Provider]
	factoryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("oracle provider %q not registered", cfg.Provider)
	}
	return f(cfg)
}

// Providers returns the registered provider names.
func Providers() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
