// Package transport delivers outbound messages to learners.
package transport

import "context"

// Sender delivers one outbound message body to a learner identity.
// Implementations join the lines with line breaks into a single body.
type Sender interface {
	Send(ctx context.Context, to string, lines []string) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, to string, lines []string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, to string, lines []string) error {
	return f(ctx, to, lines)
}
