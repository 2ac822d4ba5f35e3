// Package webhook exposes the inbound HTTP surface: the Twilio
// WhatsApp webhook, the cron trigger endpoint, and the health and
// metrics probes.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jonboyfraser/whatsapp-spanish-tutor/internal/content"
	obs "github.com/jonboyfraser/whatsapp-spanish-tutor/pkg/observability"
)

// MessageHandler processes one inbound learner message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, from, body string) ([]string, error)
}

// Broadcaster pushes a conversation starter for a slot.
type Broadcaster interface {
	Broadcast(ctx context.Context, slot string) (int, error)
}

// Server is the inbound HTTP server.
type Server struct {
	handler     MessageHandler
	broadcaster Broadcaster
	guard       *RateGuard
	httpServer  *http.Server
	port        int

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewServer creates a webhook server on the given port.
func NewServer(port int, handler MessageHandler, broadcaster Broadcaster) *Server {
	return &Server{
		handler:      handler,
		broadcaster:  broadcaster,
		guard:        NewRateGuard(1, 5),
		port:         port,
		readTimeout:  15 * time.Second,
		writeTimeout: 30 * time.Second,
	}
}

// SetTimeouts overrides the HTTP server timeouts.
func (s *Server) SetTimeouts(read, write time.Duration) {
	s.readTimeout = read
	s.writeTimeout = write
}

// Handler builds the route mux. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/webhook/whatsapp", s.handleWhatsApp)
	mux.HandleFunc("/cron/trigger", s.handleCronTrigger)

	mux.HandleFunc("/health", obs.HealthHandler())
	mux.HandleFunc("/health/live", obs.LivenessHandler())
	mux.HandleFunc("/health/ready", obs.ReadinessHandler())
	mux.Handle("/metrics", obs.MetricsHandler())

	return mux
}

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleWhatsApp receives a Twilio inbound-message callback. Twilio
// posts form fields; From is the sender identity and Body the text.
// The endpoint always acks 200 once the message is accepted: outbound
// replies travel over the REST API, not the webhook response, and a
// non-2xx would only make Twilio retry an already-processed message.
func (s *Server) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		obs.RecordHTTPRequest(r.Method, "/webhook/whatsapp", "405", time.Since(start))
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		obs.RecordHTTPRequest(r.Method, "/webhook/whatsapp", "400", time.Since(start))
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" {
		http.Error(w, "missing From", http.StatusBadRequest)
		obs.RecordHTTPRequest(r.Method, "/webhook/whatsapp", "400", time.Since(start))
		return
	}

	if !s.guard.Allow(from) {
		w.WriteHeader(http.StatusTooManyRequests)
		obs.RecordHTTPRequest(r.Method, "/webhook/whatsapp", "429", time.Since(start))
		return
	}

	// Detach from the request context: a Twilio client timeout must not
	// cancel the oracle call mid-turn. The turn runs to completion and
	// replies travel over the REST API regardless.
	ctx := context.WithoutCancel(r.Context())
	if _, err := s.handler.HandleMessage(ctx, from, body); err != nil {
		// Ack anyway; the failure is ours, not Twilio's, and the
		// learner-visible state was left consistent.
		log.Printf("webhook: handle message from %s: %v", from, err)
	}

	w.WriteHeader(http.StatusOK)
	obs.RecordHTTPRequest(r.Method, "/webhook/whatsapp", "200", time.Since(start))
}

// handleCronTrigger fires a broadcast for the slot named in the query
// string. Cloud Scheduler hits this endpoint on the configured
// schedule; it is also handy for manual runs.
func (s *Server) handleCronTrigger(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	slot := r.URL.Query().Get("slot")
	if slot == "" {
		http.Error(w, "missing slot", http.StatusBadRequest)
		obs.RecordHTTPRequest(r.Method, "/cron/trigger", "400", time.Since(start))
		return
	}

	sent, err := s.broadcaster.Broadcast(r.Context(), slot)
	if err != nil {
		if errors.Is(err, content.ErrInvalidSlot) {
			http.Error(w, fmt.Sprintf("unknown slot %q", slot), http.StatusBadRequest)
			obs.RecordHTTPRequest(r.Method, "/cron/trigger", "400", time.Since(start))
			return
		}
		log.Printf("webhook: broadcast %s: %v", slot, err)
		http.Error(w, "broadcast failed", http.StatusInternalServerError)
		obs.RecordHTTPRequest(r.Method, "/cron/trigger", "500", time.Since(start))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"slot": slot, "sent": sent})
	obs.RecordHTTPRequest(r.Method, "/cron/trigger", "200", time.Since(start))
}
