// Package webhook turns signed HTTP change notifications from external
// systems into fan-out notifications. One Source is one external system
// with one shared secret.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mattjoyce/bundlehost/internal/fanout"
	"github.com/mattjoyce/bundlehost/internal/instance"
	"github.com/mattjoyce/bundlehost/internal/log"
)

const (
	defaultSignatureHeader = "X-Hub-Signature-256"
	defaultMaxBodyBytes    = 1 << 20 // 1 MiB
)

// payload is the wire form of an entity-change notification.
type payload struct {
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	EventType  string            `json:"event_type"`
	Data       map[string]any    `json:"data,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Source receives signed webhook posts and emits them into the fan-out
// registry. It implements fanout.Source and http.Handler; mount it on the
// API router at the path of your choosing.
type Source struct {
	id              string
	secret          string
	signatureHeader string
	maxBodyBytes    int64
	logger          *slog.Logger

	mu   sync.Mutex
	emit fanout.EmitFunc
}

// Option configures a Source.
type Option func(*Source)

// WithSignatureHeader overrides the header carrying the HMAC signature.
func WithSignatureHeader(name string) Option {
	return func(s *Source) {
		if name != "" {
			s.signatureHeader = name
		}
	}
}

// WithMaxBodyBytes overrides the request body cap.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Source) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// NewSource creates a webhook source.
func NewSource(id, secret string, opts ...Option) *Source {
	s := &Source{
		id:              id,
		secret:          secret,
		signatureHeader: defaultSignatureHeader,
		maxBodyBytes:    defaultMaxBodyBytes,
		logger:          log.WithSource(id),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) ID() string { return s.id }

func (s *Source) Subscribe(emit fanout.EmitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = emit
}

func (s *Source) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = nil
}

// Init validates the source configuration. A source without a secret
// would accept unauthenticated change reports, so it refuses to register.
func (s *Source) Init(ctx context.Context) error {
	if s.id == "" {
		return fmt.Errorf("webhook source id is empty")
	}
	if s.secret == "" {
		return fmt.Errorf("webhook source %q has no secret", s.id)
	}
	return nil
}

func (s *Source) Shutdown(ctx context.Context) error {
	return nil
}

// ServeHTTP accepts one signed notification per POST. Invalid signatures
// and malformed payloads are rejected; valid ones return 202 after the
// dispatch completes.
func (s *Source) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodyBytes+1))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > s.maxBodyBytes {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := verifyHMACSignature(body, r.Header.Get(s.signatureHeader), s.secret); err != nil {
		s.logger.Warn("rejected webhook with bad signature", "remote", r.RemoteAddr)
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if p.EntityType == "" || p.EntityID == "" || p.EventType == "" {
		http.Error(w, "entity_type, entity_id and event_type are required", http.StatusBadRequest)
		return
	}

	var data instance.Map
	if p.Data != nil {
		val, err := instance.FromAny(p.Data)
		if err != nil {
			http.Error(w, "invalid data payload", http.StatusBadRequest)
			return
		}
		data = val.(instance.Map)
	}

	s.mu.Lock()
	emit := s.emit
	s.mu.Unlock()
	if emit == nil {
		s.logger.Warn("notification received while unsubscribed, dropping")
		http.Error(w, "source not active", http.StatusServiceUnavailable)
		return
	}

	s.logger.Info("notification accepted",
		"entity_type", p.EntityType, "entity_id", p.EntityID, "event_type", p.EventType)
	emit(fanout.Notification{
		EntityType: p.EntityType,
		EntityID:   p.EntityID,
		EventType:  p.EventType,
		Data:       data,
		Metadata:   p.Metadata,
	})

	w.WriteHeader(http.StatusAccepted)
}
