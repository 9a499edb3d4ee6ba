package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/speech"
	"github.com/go-chi/chi/v5"
)

// MaxRequestBytes bounds the size of a speak request body.
const MaxRequestBytes = 1 << 20

// Engine is the part of the mathspeak engine the HTTP surface needs.
type Engine interface {
	Evaluate(ctx context.Context, tree *domain.Tree, id domain.NodeID, c domain.Constraint) ([]domain.Description, error)
	Resolve(c domain.Constraint) domain.Resolution
	Constraints() []domain.Constraint
	RuleCount(c domain.Constraint) int
	Generation() uint64
}

// Server serves speech over HTTP.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	defaults domain.Constraint
	metrics  http.Handler
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithDefaultConstraint sets the constraint used when a request names none.
func WithDefaultConstraint(c domain.Constraint) Option {
	return func(s *Server) {
		s.defaults = c.Normalize()
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server for engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:   engine,
		Streams:  NewStreamManager(),
		defaults: domain.DefaultConstraint,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Handler()
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/speak", s.Speak)
		r.Get("/constraints", s.GetConstraints)
		r.Get("/events", s.SubscribeEvents)
	})
	return enableCORS(r)
}

// NotifyReload tells event subscribers the rule base changed.
func (s *Server) NotifyReload(generation uint64) {
	s.Streams.Broadcast(fmt.Sprintf(`{"generation":%d}`, generation))
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SpeakRequest is the body of POST /v1/speak.
type SpeakRequest struct {
	Tree   json.RawMessage `json:"tree"`
	Node   *int            `json:"node,omitempty"`
	Domain string          `json:"domain,omitempty"`
	Style  string          `json:"style,omitempty"`
	Format string          `json:"format,omitempty"`
}

// SpeakResponse is the reply to POST /v1/speak.
type SpeakResponse struct {
	Constraint   domain.Constraint    `json:"constraint"`
	Resolved     domain.Constraint    `json:"resolved"`
	Format       speech.Format        `json:"format"`
	Output       string               `json:"output"`
	Descriptions []domain.Description `json:"descriptions"`
}

// ConstraintInfo is one entry of GET /v1/constraints.
type ConstraintInfo struct {
	domain.Constraint
	Rules int `json:"rules"`
}

// Speak handles POST /v1/speak.
func (s *Server) Speak(w http.ResponseWriter, r *http.Request) {
	var body SpeakRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("Speak: invalid request body", "err", err)
		return
	}
	if len(body.Tree) == 0 {
		writeError(w, http.StatusBadRequest, "tree is required")
		return
	}
	format, err := speech.ParseFormat(body.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tree, err := domain.DecodeTree(body.Tree)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := tree.Root()
	if body.Node != nil {
		id = domain.NodeID(*body.Node)
	}

	c := domain.Constraint{Domain: body.Domain, Style: body.Style}
	if c.Domain == "" {
		c.Domain = s.defaults.Domain
	}
	if c.Style == "" {
		c.Style = s.defaults.Style
	}

	seq, err := s.Engine.Evaluate(r.Context(), tree, id, c)
	if err != nil {
		status := statusOf(err)
		writeError(w, status, err.Error())
		if status >= http.StatusInternalServerError {
			s.logger.Error("Speak failed", "err", err, "constraint", c.String())
		}
		return
	}

	renderer, _ := speech.For(format)
	out, err := renderer.Render(seq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		s.logger.Error("Speak: render failed", "err", err)
		return
	}

	writeJSON(w, http.StatusOK, SpeakResponse{
		Constraint:   c.Normalize(),
		Resolved:     s.Engine.Resolve(c).Resolved,
		Format:       format,
		Output:       out,
		Descriptions: seq,
	})
}

// GetConstraints handles GET /v1/constraints.
func (s *Server) GetConstraints(w http.ResponseWriter, r *http.Request) {
	constraints := s.Engine.Constraints()
	resp := struct {
		Generation  uint64           `json:"generation"`
		Constraints []ConstraintInfo `json:"constraints"`
	}{
		Generation:  s.Engine.Generation(),
		Constraints: make([]ConstraintInfo, 0, len(constraints)),
	}
	for _, c := range constraints {
		resp.Constraints = append(resp.Constraints, ConstraintInfo{Constraint: c, Rules: s.Engine.RuleCount(c)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRecursionLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
