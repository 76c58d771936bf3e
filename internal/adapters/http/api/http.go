// Package api wires the HTTP surface: the evaluation webhook, the admin
// registration/status endpoints and health.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/giteval/internal/app"
	"github.com/okian/giteval/internal/domain/signature"
)

// Default header names. The signature header carries the grading
// pipeline's HMAC token; the delivery header its retry-stable id.
const (
	DefaultSignatureHeader = "X-Signature-256"
	DeliveryIDHeader       = "X-Delivery-ID"
)

// Server bundles the HTTP handlers.
type Server struct {
	webhookHandler  *WebhookHandler
	registerHandler *RegisterHandler
	statusHandler   *StatusHandler
	healthHandler   *HealthHandler
	auth            *Authenticator
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithSignatureHeader overrides the webhook signature header name.
func WithSignatureHeader(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.webhookHandler.header = name
		}
	}
}

// NewServer creates the API server over the core service.
func NewServer(svc *app.Service, verifier *signature.Verifier, auth *Authenticator, opts ...Option) *Server {
	s := &Server{
		webhookHandler:  NewWebhookHandler(svc, verifier),
		registerHandler: NewRegisterHandler(svc),
		statusHandler:   NewStatusHandler(svc),
		healthHandler:   NewHealthHandler(),
		auth:            auth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/webhook/eval", MetricsMiddleware(s.webhookHandler.HandleEval, "webhook"))
	mux.HandleFunc("/register", MetricsMiddleware(s.auth.Require(s.registerHandler.HandleRegister), "register"))
	mux.HandleFunc("/status/", MetricsMiddleware(s.auth.Require(s.statusHandler.HandleStatus), "status"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
