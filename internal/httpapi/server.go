package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/beholdhq/behold-agent/internal/agent"
	"github.com/beholdhq/behold-agent/internal/attribution"
	"github.com/beholdhq/behold-agent/internal/config"
	"github.com/beholdhq/behold-agent/internal/observability"
	"github.com/beholdhq/behold-agent/internal/session"
	"github.com/beholdhq/behold-agent/internal/shopify"
	"github.com/beholdhq/behold-agent/internal/tracking"
	"github.com/beholdhq/behold-agent/internal/webhook"
)

// Correlator records a verified order against its conversation.
type Correlator interface {
	Correlate(ctx context.Context, order webhook.OrderPayload) (tracking.Outcome, error)
}

// CartCreator creates an attributed cart on the commerce platform.
type CartCreator interface {
	CreateCart(ctx context.Context, lines []shopify.CartLine, tuple attribution.Tuple) (shopify.Cart, error)
}

type Server struct {
	cfg        config.Config
	contexts   *session.Store
	verifier   *webhook.Verifier
	correlator Correlator
	carts      CartCreator
	tracker    tracking.Store
	responder  agent.Responder
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
}

func New(
	cfg config.Config,
	contexts *session.Store,
	verifier *webhook.Verifier,
	correlator Correlator,
	carts CartCreator,
	tracker tracking.Store,
	responder agent.Responder,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:        cfg,
		contexts:   contexts,
		verifier:   verifier,
		correlator: correlator,
		carts:      carts,
		tracker:    tracker,
		responder:  responder,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up; other sites must not be
				// able to drive a user's chat session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/webhooks/shopify/orders", s.handleOrderWebhook)

	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Post("/v1/carts", s.handleCreateCart)

	r.Get("/v1/contexts/stats", s.handleContextStats)
	r.Post("/v1/contexts/sweep", s.handleContextSweep)
	r.Delete("/v1/contexts", s.handleClearContexts)
	r.Get("/v1/contexts/{userID}/{sessionID}", s.handleGetContext)
	r.Delete("/v1/contexts/{userID}/{sessionID}", s.handleDeleteContext)
	r.Post("/v1/contexts/{userID}/{sessionID}/reset", s.handleResetContext)
	r.Get("/v1/conversations/{conversationID}/stats", s.handleConversationStats)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
