package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beholdhq/behold-agent/internal/tracking"
)

// handleGetContext returns a full snapshot of one conversation context for
// operator debugging.
func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	sessionID := chi.URLParam(r, "sessionID")

	c, ok := s.contexts.Get(userID, sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "context_not_found", "no context for this user and session")
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

// handleDeleteContext clears one conversation context (user-requested reset).
func (s *Server) handleDeleteContext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	sessionID := chi.URLParam(r, "sessionID")

	if !s.contexts.Delete(userID, sessionID) {
		respondError(w, http.StatusNotFound, "context_not_found", "no context for this user and session")
		return
	}
	s.metrics.ActiveContexts.Set(float64(s.contexts.Len()))
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// handleResetContext wipes a context's state while keeping it registered, so
// the user can start over without losing the session identity.
func (s *Server) handleResetContext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	sessionID := chi.URLParam(r, "sessionID")

	c, ok := s.contexts.Get(userID, sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "context_not_found", "no context for this user and session")
		return
	}
	c.Reset()
	respondJSON(w, http.StatusOK, map[string]any{"reset": true})
}

// handleClearContexts drops every registered context.
func (s *Server) handleClearContexts(w http.ResponseWriter, _ *http.Request) {
	s.contexts.Clear()
	s.metrics.ActiveContexts.Set(0)
	respondJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

// handleContextSweep triggers an immediate TTL sweep.
func (s *Server) handleContextSweep(w http.ResponseWriter, r *http.Request) {
	removed := s.contexts.SweepExpired(s.cfg.ContextTTL)
	s.metrics.ActiveContexts.Set(float64(s.contexts.Len()))
	respondJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleContextStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.contexts.Stats())
}

// handleConversationStats exposes the persisted funnel aggregate for one
// conversation.
func (s *Server) handleConversationStats(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	stats, err := s.tracker.ConversationStats(r.Context(), conversationID)
	if errors.Is(err, tracking.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation_not_found", "no recorded activity for this conversation")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_unavailable", "could not load conversation stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
