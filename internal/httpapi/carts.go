package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/beholdhq/behold-agent/internal/attribution"
	"github.com/beholdhq/behold-agent/internal/shopify"
	"github.com/beholdhq/behold-agent/internal/tracking"
)

type createCartRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Lines     []struct {
		MerchandiseID string `json:"merchandise_id"`
		Quantity      int    `json:"quantity"`
	} `json:"lines"`
}

type createCartResponse struct {
	CartID      string  `json:"cart_id"`
	CheckoutURL string  `json:"checkout_url,omitempty"`
	Total       float64 `json:"total,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

// handleCreateCart creates an attributed cart for a conversation. The
// conversation id (session id) and user id travel on the cart as custom
// attributes so the eventual order webhook can find its way back.
func (s *Server) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	if s.carts == nil {
		respondError(w, http.StatusServiceUnavailable, "storefront_disabled", "storefront client is not configured")
		return
	}

	var req createCartRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if req.UserID == "" || req.SessionID == "" || len(req.Lines) == 0 {
		respondError(w, http.StatusBadRequest, "missing_fields", "user_id, session_id and lines are required")
		return
	}

	lines := make([]shopify.CartLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		qty := l.Quantity
		if qty <= 0 {
			qty = 1
		}
		lines = append(lines, shopify.CartLine{MerchandiseID: l.MerchandiseID, Quantity: qty})
	}

	tuple := attribution.Tuple{
		ConversationID: req.SessionID,
		UserID:         req.UserID,
		IssuedAt:       time.Now().UTC(),
	}

	cart, err := s.carts.CreateCart(r.Context(), lines, tuple)
	if err != nil {
		log.Printf("cart creation failed for conversation %s: %v", req.SessionID, err)
		respondError(w, http.StatusBadGateway, "cart_create_failed", "storefront rejected the cart")
		return
	}

	// Record first, then update the live context; neither holds the
	// context's lock across store I/O.
	if err := s.tracker.SaveCart(r.Context(), tracking.CartRecord{
		ID:             cart.ID,
		ConversationID: req.SessionID,
		UserID:         req.UserID,
		CheckoutURL:    cart.CheckoutURL,
		Total:          cart.Total,
		Currency:       cart.Currency,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		log.Printf("cart %s created but not recorded: %v", cart.ID, err)
	}

	s.contexts.GetOrCreate(req.UserID, req.SessionID).SetCart(cart.ID)
	s.metrics.CartsCreated.Inc()
	s.metrics.ActiveContexts.Set(float64(s.contexts.Len()))

	respondJSON(w, http.StatusCreated, createCartResponse{
		CartID:      cart.ID,
		CheckoutURL: cart.CheckoutURL,
		Total:       cart.Total,
		Currency:    cart.Currency,
	})
}
