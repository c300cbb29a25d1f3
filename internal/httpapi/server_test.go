package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beholdhq/behold-agent/internal/agent"
	"github.com/beholdhq/behold-agent/internal/attribution"
	"github.com/beholdhq/behold-agent/internal/config"
	"github.com/beholdhq/behold-agent/internal/observability"
	"github.com/beholdhq/behold-agent/internal/protocol"
	"github.com/beholdhq/behold-agent/internal/session"
	"github.com/beholdhq/behold-agent/internal/shopify"
	"github.com/beholdhq/behold-agent/internal/tracking"
	"github.com/beholdhq/behold-agent/internal/webhook"
)

type stubCartCreator struct {
	cart    shopify.Cart
	err     error
	gotTup  attribution.Tuple
	created int
}

func (s *stubCartCreator) CreateCart(_ context.Context, _ []shopify.CartLine, tuple attribution.Tuple) (shopify.Cart, error) {
	s.created++
	s.gotTup = tuple
	if s.err != nil {
		return shopify.Cart{}, s.err
	}
	return s.cart, nil
}

type testEnv struct {
	server   *httptest.Server
	contexts *session.Store
	store    *tracking.InMemoryStore
	carts    *stubCartCreator
}

func newTestEnv(t *testing.T, namespace string) *testEnv {
	t.Helper()

	cfg := config.Config{ContextTTL: 2 * time.Hour, AllowAnyOrigin: true}
	verifier, err := webhook.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	store := tracking.NewInMemoryStore()
	contexts := session.NewStore(cfg.ContextTTL, session.Bounds{})
	carts := &stubCartCreator{cart: shopify.Cart{
		ID:          "gid://shopify/Cart/abc123",
		CheckoutURL: "https://shop.example/checkout/abc123",
		Total:       42.50,
		Currency:    "BRL",
	}}

	srv := New(cfg, contexts, verifier, tracking.NewCorrelator(store), carts, store,
		agent.NewMockResponder(), observability.NewMetrics(namespace))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, contexts: contexts, store: store, carts: carts}
}

func TestGetAndDeleteContext(t *testing.T) {
	env := newTestEnv(t, "test_api_ctx")
	env.contexts.GetOrCreate("u1", "s1").RecordTurn("any sandals?", "we have three models", nil)

	res, err := http.Get(env.server.URL + "/v1/contexts/u1/s1")
	if err != nil {
		t.Fatalf("GET context: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var snap session.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.SessionID != "s1" || len(snap.Turns) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/v1/contexts/u1/s1", nil)
	dres, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE context: %v", err)
	}
	dres.Body.Close()
	if dres.StatusCode != http.StatusOK {
		t.Fatalf("DELETE status = %d, want %d", dres.StatusCode, http.StatusOK)
	}
	if _, ok := env.contexts.Get("u1", "s1"); ok {
		t.Fatalf("context still present after delete")
	}

	// A second delete is a 404, not a crash.
	dres2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("second DELETE: %v", err)
	}
	dres2.Body.Close()
	if dres2.StatusCode != http.StatusNotFound {
		t.Fatalf("second DELETE status = %d, want %d", dres2.StatusCode, http.StatusNotFound)
	}
}

func TestResetAndClearContexts(t *testing.T) {
	env := newTestEnv(t, "test_api_reset")
	c := env.contexts.GetOrCreate("u1", "s1")
	c.RecordTurn("hello", "hi there", nil)
	c.SetCart("gid://shopify/Cart/x")
	env.contexts.GetOrCreate("u2", "s2")

	res, err := http.Post(env.server.URL+"/v1/contexts/u1/s1/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reset: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if c.TurnCount() != 0 || c.ActiveCartID() != "" {
		t.Fatalf("context not cleared by reset: turns=%d cart=%q", c.TurnCount(), c.ActiveCartID())
	}
	// Reset keeps the context registered.
	if _, ok := env.contexts.Get("u1", "s1"); !ok {
		t.Fatalf("reset dropped the context from the registry")
	}

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/v1/contexts", nil)
	cres, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE all contexts: %v", err)
	}
	cres.Body.Close()
	if cres.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d, want %d", cres.StatusCode, http.StatusOK)
	}
	if env.contexts.Len() != 0 {
		t.Fatalf("Len() = %d after clear, want 0", env.contexts.Len())
	}
}

func TestGetContextNotFound(t *testing.T) {
	env := newTestEnv(t, "test_api_ctx_404")

	res, err := http.Get(env.server.URL + "/v1/contexts/nobody/nothing")
	if err != nil {
		t.Fatalf("GET context: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestContextStatsAndSweep(t *testing.T) {
	env := newTestEnv(t, "test_api_sweep")
	env.contexts.GetOrCreate("u1", "s1")
	env.contexts.GetOrCreate("u2", "s2")

	res, err := http.Get(env.server.URL + "/v1/contexts/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer res.Body.Close()
	var stats session.Stats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ActiveSessions != 2 {
		t.Fatalf("ActiveSessions = %d, want 2", stats.ActiveSessions)
	}

	// Nothing is stale yet, so a sweep removes nothing.
	sres, err := http.Post(env.server.URL+"/v1/contexts/sweep", "application/json", nil)
	if err != nil {
		t.Fatalf("POST sweep: %v", err)
	}
	defer sres.Body.Close()
	var swept struct {
		Removed int `json:"removed"`
	}
	if err := json.NewDecoder(sres.Body).Decode(&swept); err != nil {
		t.Fatalf("decode sweep: %v", err)
	}
	if swept.Removed != 0 {
		t.Fatalf("removed = %d, want 0", swept.Removed)
	}
	if env.contexts.Len() != 2 {
		t.Fatalf("Len() = %d after sweep, want 2", env.contexts.Len())
	}
}

func TestCreateCartStampsAttribution(t *testing.T) {
	env := newTestEnv(t, "test_api_cart")

	body := `{"user_id":"u1","session_id":"s1","lines":[{"merchandise_id":"gid://shopify/ProductVariant/1","quantity":2}]}`
	res, err := http.Post(env.server.URL+"/v1/carts", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST cart: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var got createCartResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.CartID != env.carts.cart.ID {
		t.Fatalf("cart_id = %q, want %q", got.CartID, env.carts.cart.ID)
	}

	if env.carts.gotTup.ConversationID != "s1" || env.carts.gotTup.UserID != "u1" {
		t.Fatalf("cart created with tuple %+v", env.carts.gotTup)
	}
	if env.carts.gotTup.IssuedAt.IsZero() {
		t.Fatalf("tuple missing issue timestamp")
	}

	cart, err := env.store.GetCart(context.Background(), env.carts.cart.ID)
	if err != nil {
		t.Fatalf("cart not recorded: %v", err)
	}
	if cart.ConversationID != "s1" {
		t.Fatalf("recorded cart conversation = %q, want s1", cart.ConversationID)
	}

	c, ok := env.contexts.Get("u1", "s1")
	if !ok || c.ActiveCartID() != env.carts.cart.ID {
		t.Fatalf("context does not carry the active cart id")
	}
}

func TestCreateCartValidation(t *testing.T) {
	env := newTestEnv(t, "test_api_cart_bad")

	for name, body := range map[string]string{
		"no lines":   `{"user_id":"u1","session_id":"s1","lines":[]}`,
		"no session": `{"user_id":"u1","lines":[{"merchandise_id":"m","quantity":1}]}`,
		"bad json":   `{"user_id":`,
	} {
		res, err := http.Post(env.server.URL+"/v1/carts", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("%s: POST cart: %v", name, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want %d", name, res.StatusCode, http.StatusBadRequest)
		}
	}
	if env.carts.created != 0 {
		t.Fatalf("storefront called %d times for invalid requests", env.carts.created)
	}
}

func TestCreateCartStorefrontDisabled(t *testing.T) {
	cfg := config.Config{ContextTTL: 2 * time.Hour, AllowAnyOrigin: true}
	verifier, err := webhook.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	store := tracking.NewInMemoryStore()
	srv := New(cfg, session.NewStore(cfg.ContextTTL, session.Bounds{}), verifier,
		tracking.NewCorrelator(store), nil, store, agent.NewMockResponder(),
		observability.NewMetrics("test_api_cart_off"))
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{"user_id":"u1","session_id":"s1","lines":[{"merchandise_id":"m","quantity":1}]}`
	res, err := http.Post(ts.URL+"/v1/carts", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST cart: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestConversationStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, "test_api_convstats")
	if err := env.store.RecordConversationOrder(context.Background(), "s1", "u1", 99.90); err != nil {
		t.Fatalf("seed stats: %v", err)
	}

	res, err := http.Get(env.server.URL + "/v1/conversations/s1/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var stats tracking.ConversationStats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalRevenue != 99.90 || stats.Orders != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	missing, err := http.Get(env.server.URL + "/v1/conversations/unknown/stats")
	if err != nil {
		t.Fatalf("GET missing stats: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

func TestChatWebSocketConversation(t *testing.T) {
	env := newTestEnv(t, "test_api_chat")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.ClientMessage{
		Type:   protocol.TypeClientMessage,
		UserID: "u1",
		Text:   "do you have running shoes?",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The first turn on a fresh socket announces the minted session.
	var started protocol.SystemEvent
	if err := conn.ReadJSON(&started); err != nil {
		t.Fatalf("read system event: %v", err)
	}
	if started.Type != protocol.TypeSystemEvent || started.Event != "session_started" || started.SessionID == "" {
		t.Fatalf("system event = %+v", started)
	}

	var reply protocol.AssistantMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != protocol.TypeAssistantMessage || reply.Text == "" {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.SessionID != started.SessionID {
		t.Fatalf("reply session %q != started session %q", reply.SessionID, started.SessionID)
	}

	c, ok := env.contexts.Get("u1", started.SessionID)
	if !ok {
		t.Fatalf("no context recorded for the chat session")
	}
	if c.TurnCount() != 2 {
		t.Fatalf("TurnCount() = %d, want 2", c.TurnCount())
	}
}

func TestChatWebSocketRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t, "test_api_chat_badmsg")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var ev protocol.ErrorEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read error event: %v", err)
	}
	if ev.Type != protocol.TypeErrorEvent || ev.Code != "bad_message" {
		t.Fatalf("error event = %+v", ev)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, "test_api_health")

	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(env.server.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}
