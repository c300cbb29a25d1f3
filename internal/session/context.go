package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Bounds caps the per-context caches. Zero fields fall back to defaults.
type Bounds struct {
	MaxTurns        int
	MaxSearches     int
	MaxProductViews int
}

const (
	defaultMaxTurns        = 5
	defaultMaxSearches     = 3
	defaultMaxProductViews = 10

	// keepTopResults bounds how many result summaries one search retains.
	keepTopResults = 5

	// summaryTextLimit truncates long messages inside the digest.
	summaryTextLimit = 100
)

func (b Bounds) withDefaults() Bounds {
	if b.MaxTurns <= 0 {
		b.MaxTurns = defaultMaxTurns
	}
	if b.MaxSearches <= 0 {
		b.MaxSearches = defaultMaxSearches
	}
	if b.MaxProductViews <= 0 {
		b.MaxProductViews = defaultMaxProductViews
	}
	return b
}

// Context holds the mutable conversational state for one (user, session)
// pair: a bounded turn window plus the shopping-state caches the dialogue
// agent needs for continuity. All mutators and readers serialize on the
// context's own lock, so independent users never contend.
type Context struct {
	userID    string
	sessionID string
	bounds    Bounds

	mu           sync.Mutex
	turns        []Turn
	activeCartID string
	searches     []SearchRecord
	productViews []ProductView
	shippingAddr *Address
	preferences  map[string]string
	lastActivity time.Time
}

func newContext(userID, sessionID string, bounds Bounds) *Context {
	return &Context{
		userID:       userID,
		sessionID:    sessionID,
		bounds:       bounds.withDefaults(),
		preferences:  make(map[string]string),
		lastActivity: time.Now().UTC(),
	}
}

// UserID returns the immutable user identity.
func (c *Context) UserID() string { return c.userID }

// SessionID returns the immutable session identity.
func (c *Context) SessionID() string { return c.sessionID }

// RecordTurn appends one user and one assistant entry sharing a timestamp,
// then drops the oldest entries once the window exceeds 2*MaxTurns.
func (c *Context) RecordTurn(userText, assistantText string, metadata map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	c.turns = append(c.turns,
		Turn{Role: RoleUser, Text: userText, Timestamp: now, Metadata: metadata},
		Turn{Role: RoleAssistant, Text: assistantText, Timestamp: now},
	)
	if max := c.bounds.MaxTurns * 2; len(c.turns) > max {
		c.turns = append(c.turns[:0:0], c.turns[len(c.turns)-max:]...)
	}
	c.lastActivity = now
}

// RecordSearch tracks a product search, keeping the top result summaries and
// the last MaxSearches queries.
func (c *Context) RecordSearch(query string, results []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := results
	if len(kept) > keepTopResults {
		kept = kept[:keepTopResults]
	}
	c.searches = append(c.searches, SearchRecord{
		Query:       query,
		Results:     append([]string(nil), kept...),
		ResultCount: len(results),
		Timestamp:   time.Now().UTC(),
	})
	if len(c.searches) > c.bounds.MaxSearches {
		c.searches = append(c.searches[:0:0], c.searches[len(c.searches)-c.bounds.MaxSearches:]...)
	}
	c.lastActivity = time.Now().UTC()
}

// RecordProductView tracks a product the user showed interest in, keeping the
// last MaxProductViews entries.
func (c *Context) RecordProductView(view ProductView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if view.Timestamp.IsZero() {
		view.Timestamp = time.Now().UTC()
	}
	c.productViews = append(c.productViews, view)
	if len(c.productViews) > c.bounds.MaxProductViews {
		c.productViews = append(c.productViews[:0:0], c.productViews[len(c.productViews)-c.bounds.MaxProductViews:]...)
	}
	c.lastActivity = time.Now().UTC()
}

// SetCart records the active cart id produced by a cart-creation call.
func (c *Context) SetCart(cartID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeCartID = cartID
	c.lastActivity = time.Now().UTC()
}

// ActiveCartID returns the current cart id, empty when none.
func (c *Context) ActiveCartID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeCartID
}

// SetShippingAddress stores the shipping address, last write wins.
func (c *Context) SetShippingAddress(addr Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := addr
	c.shippingAddr = &a
	c.lastActivity = time.Now().UTC()
}

// MergePreferences merges the given keys into the preference bag without
// dropping existing ones.
func (c *Context) MergePreferences(partial map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range partial {
		c.preferences[k] = v
	}
	c.lastActivity = time.Now().UTC()
}

// Summary renders a bounded digest of the current state for injection into
// the dialogue agent's prompt. Empty sections are omitted; output is
// deterministic for a given state.
func (c *Context) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sections []string

	if len(c.turns) > 0 {
		var pairs []string
		for i := 0; i+1 < len(c.turns); i += 2 {
			pairs = append(pairs, fmt.Sprintf("User: %s\nAssistant: %s",
				truncate(c.turns[i].Text, summaryTextLimit),
				truncate(c.turns[i+1].Text, summaryTextLimit)))
		}
		if len(pairs) > 3 {
			pairs = pairs[len(pairs)-3:]
		}
		if len(pairs) > 0 {
			sections = append(sections, "**Recent Conversation:**\n"+strings.Join(pairs, "\n\n"))
		}
	}

	if c.activeCartID != "" {
		sections = append(sections, "**Active Cart:** "+c.activeCartID)
	}

	if len(c.searches) > 0 {
		queries := make([]string, 0, 3)
		for _, s := range lastN(c.searches, 3) {
			queries = append(queries, s.Query)
		}
		sections = append(sections, "**Recent Searches:** "+strings.Join(queries, ", "))
	}

	if len(c.productViews) > 0 {
		views := make([]string, 0, 3)
		for _, v := range lastN(c.productViews, 3) {
			views = append(views, fmt.Sprintf("%s ($%s)", v.Title, v.Price))
		}
		sections = append(sections, "**Products Viewed:** "+strings.Join(views, ", "))
	}

	if c.shippingAddr != nil {
		a := c.shippingAddr
		sections = append(sections, fmt.Sprintf("**Shipping Address:** %s, %s, %s", a.City, a.Province, a.Country))
	}

	if len(c.preferences) > 0 {
		keys := make([]string, 0, len(c.preferences))
		for k := range c.preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		prefs := make([]string, 0, len(keys))
		for _, k := range keys {
			prefs = append(prefs, k+": "+c.preferences[k])
		}
		sections = append(sections, "**Preferences:** "+strings.Join(prefs, ", "))
	}

	return strings.Join(sections, "\n\n")
}

// Reset clears all state except identity.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
	c.activeCartID = ""
	c.searches = nil
	c.productViews = nil
	c.shippingAddr = nil
	c.preferences = make(map[string]string)
	c.lastActivity = time.Now().UTC()
}

// LastActivity reports when the context was last mutated.
func (c *Context) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// TurnCount reports how many entries the window currently buffers.
func (c *Context) TurnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Turns returns a copy of the buffered window in insertion order.
func (c *Context) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.turns...)
}

// Snapshot serializes the full context state.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		UserID:       c.userID,
		SessionID:    c.sessionID,
		MaxTurns:     c.bounds.MaxTurns,
		Turns:        append([]Turn(nil), c.turns...),
		ActiveCartID: c.activeCartID,
		Searches:     append([]SearchRecord(nil), c.searches...),
		ProductViews: append([]ProductView(nil), c.productViews...),
		LastActivity: c.lastActivity,
	}
	if c.shippingAddr != nil {
		a := *c.shippingAddr
		snap.ShippingAddress = &a
	}
	if len(c.preferences) > 0 {
		snap.Preferences = make(map[string]string, len(c.preferences))
		for k, v := range c.preferences {
			snap.Preferences[k] = v
		}
	}
	return snap
}

// Restore reconstructs an equivalent context from a snapshot.
func Restore(snap Snapshot, bounds Bounds) *Context {
	if snap.MaxTurns > 0 {
		bounds.MaxTurns = snap.MaxTurns
	}
	c := newContext(snap.UserID, snap.SessionID, bounds)
	c.turns = append([]Turn(nil), snap.Turns...)
	c.activeCartID = snap.ActiveCartID
	c.searches = append([]SearchRecord(nil), snap.Searches...)
	c.productViews = append([]ProductView(nil), snap.ProductViews...)
	if snap.ShippingAddress != nil {
		a := *snap.ShippingAddress
		c.shippingAddr = &a
	}
	for k, v := range snap.Preferences {
		c.preferences[k] = v
	}
	if !snap.LastActivity.IsZero() {
		c.lastActivity = snap.LastActivity
	}
	return c
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
