package session

import "time"

// Role identifies who produced a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single conversation entry with metadata.
type Turn struct {
	Role      Role              `json:"role"`
	Text      string            `json:"text"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SearchRecord captures one product search and its top result summaries.
type SearchRecord struct {
	Query       string    `json:"query"`
	Results     []string  `json:"results"`
	ResultCount int       `json:"result_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// ProductView is a compact record of a product the user showed interest in.
type ProductView struct {
	ProductID string    `json:"product_id"`
	Title     string    `json:"title"`
	Price     string    `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Address is a structured shipping address, last-write-wins.
type Address struct {
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Snapshot is the full serialized form of a conversation context. Restoring a
// snapshot yields an equivalent context with the same bounds and window
// contents.
type Snapshot struct {
	UserID          string            `json:"user_id"`
	SessionID       string            `json:"session_id"`
	MaxTurns        int               `json:"max_turns"`
	Turns           []Turn            `json:"conversation_history"`
	ActiveCartID    string            `json:"active_cart_id,omitempty"`
	Searches        []SearchRecord    `json:"recent_searches,omitempty"`
	ProductViews    []ProductView     `json:"recent_product_views,omitempty"`
	ShippingAddress *Address          `json:"shipping_address,omitempty"`
	Preferences     map[string]string `json:"preferences,omitempty"`
	LastActivity    time.Time         `json:"last_activity"`
}

// Stats is a point-in-time aggregate over the whole store.
type Stats struct {
	ActiveSessions   int `json:"active_sessions"`
	BufferedMessages int `json:"total_buffered_messages"`
	ActiveCarts      int `json:"active_carts"`
}
