// Package tracking persists agent-attributed commerce activity (carts,
// orders, conversation aggregates) and correlates order webhooks back to the
// conversations that produced them.
package tracking

import "time"

// OrderRecord is one completed order attributed to a conversation. Exactly
// one record exists per platform order id.
type OrderRecord struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	UserID         string      `json:"user_id"`
	CartID         string      `json:"cart_id,omitempty"`
	OrderNumber    string      `json:"order_number,omitempty"`
	Total          float64     `json:"total"`
	Subtotal       float64     `json:"subtotal"`
	Tax            float64     `json:"tax"`
	Shipping       float64     `json:"shipping"`
	Discount       float64     `json:"discount"`
	Currency       string      `json:"currency"`
	Items          []OrderItem `json:"items,omitempty"`
	CustomerEmail  string      `json:"customer_email,omitempty"`
	Source         string      `json:"source,omitempty"`
	ReceivedAt     time.Time   `json:"received_at"`
}

// OrderItem is one purchased line on an order.
type OrderItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	SKU       string `json:"sku,omitempty"`
}

// CartRecord tracks a cart the agent created, and whether it converted.
type CartRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	CheckoutURL    string    `json:"checkout_url,omitempty"`
	Total          float64   `json:"total"`
	Currency       string    `json:"currency,omitempty"`
	Converted      bool      `json:"converted"`
	OrderID        string    `json:"order_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationStats is the per-conversation funnel aggregate.
type ConversationStats struct {
	ConversationID string  `json:"conversation_id"`
	UserID         string  `json:"user_id"`
	OrderCompleted bool    `json:"order_completed"`
	TotalRevenue   float64 `json:"total_revenue"`
	Orders         int     `json:"orders"`
}
