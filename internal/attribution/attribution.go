// Package attribution stamps outbound cart writes with conversation
// identifiers and recovers them from order payloads, so an order completed
// days later can be traced back to the conversation that created its cart.
package attribution

import "time"

// Reserved attribute keys carried on carts and preserved by the platform
// through checkout onto the resulting order.
const (
	KeyConversationID = "_agent_conversation_id"
	KeyUserID         = "_agent_user_id"
	KeySource         = "_agent_source"
	KeyTimestamp      = "_agent_timestamp"
)

// DefaultSource marks carts created by this agent.
const DefaultSource = "behold_whatsapp_agent"

// MaxAttributeValueLen is Shopify's documented limit on a cart/order custom
// attribute value. Longer values are truncated, never rejected.
const MaxAttributeValueLen = 255

// Attribute is one key/value pair on a cart or order. Order webhooks deliver
// "note attributes" under "name" while the cart APIs use "key"; both spellings
// are accepted on the way in and Key is emitted on the way out.
type Attribute struct {
	Key   string `json:"key,omitempty"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value"`
}

func (a Attribute) key() string {
	if a.Key != "" {
		return a.Key
	}
	return a.Name
}

// Tuple is the correlation identity stamped onto a cart.
type Tuple struct {
	ConversationID string
	UserID         string
	Source         string
	IssuedAt       time.Time
}
