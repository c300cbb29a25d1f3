package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/beholdhq/behold-agent/internal/webhook"
)

// OutcomeKind classifies what a correlation did. Unattributed and duplicate
// deliveries are expected outcomes, not errors.
type OutcomeKind string

const (
	OutcomeRecorded     OutcomeKind = "recorded"
	OutcomeDuplicate    OutcomeKind = "duplicate"
	OutcomeUnattributed OutcomeKind = "unattributed"
)

// Outcome reports a correlation result with the identifiers needed for
// logging and response bodies.
type Outcome struct {
	Kind           OutcomeKind `json:"outcome"`
	OrderID        string      `json:"order_id"`
	ConversationID string      `json:"conversation_id,omitempty"`
	UserID         string      `json:"user_id,omitempty"`
	Revenue        float64     `json:"revenue,omitempty"`
	Currency       string      `json:"currency,omitempty"`
}

// Correlator records verified order webhooks against the conversations that
// created their carts, exactly once per order id. Callers must have verified
// the delivery signature before invoking it.
type Correlator struct {
	store Store
}

func NewCorrelator(store Store) *Correlator {
	return &Correlator{store: store}
}

// Correlate extracts the attribution tuple from a parsed order and persists
// an OrderRecord plus conversation aggregates. Redelivered orders are
// detected by the store's insert-if-absent gate and update nothing.
// Persistence errors propagate so the transport layer can ask the platform
// to retry.
func (c *Correlator) Correlate(ctx context.Context, order webhook.OrderPayload) (Outcome, error) {
	orderID := order.OrderID()

	tuple, ok := order.Attribution()
	if !ok {
		log.Printf("order %s has no agent attribution, skipping", orderID)
		return Outcome{Kind: OutcomeUnattributed, OrderID: orderID}, nil
	}

	record := OrderRecord{
		ID:             orderID,
		ConversationID: tuple.ConversationID,
		UserID:         tuple.UserID,
		CartID:         order.CartID(),
		OrderNumber:    orderNumber(order),
		Total:          order.Total(),
		Subtotal:       order.Subtotal(),
		Tax:            order.Tax(),
		Shipping:       order.Shipping(),
		Discount:       order.Discount(),
		Currency:       order.Currency,
		Items:          orderItems(order),
		CustomerEmail:  order.CustomerEmail(),
		Source:         tuple.Source,
		ReceivedAt:     time.Now().UTC(),
	}

	inserted, err := c.store.InsertOrderIfAbsent(ctx, record)
	if err != nil {
		return Outcome{}, fmt.Errorf("record order %s: %w", orderID, err)
	}

	outcome := Outcome{
		OrderID:        orderID,
		ConversationID: tuple.ConversationID,
		UserID:         tuple.UserID,
		Revenue:        record.Total,
		Currency:       record.Currency,
	}

	if !inserted {
		log.Printf("order %s already recorded, ignoring redelivery", orderID)
		outcome.Kind = OutcomeDuplicate
		return outcome, nil
	}

	if err := c.store.RecordConversationOrder(ctx, tuple.ConversationID, tuple.UserID, record.Total); err != nil {
		return Outcome{}, fmt.Errorf("update conversation %s aggregates: %w", tuple.ConversationID, err)
	}

	if record.CartID != "" {
		// The cart record only exists when the agent created the cart through
		// this service; a missing one is not a failure.
		if err := c.store.MarkCartConverted(ctx, record.CartID, orderID); err != nil && !errors.Is(err, ErrNotFound) {
			return Outcome{}, fmt.Errorf("mark cart %s converted: %w", record.CartID, err)
		}
	}

	log.Printf("recorded order %s for conversation %s, revenue %.2f %s",
		orderID, tuple.ConversationID, record.Total, record.Currency)
	outcome.Kind = OutcomeRecorded
	return outcome, nil
}

func orderNumber(order webhook.OrderPayload) string {
	if order.OrderNumber != 0 {
		return fmt.Sprintf("%d", order.OrderNumber)
	}
	return order.Name
}

func orderItems(order webhook.OrderPayload) []OrderItem {
	if len(order.LineItems) == 0 {
		return nil
	}
	items := make([]OrderItem, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		items = append(items, OrderItem{
			ProductID: li.ProductID.String(),
			VariantID: li.VariantID.String(),
			Title:     li.Title,
			Quantity:  li.Quantity,
			Price:     li.Price,
			SKU:       li.SKU,
		})
	}
	return items
}
