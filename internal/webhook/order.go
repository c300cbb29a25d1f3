package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/beholdhq/behold-agent/internal/attribution"
)

// ErrMalformed marks payloads that will never parse; the HTTP layer maps it
// to a client error so the platform stops redelivering them.
var ErrMalformed = errors.New("malformed order payload")

// OrderPayload is the subset of an orders/create delivery this service reads.
type OrderPayload struct {
	ID            json.Number `json:"id"`
	Name          string      `json:"name"`
	OrderNumber   int64       `json:"order_number"`
	Email         string      `json:"email"`
	Currency      string      `json:"currency"`
	TotalPrice    string      `json:"total_price"`
	SubtotalPrice string      `json:"subtotal_price"`
	TotalTax      string      `json:"total_tax"`
	TotalDiscount string      `json:"total_discounts"`
	CartToken     string      `json:"cart_token"`

	TotalShippingPriceSet struct {
		ShopMoney struct {
			Amount string `json:"amount"`
		} `json:"shop_money"`
	} `json:"total_shipping_price_set"`

	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`

	// Attribution may arrive under either attribute source depending on how
	// the cart converted; both are scanned.
	NoteAttributes   []attribution.Attribute `json:"note_attributes"`
	CustomAttributes []attribution.Attribute `json:"customAttributes"`

	LineItems []LineItem `json:"line_items"`
}

// LineItem is one purchased item on the order.
type LineItem struct {
	ProductID json.Number `json:"product_id"`
	VariantID json.Number `json:"variant_id"`
	Title     string      `json:"title"`
	Quantity  int         `json:"quantity"`
	Price     string      `json:"price"`
	SKU       string      `json:"sku"`
}

// ParseOrder decodes a verified raw delivery body.
func ParseOrder(raw []byte) (OrderPayload, error) {
	var order OrderPayload
	if err := json.Unmarshal(raw, &order); err != nil {
		return OrderPayload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if order.ID.String() == "" {
		return OrderPayload{}, fmt.Errorf("%w: missing order id", ErrMalformed)
	}
	return order, nil
}

// OrderID returns the platform-assigned globally unique order id.
func (o OrderPayload) OrderID() string {
	return o.ID.String()
}

// CustomerEmail prefers the top-level email and falls back to the customer
// record.
func (o OrderPayload) CustomerEmail() string {
	if o.Email != "" {
		return o.Email
	}
	return o.Customer.Email
}

// CartID reconstructs the Storefront cart gid from the order's cart token,
// empty when the order carries none.
func (o OrderPayload) CartID() string {
	if o.CartToken == "" {
		return ""
	}
	return "gid://shopify/Cart/" + o.CartToken
}

// Attribution recovers the correlation tuple stamped at cart creation.
func (o OrderPayload) Attribution() (attribution.Tuple, bool) {
	return attribution.Extract(o.CustomAttributes, o.NoteAttributes)
}

func (o OrderPayload) Total() float64    { return parseAmount(o.TotalPrice) }
func (o OrderPayload) Subtotal() float64 { return parseAmount(o.SubtotalPrice) }
func (o OrderPayload) Tax() float64      { return parseAmount(o.TotalTax) }
func (o OrderPayload) Discount() float64 { return parseAmount(o.TotalDiscount) }
func (o OrderPayload) Shipping() float64 {
	return parseAmount(o.TotalShippingPriceSet.ShopMoney.Amount)
}

// parseAmount treats missing or malformed money strings as zero; a bad
// shipping subfield must not fail the whole order.
func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
