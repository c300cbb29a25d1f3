// Package shopify calls the Storefront GraphQL API. Cart creation is the
// attribution boundary: every cart leaves this process already stamped with
// the conversation identifiers.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beholdhq/behold-agent/internal/attribution"
)

// Client talks to one shop's Storefront API.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

// Config identifies the target shop.
type Config struct {
	Shop       string
	APIVersion string
	Token      string
}

func NewClient(cfg Config) (*Client, error) {
	shop := strings.TrimSpace(cfg.Shop)
	if shop == "" {
		return nil, fmt.Errorf("shopify shop not configured")
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = "2025-07"
	}
	return &Client{
		endpoint: fmt.Sprintf("https://%s.myshopify.com/api/%s/graphql.json", shop, version),
		token:    strings.TrimSpace(cfg.Token),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// CartLine is one item to put in a new cart.
type CartLine struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

// CartInput is the cartCreate mutation input.
type CartInput struct {
	Lines      []CartLine              `json:"lines"`
	Attributes []attribution.Attribute `json:"attributes,omitempty"`
}

// Cart is the subset of the created cart this service uses.
type Cart struct {
	ID          string
	CheckoutURL string
	Total       float64
	Currency    string
}

const cartCreateMutation = `
mutation cartCreate($input: CartInput!) {
    cartCreate(input: $input) {
        cart {
            id
            checkoutUrl
            attributes {
                key
                value
            }
            cost {
                totalAmount {
                    amount
                    currencyCode
                }
            }
        }
        userErrors {
            field
            message
        }
    }
}`

// CreateCart creates a cart for the given lines, stamping the attribution
// tuple into the input before submission so the eventual order webhook can
// be traced back to the conversation.
func (c *Client) CreateCart(ctx context.Context, lines []CartLine, tuple attribution.Tuple) (Cart, error) {
	input := CartInput{
		Lines:      lines,
		Attributes: attribution.Tag(nil, tuple),
	}

	var result struct {
		CartCreate struct {
			Cart struct {
				ID          string `json:"id"`
				CheckoutURL string `json:"checkoutUrl"`
				Cost        struct {
					TotalAmount struct {
						Amount       string `json:"amount"`
						CurrencyCode string `json:"currencyCode"`
					} `json:"totalAmount"`
				} `json:"cost"`
			} `json:"cart"`
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"cartCreate"`
	}

	if err := c.execute(ctx, cartCreateMutation, map[string]any{"input": input}, &result); err != nil {
		return Cart{}, err
	}
	if errs := result.CartCreate.UserErrors; len(errs) > 0 {
		return Cart{}, fmt.Errorf("cart creation rejected: %s", errs[0].Message)
	}

	created := result.CartCreate.Cart
	if created.ID == "" {
		return Cart{}, fmt.Errorf("cart creation returned no cart")
	}

	cart := Cart{
		ID:          created.ID,
		CheckoutURL: created.CheckoutURL,
		Currency:    created.Cost.TotalAmount.CurrencyCode,
	}
	if total, err := strconv.ParseFloat(created.Cost.TotalAmount.Amount, 64); err == nil {
		cart.Total = total
	}
	return cart, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Shopify-Storefront-Access-Token", c.token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("storefront http status %d: %s", res.StatusCode, string(body))
	}

	var gr graphqlResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", gr.Errors[0].Message)
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}

// setEndpoint overrides the API URL in tests.
func (c *Client) setEndpoint(url string) { c.endpoint = url }
