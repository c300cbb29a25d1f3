package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists attribution records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initTrackingSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initTrackingSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			cart_id TEXT NOT NULL DEFAULT '',
			order_number TEXT NOT NULL DEFAULT '',
			total DOUBLE PRECISION NOT NULL DEFAULT 0,
			subtotal DOUBLE PRECISION NOT NULL DEFAULT 0,
			tax DOUBLE PRECISION NOT NULL DEFAULT 0,
			shipping DOUBLE PRECISION NOT NULL DEFAULT 0,
			discount DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			items JSONB NOT NULL DEFAULT '[]',
			customer_email TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			received_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_conversation ON orders (conversation_id, received_at DESC);`,
		`CREATE TABLE IF NOT EXISTS carts (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			checkout_url TEXT NOT NULL DEFAULT '',
			total DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			converted BOOLEAN NOT NULL DEFAULT FALSE,
			order_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_carts_conversation ON carts (conversation_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS conversation_stats (
			conversation_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			order_completed BOOLEAN NOT NULL DEFAULT FALSE,
			total_revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
			orders INTEGER NOT NULL DEFAULT 0
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init tracking schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// InsertOrderIfAbsent relies on the primary key plus ON CONFLICT DO NOTHING,
// so concurrent duplicate deliveries race safely inside the database.
func (s *PostgresStore) InsertOrderIfAbsent(ctx context.Context, order OrderRecord) (bool, error) {
	if order.ReceivedAt.IsZero() {
		order.ReceivedAt = time.Now().UTC()
	}
	items, err := json.Marshal(order.Items)
	if err != nil {
		return false, fmt.Errorf("marshal order items: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO orders (
			id, conversation_id, user_id, cart_id, order_number,
			total, subtotal, tax, shipping, discount,
			currency, items, customer_email, source, received_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO NOTHING`,
		order.ID, order.ConversationID, order.UserID, order.CartID, order.OrderNumber,
		order.Total, order.Subtotal, order.Tax, order.Shipping, order.Discount,
		order.Currency, items, order.CustomerEmail, order.Source, order.ReceivedAt,
	)
	if err != nil {
		return false, unavailable("insert order", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, orderID string) (OrderRecord, error) {
	var (
		order OrderRecord
		items []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, conversation_id, user_id, cart_id, order_number,
			total, subtotal, tax, shipping, discount,
			currency, items, customer_email, source, received_at
		 FROM orders WHERE id=$1`,
		orderID,
	).Scan(
		&order.ID, &order.ConversationID, &order.UserID, &order.CartID, &order.OrderNumber,
		&order.Total, &order.Subtotal, &order.Tax, &order.Shipping, &order.Discount,
		&order.Currency, &items, &order.CustomerEmail, &order.Source, &order.ReceivedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderRecord{}, ErrNotFound
	}
	if err != nil {
		return OrderRecord{}, unavailable("get order", err)
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return OrderRecord{}, fmt.Errorf("unmarshal order items: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) SaveCart(ctx context.Context, cart CartRecord) error {
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO carts (id, conversation_id, user_id, checkout_url, total, currency, converted, order_id, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (id) DO UPDATE SET
			checkout_url=EXCLUDED.checkout_url,
			total=EXCLUDED.total,
			currency=EXCLUDED.currency`,
		cart.ID, cart.ConversationID, cart.UserID, cart.CheckoutURL,
		cart.Total, cart.Currency, cart.Converted, cart.OrderID, cart.CreatedAt,
	)
	if err != nil {
		return unavailable("save cart", err)
	}
	return nil
}

func (s *PostgresStore) MarkCartConverted(ctx context.Context, cartID, orderID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE carts SET converted=TRUE, order_id=$2 WHERE id=$1`,
		cartID, orderID,
	)
	if err != nil {
		return unavailable("mark cart converted", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordConversationOrder(ctx context.Context, conversationID, userID string, revenue float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_stats (conversation_id, user_id, order_completed, total_revenue, orders)
		 VALUES ($1,$2,TRUE,$3,1)
		 ON CONFLICT (conversation_id) DO UPDATE SET
			order_completed=TRUE,
			total_revenue=conversation_stats.total_revenue+EXCLUDED.total_revenue,
			orders=conversation_stats.orders+1`,
		conversationID, userID, revenue,
	)
	if err != nil {
		return unavailable("record conversation order", err)
	}
	return nil
}

func (s *PostgresStore) ConversationStats(ctx context.Context, conversationID string) (ConversationStats, error) {
	var stats ConversationStats
	err := s.pool.QueryRow(ctx,
		`SELECT conversation_id, user_id, order_completed, total_revenue, orders
		 FROM conversation_stats WHERE conversation_id=$1`,
		conversationID,
	).Scan(&stats.ConversationID, &stats.UserID, &stats.OrderCompleted, &stats.TotalRevenue, &stats.Orders)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConversationStats{}, ErrNotFound
	}
	if err != nil {
		return ConversationStats{}, unavailable("conversation stats", err)
	}
	return stats, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
