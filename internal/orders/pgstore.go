package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the tables used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	user_name        TEXT NOT NULL,
	user_email       TEXT NOT NULL,
	order_items      JSONB NOT NULL,
	shipping_address JSONB NOT NULL,
	payment_method   TEXT NOT NULL,
	items_price      BIGINT NOT NULL CHECK (items_price >= 0),
	shipping_price   BIGINT NOT NULL CHECK (shipping_price >= 0),
	tax_price        BIGINT NOT NULL CHECK (tax_price >= 0),
	total_price      BIGINT NOT NULL CHECK (total_price = items_price + shipping_price + tax_price),
	currency         TEXT NOT NULL,
	state            TEXT NOT NULL,
	paid_at          TIMESTAMPTZ,
	payment_result   JSONB,
	delivered_at     TIMESTAMPTZ,
	delivered_by     TEXT,
	version          BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS order_idempotency (
	idempotency_key TEXT PRIMARY KEY,
	order_id        TEXT NOT NULL REFERENCES orders(id),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PgxPool is the part of *pgxpool.Pool used by PostgresStore.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore keeps orders in PostgreSQL. It honours the same contract as Store.
type PostgresStore struct {
	pool    PgxPool
	nowFunc func() time.Time
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool, nowFunc: time.Now}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const selectOrder = `SELECT id, user_id, user_name, user_email, order_items, shipping_address, payment_method,
	items_price, shipping_price, tax_price, total_price, currency, state, paid_at, payment_result,
	delivered_at, COALESCE(delivered_by, ''), version, created_at, updated_at
FROM orders WHERE id = $1`

// Get fetches an order by id. Returns (nil, nil) if not found.
func (s *PostgresStore) Get(ctx context.Context, orderID string) (*Order, error) {
	var (
		o                           Order
		items, address, result      []byte
		itemsP, shipP, taxP, totalP int64
		state                       string
		paidAt, deliveredAt         *time.Time
	)
	err := s.pool.QueryRow(ctx, selectOrder, orderID).Scan(
		&o.ID, &o.User.ID, &o.User.Name, &o.User.Email, &items, &address, &o.PaymentMethod,
		&itemsP, &shipP, &taxP, &totalP, &o.Currency, &state, &paidAt, &result,
		&deliveredAt, &o.DeliveredBy, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order_items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping_address: %w", err)
	}
	if len(result) > 0 {
		var ref PaymentReference
		if err := json.Unmarshal(result, &ref); err != nil {
			return nil, fmt.Errorf("decode payment_result: %w", err)
		}
		o.PaymentResult = &ref
	}
	o.ItemsPrice, o.ShippingPrice, o.TaxPrice, o.TotalPrice = Money(itemsP), Money(shipP), Money(taxP), Money(totalP)
	o.State = State(state)
	o.PaidAt = paidAt
	o.DeliveredAt = deliveredAt
	return &o, nil
}

// Create inserts order and the idempotency row for key in one transaction. A reused key
// returns the order id it was first used for with created=false.
func (s *PostgresStore) Create(ctx context.Context, key string, order *Order) (orderID string, created bool, err error) {
	now := s.nowFunc().UTC().Truncate(time.Microsecond)
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if order.Version == 0 {
		order.Version = 1
	}
	if err := order.Validate(); err != nil {
		return "", false, err
	}

	items, err := json.Marshal(order.Items)
	if err != nil {
		return "", false, fmt.Errorf("encode order_items: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return "", false, fmt.Errorf("encode shipping_address: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if !created {
			_ = tx.Rollback(ctx)
		}
	}()

	var existing string
	err = tx.QueryRow(ctx, `SELECT order_id FROM order_idempotency WHERE idempotency_key = $1`, key).Scan(&existing)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("lookup idempotency key: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, user_id, user_name, user_email, order_items, shipping_address,
		payment_method, items_price, shipping_price, tax_price, total_price, currency, state, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		order.ID, order.User.ID, order.User.Name, order.User.Email, items, address,
		order.PaymentMethod, int64(order.ItemsPrice), int64(order.ShippingPrice), int64(order.TaxPrice), int64(order.TotalPrice),
		order.Currency, string(order.State), order.Version, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", false, fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
		}
		return "", false, fmt.Errorf("insert order: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO order_idempotency (idempotency_key, order_id) VALUES ($1, $2)`, key, order.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// lost a race on the key: the caller retries and finds the winner
			return "", false, fmt.Errorf("%w: idempotency key %s", ErrVersionConflict, key)
		}
		return "", false, fmt.Errorf("insert idempotency key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("commit: %w", err)
	}
	return order.ID, true, nil
}

// Save persists the lifecycle columns of order if the stored version is still order.Version.
func (s *PostgresStore) Save(ctx context.Context, order *Order) error {
	now := s.nowFunc().UTC().Truncate(time.Microsecond)

	var result []byte
	if order.PaymentResult != nil {
		b, err := json.Marshal(order.PaymentResult)
		if err != nil {
			return fmt.Errorf("encode payment_result: %w", err)
		}
		result = b
	}
	var deliveredBy *string
	if order.DeliveredBy != "" {
		deliveredBy = &order.DeliveredBy
	}

	tag, err := s.pool.Exec(ctx, `UPDATE orders
		SET state = $3, paid_at = $4, payment_result = $5, delivered_at = $6, delivered_by = $7,
			version = version + 1, updated_at = $8
		WHERE id = $1 AND version = $2`,
		order.ID, order.Version, string(order.State), order.PaidAt, result, order.DeliveredAt, deliveredBy, now)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s at version %d", ErrVersionConflict, order.ID, order.Version)
	}

	order.Version++
	order.UpdatedAt = now
	return nil
}
