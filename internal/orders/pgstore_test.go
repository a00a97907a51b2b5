package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRow assigns values positionally to the Scan destinations it knows about.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int64:
			*p = r.values[i].(int64)
		case *[]byte:
			if r.values[i] != nil {
				*p = r.values[i].([]byte)
			}
		case *time.Time:
			*p = r.values[i].(time.Time)
		case **time.Time:
			if r.values[i] != nil {
				v := r.values[i].(time.Time)
				*p = &v
			}
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type fakeTx struct {
	pgx.Tx
	pool      *fakePool
	committed bool
	rolled    bool
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.pool.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.pool.Exec(ctx, sql, args...)
}

func (t *fakeTx) Commit(ctx context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { t.rolled = true; return nil }

type fakePool struct {
	rows    map[string]fakeRow // keyed by a SQL fragment
	execTag string
	execErr error
	execs   []string
	tx      *fakeTx
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, sql)
	if p.execErr != nil {
		return pgconn.CommandTag{}, p.execErr
	}
	return pgconn.NewCommandTag(p.execTag), nil
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	for fragment, row := range p.rows {
		if strings.Contains(sql, fragment) {
			return row
		}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	p.tx = &fakeTx{pool: p}
	return p.tx, nil
}

func TestPostgresStore_Get(t *testing.T) {
	items, _ := json.Marshal([]LineItem{{ProductID: "p1", Name: "Kettle", Price: 500000, Qty: 1}})
	address, _ := json.Marshal(ShippingAddress{Address: "1 Marina", City: "Lagos", PostalCode: "101001", Country: "NG"})
	result, _ := json.Marshal(PaymentReference{ReferenceID: "ref-1", AmountCaptured: 500000, Currency: "NGN"})
	paidAt := t0.Add(time.Minute)

	pool := &fakePool{rows: map[string]fakeRow{
		"FROM orders WHERE id": {values: []any{
			"order-1", "user-1", "Ada", "ada@example.com", items, address, "Paystack",
			int64(500000), int64(0), int64(0), int64(500000), "NGN", "PAID", paidAt, result,
			nil, "", int64(2), t0, paidAt,
		}},
	}}
	store := NewPostgresStore(pool)

	o, err := store.Get(context.Background(), "order-1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, StatePaid, o.State)
	assert.Equal(t, Money(500000), o.TotalPrice)
	assert.Equal(t, "Lagos", o.ShippingAddress.City)
	require.Len(t, o.Items, 1)
	assert.Equal(t, Money(500000), o.Items[0].Price)
	require.NotNil(t, o.PaymentResult)
	assert.Equal(t, "ref-1", o.PaymentResult.ReferenceID)
	require.NotNil(t, o.PaidAt)
	assert.True(t, o.PaidAt.Equal(paidAt))
	assert.Nil(t, o.DeliveredAt)
	assert.NoError(t, o.CheckIntegrity())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store := NewPostgresStore(&fakePool{})
	o, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestPostgresStore_SaveConflict(t *testing.T) {
	pool := &fakePool{execTag: "UPDATE 0"}
	store := NewPostgresStore(pool)
	o := newOrder(100)

	err := store.Save(context.Background(), &o)
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, int64(1), o.Version)
}

func TestPostgresStore_SaveBumpsVersion(t *testing.T) {
	pool := &fakePool{execTag: "UPDATE 1"}
	store := NewPostgresStore(pool)
	store.nowFunc = func() time.Time { return t0.Add(time.Hour) }
	o, _, _ := ApplyPayment(newOrder(100), ref("ref-1", 100), t0)

	require.NoError(t, store.Save(context.Background(), &o))
	assert.Equal(t, int64(2), o.Version)
	assert.Equal(t, t0.Add(time.Hour), o.UpdatedAt)
	require.Len(t, pool.execs, 1)
	assert.Contains(t, pool.execs[0], "WHERE id = $1 AND version = $2")
}

func TestPostgresStore_SaveStampsMicroseconds(t *testing.T) {
	pool := &fakePool{execTag: "UPDATE 1"}
	store := NewPostgresStore(pool)
	store.nowFunc = func() time.Time { return t0.Add(1500 * time.Nanosecond) }
	o := newOrder(100)

	require.NoError(t, store.Save(context.Background(), &o))
	assert.Equal(t, t0.Add(time.Microsecond), o.UpdatedAt)
}

func TestPostgresStore_CreateReusedKey(t *testing.T) {
	pool := &fakePool{rows: map[string]fakeRow{
		"FROM order_idempotency": {values: []any{"order-first"}},
	}}
	store := NewPostgresStore(pool)
	o := newOrder(100)

	id, created, err := store.Create(context.Background(), "checkout:k", &o)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "order-first", id)
	assert.Empty(t, pool.execs)
	assert.True(t, pool.tx.rolled)
}

func TestPostgresStore_CreateNew(t *testing.T) {
	pool := &fakePool{execTag: "INSERT 0 1"}
	store := NewPostgresStore(pool)
	o := newOrder(100)

	id, created, err := store.Create(context.Background(), "checkout:k", &o)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, o.ID, id)
	assert.Len(t, pool.execs, 2)
	assert.True(t, pool.tx.committed)
	assert.False(t, pool.tx.rolled)
}

func TestPostgresStore_CreateDuplicateID(t *testing.T) {
	pool := &fakePool{execErr: &pgconn.PgError{Code: "23505"}}
	store := NewPostgresStore(pool)
	o := newOrder(100)

	_, _, err := store.Create(context.Background(), "checkout:k", &o)
	require.True(t, errors.Is(err, ErrDuplicateOrder), "got %v", err)
}
