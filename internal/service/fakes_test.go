package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/timothy-okoduwa/jojo-shop/internal/events"
	"github.com/timothy-okoduwa/jojo-shop/internal/orders"
)

// memStore is an in-memory OrderStore with the same conditional-write semantics as the real
// backends.
type memStore struct {
	mu      sync.Mutex
	orders  map[string]orders.Order
	keys    map[string]string
	saves   int
	getErr  error
	saveErr error
	// onGet runs after every successful read, outside the lock.
	onGet func()
	// precision, when set, truncates stored timestamps like a TIMESTAMPTZ column.
	precision time.Duration
}

func newMemStore(seed ...orders.Order) *memStore {
	m := &memStore{orders: map[string]orders.Order{}, keys: map[string]string{}}
	for _, o := range seed {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memStore) Get(_ context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	if m.getErr != nil {
		m.mu.Unlock()
		return nil, m.getErr
	}
	o, ok := m.orders[id]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	if m.onGet != nil {
		m.onGet()
	}
	return &o, nil
}

func (m *memStore) Save(_ context.Context, o *orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cur, ok := m.orders[o.ID]
	if !ok || cur.Version != o.Version {
		return orders.ErrVersionConflict
	}
	o.Version++
	m.orders[o.ID] = m.truncated(*o)
	m.saves++
	return nil
}

func (m *memStore) Create(_ context.Context, key string, o *orders.Order) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.keys[key]; ok {
		return id, false, nil
	}
	if o.Version == 0 {
		o.Version = 1
	}
	if err := o.Validate(); err != nil {
		return "", false, err
	}
	if _, ok := m.orders[o.ID]; ok {
		return "", false, orders.ErrDuplicateOrder
	}
	m.orders[o.ID] = *o
	m.keys[key] = o.ID
	return o.ID, true, nil
}

func (m *memStore) truncated(o orders.Order) orders.Order {
	if m.precision <= 0 {
		return o
	}
	o.UpdatedAt = o.UpdatedAt.Truncate(m.precision)
	if o.PaidAt != nil {
		t := o.PaidAt.Truncate(m.precision)
		o.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := o.DeliveredAt.Truncate(m.precision)
		o.DeliveredAt = &t
	}
	return o
}

func (m *memStore) stored(id string) orders.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type recordingSignals struct {
	mu      sync.Mutex
	signals []string
}

func (r *recordingSignals) Record(_ context.Context, signal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, signal)
	return nil
}

type fakeVerifier struct {
	ref   *orders.PaymentReference
	err   error
	delay time.Duration
	calls int
}

func (v *fakeVerifier) Verify(ctx context.Context, reference string) (*orders.PaymentReference, error) {
	v.calls++
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return nil, errors.Join(orders.ErrGatewayUnavailable, ctx.Err())
		}
	}
	if v.err != nil {
		return nil, v.err
	}
	r := *v.ref
	r.ReferenceID = reference
	return &r, nil
}

// tickingClock advances one second per call.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}
