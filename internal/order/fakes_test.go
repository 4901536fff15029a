package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront-be/internal/db"
	"storefront-be/internal/inventory"
	"storefront-be/internal/notification"

	"github.com/shopspring/decimal"
)

// memRepository keeps orders in memory. UpdateWithLock holds a mutex for
// the whole read-modify-write and discards the copy when fn fails.
type memRepository struct {
	mu     sync.Mutex
	orders map[uint]*Order
	nextID uint
}

func newMemRepository(orders ...*Order) *memRepository {
	r := &memRepository{orders: map[uint]*Order{}, nextID: 1000}
	for _, o := range orders {
		r.orders[o.ID] = cloneOrder(o)
	}
	return r
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.Notes = append([]Note(nil), o.Notes...)
	c.History = append([]StatusChange(nil), o.History...)
	return &c
}

func (r *memRepository) get(id uint) *Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneOrder(r.orders[id])
}

func (r *memRepository) GetOrderDetail(ctx context.Context, orderID uint) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *memRepository) GetOrdersByIDs(ctx context.Context, ids []uint) ([]*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*Order{}
	for _, id := range ids {
		if o, ok := r.orders[id]; ok {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (r *memRepository) ListOrders(ctx context.Context, q ListQuery) ([]*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*Order{}
	for _, o := range r.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepository) UpdateWithLock(ctx context.Context, orderID uint, fn MutateFunc) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	working := cloneOrder(stored)
	if err := fn(ctx, nil, working); err != nil {
		return nil, err
	}

	for i := range working.History {
		if working.History[i].ID == 0 {
			r.nextID++
			working.History[i].ID = r.nextID
		}
	}
	for i := range working.Notes {
		if working.Notes[i].ID == 0 {
			r.nextID++
			working.Notes[i].ID = r.nextID
		}
	}
	working.Version++

	r.orders[orderID] = cloneOrder(working)
	return working, nil
}

func (r *memRepository) AppendNote(ctx context.Context, note *Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[note.OrderID]
	if !ok {
		return ErrOrderNotFound
	}
	r.nextID++
	note.ID = r.nextID
	o.Notes = append(o.Notes, *note)
	return nil
}

func (r *memRepository) CreateOrder(ctx context.Context, o *Order, fn MutateFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	o.ID = r.nextID
	for i := range o.Items {
		r.nextID++
		o.Items[i].ID = r.nextID
		o.Items[i].OrderID = o.ID
	}
	if fn != nil {
		if err := fn(ctx, nil, o); err != nil {
			return err
		}
	}
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

// memStock applies ledger inputs to an in-memory counter.
type memStock struct {
	mu      sync.Mutex
	stock   map[string]int
	entries []inventory.RecordInput
}

func newMemStock() *memStock {
	return &memStock{stock: map[string]int{}}
}

func (m *memStock) RecordTx(ctx context.Context, tx db.Executor, in inventory.RecordInput) (*inventory.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := in.Key.String()
	current := m.stock[key]
	next := current + in.ChangeAmount
	if next < 0 && in.Override == "" {
		return nil, &inventory.NegativeStockError{Key: in.Key, Current: current, Change: in.ChangeAmount}
	}
	m.stock[key] = next
	m.entries = append(m.entries, in)

	return &inventory.LedgerEntry{
		ID:           uint(len(m.entries)),
		ProductID:    in.Key.ProductID,
		VariantID:    in.Key.VariantID,
		Reason:       in.Reason,
		ChangeAmount: in.ChangeAmount,
		NewStock:     next,
	}, nil
}

func (m *memStock) level(productID string, variantID *string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[inventory.StockKey{ProductID: productID, VariantID: variantID}.String()]
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *recordingNotifier) events() []notification.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification.Event, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Event)
	}
	return out
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestOrder(id uint, status OrderStatus) *Order {
	o := &Order{
		ID:            id,
		OrderNumber:   "ORD-TEST-" + string(rune('A'+id%26)),
		Status:        status,
		PaymentStatus: PaymentPaid,
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		Priority:      PriorityNormal,
		Source:        SourceWeb,
		Subtotal:      money("50.00"),
		Tax:           money("5.00"),
		Shipping:      money("4.99"),
		Discount:      money("0"),
		CreatedAt:     testNow.Add(-72 * time.Hour),
		UpdatedAt:     testNow.Add(-48 * time.Hour),
		Items: []OrderItem{
			{ID: id*10 + 1, OrderID: id, ProductID: "prod-1", VariantID: strPtr("var-1"), Quantity: 2, UnitPrice: money("15.00")},
			{ID: id*10 + 2, OrderID: id, ProductID: "prod-2", Quantity: 1, UnitPrice: money("20.00")},
		},
	}
	o.Total = o.ComputeTotal()
	return o
}

func newTestService(repo Repository, stock StockRecorder, n notification.Notifier, cfg ServiceConfig) *service {
	svc := NewService(repo, stock, n, cfg).(*service)
	svc.now = func() time.Time { return testNow }
	svc.dispatch = func(fn func()) { fn() }
	return svc
}
