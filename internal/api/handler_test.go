package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-be/internal/db"
	"storefront-be/internal/inventory"
	"storefront-be/internal/order"
	"storefront-be/internal/product"
	"storefront-be/internal/promo"
	"storefront-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockOrders struct{ mock.Mock }

func (m *MockOrders) GetOrder(ctx context.Context, id uint) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) ListOrders(ctx context.Context, f order.Filter, page, limit int32) (*order.OrderPage, error) {
	args := m.Called(ctx, f, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.OrderPage), args.Error(1)
}

func (m *MockOrders) CreateOrder(ctx context.Context, in order.CreateOrderInput) (*order.Order, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) Transition(ctx context.Context, id uint, to order.OrderStatus, tc order.TransitionContext) (*order.Order, *order.TransitionResult, error) {
	args := m.Called(ctx, id, to, tc)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*order.Order), args.Get(1).(*order.TransitionResult), args.Error(2)
}

func (m *MockOrders) AddNote(ctx context.Context, id uint, content string, internal bool) (*order.Note, error) {
	args := m.Called(ctx, id, content, internal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Note), args.Error(1)
}

func (m *MockOrders) RefundEligibility(ctx context.Context, id uint) (*order.RefundDecision, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.RefundDecision), args.Error(1)
}

func (m *MockOrders) CheckRefunds(ctx context.Context, ids []uint) (map[uint]error, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint]error), args.Error(1)
}

type MockBulk struct{ mock.Mock }

func (m *MockBulk) Apply(ctx context.Context, ids []uint, action order.BulkAction, tc order.TransitionContext) (*order.BulkResult, error) {
	args := m.Called(ctx, ids, action, tc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.BulkResult), args.Error(1)
}

type MockLedger struct{ mock.Mock }

func (m *MockLedger) Record(ctx context.Context, in inventory.RecordInput) (*inventory.LedgerEntry, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.LedgerEntry), args.Error(1)
}

func (m *MockLedger) RecordTx(ctx context.Context, tx db.Executor, in inventory.RecordInput) (*inventory.LedgerEntry, error) {
	args := m.Called(ctx, tx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.LedgerEntry), args.Error(1)
}

func (m *MockLedger) CurrentStock(ctx context.Context, key inventory.StockKey) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) Timeline(ctx context.Context, key inventory.StockKey, page, limit int32) (*inventory.TimelinePage, error) {
	args := m.Called(ctx, key, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.TimelinePage), args.Error(1)
}

func (m *MockLedger) Verify(ctx context.Context, key inventory.StockKey) error {
	return m.Called(ctx, key).Error(0)
}

type MockVariants struct{ mock.Mock }

func (m *MockVariants) CreateVariant(ctx context.Context, in product.NewVariantInput) (*product.VariantView, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.VariantView), args.Error(1)
}

func (m *MockVariants) GetVariant(ctx context.Context, id string) (*product.VariantView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.VariantView), args.Error(1)
}

func (m *MockVariants) ListVariants(ctx context.Context, productID string) ([]*product.VariantView, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*product.VariantView), args.Error(1)
}

func (m *MockVariants) Deactivate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockVariants) Activate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockVariants) DeleteVariant(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockPromos struct{ mock.Mock }

func (m *MockPromos) ActiveModals(ctx context.Context) ([]*promo.Modal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*promo.Modal), args.Error(1)
}

// --- Helpers ---

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	orders   *MockOrders
	bulk     *MockBulk
	ledger   *MockLedger
	variants *MockVariants
	promos   *MockPromos
	router   http.Handler
}

func asStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test-Anonymous") == "" {
			r = r.WithContext(utils.SetUserContext(r.Context(), "u-1", "ops@example.com", utils.RoleAdmin))
		}
		next.ServeHTTP(w, r)
	})
}

func newFixture() *fixture {
	f := &fixture{
		orders:   new(MockOrders),
		bulk:     new(MockBulk),
		ledger:   new(MockLedger),
		variants: new(MockVariants),
		promos:   new(MockPromos),
	}
	h := NewHandler(Deps{
		Orders:   f.orders,
		Bulk:     f.bulk,
		Refund:   order.NewRefundPolicy(0, order.FallbackUpdatedAt),
		Ledger:   f.ledger,
		Variants: f.variants,
		Promos:   f.promos,
	})
	h.now = func() time.Time { return testNow }

	r := chi.NewRouter()
	r.Use(asStaff)
	r.Mount("/", h.Routes())
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sampleOrder(id uint, status order.OrderStatus) *order.Order {
	return &order.Order{
		ID:            id,
		OrderNumber:   fmt.Sprintf("ORD-%d", id),
		Status:        status,
		PaymentStatus: order.PaymentPaid,
		CreatedAt:     testNow.Add(-30 * time.Minute),
		UpdatedAt:     testNow.Add(-30 * time.Minute),
		Total:         decimal.RequireFromString("42.50"),
		Items:         []order.OrderItem{{ProductID: "prod-1", Quantity: 3}},
	}
}

// --- Tests ---

func TestRoutes_RequireStaff(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Test-Anonymous", "1")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.orders.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestActivePromos_Public(t *testing.T) {
	f := newFixture()
	f.promos.On("ActiveModals", mock.Anything).Return([]*promo.Modal{{ID: "m1", IsActive: true}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/promos/active", nil)
	req.Header.Set("X-Test-Anonymous", "1")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"m1"`)
}

func TestListOrders(t *testing.T) {
	f := newFixture()
	f.orders.On("ListOrders", mock.Anything, order.Filter{Status: "PENDING", Age: "new"}, int32(2), int32(10)).
		Return(&order.OrderPage{
			Orders: []*order.Order{sampleOrder(7, order.StatusPending)},
			Total:  11,
			Page:   2,
			Limit:  10,
		}, nil)

	w := f.do(http.MethodGet, "/orders?status=PENDING&age=new&page=2&limit=10", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(11), body["total"])
	orders := body["orders"].([]any)
	require.Len(t, orders, 1)
	row := orders[0].(map[string]any)
	assert.Equal(t, "ORD-7", row["order_number"])
	assert.Equal(t, "new", row["age"])
	assert.Equal(t, float64(10), row["progress"])
	assert.Equal(t, float64(3), row["item_count"])
	assert.Equal(t, "42.50", row["total"])
}

func TestGetOrder(t *testing.T) {
	f := newFixture()
	f.orders.On("GetOrder", mock.Anything, uint(3)).Return(sampleOrder(3, order.StatusShipped), nil)
	f.orders.On("GetOrder", mock.Anything, uint(4)).Return(nil, order.ErrOrderNotFound)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/orders/3", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/orders/4", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/orders/abc", "").Code)
}

func TestAllowedTransitions(t *testing.T) {
	f := newFixture()
	f.orders.On("GetOrder", mock.Anything, uint(3)).Return(sampleOrder(3, order.StatusPending), nil)

	w := f.do(http.MethodGet, "/orders/3/transitions", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, []any{"CONFIRMED", "CANCELLED"}, body["allowed"])
	assert.Equal(t, false, body["terminal"])
}

func TestTransitionOrder(t *testing.T) {
	t.Run("ShipWithWarning", func(t *testing.T) {
		f := newFixture()
		shipped := sampleOrder(5, order.StatusShipped)
		f.orders.On("Transition", mock.Anything, uint(5), order.StatusShipped, order.TransitionContext{
			Actor: "ops@example.com",
		}).Return(shipped, &order.TransitionResult{
			From:     order.StatusProcessing,
			To:       order.StatusShipped,
			Warnings: []order.Warning{order.WarningMissingTracking},
		}, nil)

		w := f.do(http.MethodPost, "/orders/5/transition", `{"status":"shipped"}`)

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "PROCESSING", body["from"])
		assert.Len(t, body["warnings"], 1)
	})

	errCases := []struct {
		name string
		err  error
		code int
		kind order.ErrorKind
	}{
		{"Illegal", &order.TransitionError{From: order.StatusDelivered, To: order.StatusPending}, http.StatusUnprocessableEntity, order.KindInvalidTransition},
		{"RefundIneligible", fmt.Errorf("%w: window elapsed", order.ErrRefundIneligible), http.StatusUnprocessableEntity, order.KindRefundIneligible},
		{"NotFound", order.ErrOrderNotFound, http.StatusNotFound, order.KindNotFound},
		{"Busy", order.ErrOrderBusy, http.StatusConflict, order.KindConflict},
		{"NegativeStock", &inventory.NegativeStockError{Key: inventory.StockKey{ProductID: "p"}, Current: 0, Change: -1}, http.StatusConflict, order.KindNegativeStock},
		{"Internal", errors.New("connection reset"), http.StatusInternalServerError, order.KindInternal},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.orders.On("Transition", mock.Anything, uint(9), order.StatusPending, mock.Anything).Return(nil, nil, tc.err)

			w := f.do(http.MethodPost, "/orders/9/transition", `{"status":"PENDING"}`)

			assert.Equal(t, tc.code, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, string(tc.kind), body["kind"])
			if tc.code == http.StatusInternalServerError {
				assert.NotContains(t, body["error"], "connection reset")
			}
		})
	}

	t.Run("UnknownStatus", func(t *testing.T) {
		f := newFixture()

		w := f.do(http.MethodPost, "/orders/9/transition", `{"status":"ON_HOLD"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.orders.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		f := newFixture()
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/orders/9/transition", `{"status":`).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/orders/9/transition", `{"state":"PENDING"}`).Code)
	})
}

func TestAddNote(t *testing.T) {
	f := newFixture()
	f.orders.On("AddNote", mock.Anything, uint(2), "called customer", true).
		Return(&order.Note{ID: 1, OrderID: 2, Content: "called customer", IsInternal: true}, nil)
	f.orders.On("AddNote", mock.Anything, uint(2), "", false).Return(nil, order.ErrEmptyNote)

	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/orders/2/notes", `{"content":"called customer","internal":true}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/orders/2/notes", `{"content":""}`).Code)
}

func TestRefundEligibility(t *testing.T) {
	f := newFixture()
	f.orders.On("RefundEligibility", mock.Anything, uint(8)).
		Return(&order.RefundDecision{OrderID: 8, Eligible: false, Reason: "refund window elapsed"}, nil)

	w := f.do(http.MethodGet, "/orders/8/refund-eligibility", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["eligible"])
}

func TestBulkAction(t *testing.T) {
	t.Run("PartialSuccess", func(t *testing.T) {
		f := newFixture()
		f.bulk.On("Apply", mock.Anything, []uint{1, 2}, order.BulkConfirm, order.TransitionContext{Actor: "ops@example.com"}).
			Return(&order.BulkResult{
				BatchID:   "batch-1",
				Action:    order.BulkConfirm,
				Succeeded: []uint{1},
				Failed:    []order.BulkFailure{{ID: 2, Reason: "invalid transition", Kind: order.KindInvalidTransition}},
			}, nil)

		w := f.do(http.MethodPost, "/orders/bulk", `{"ids":[1,2],"action":"confirm"}`)

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, []any{float64(1)}, body["succeeded"])
		assert.Len(t, body["failed"], 1)
	})

	t.Run("UnknownAction", func(t *testing.T) {
		f := newFixture()
		f.bulk.On("Apply", mock.Anything, []uint{1}, order.BulkAction("ship"), mock.Anything).
			Return(nil, order.ErrUnknownBulkAction)

		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/orders/bulk", `{"ids":[1],"action":"ship"}`).Code)
	})

	t.Run("EmptyIDs", func(t *testing.T) {
		f := newFixture()
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/orders/bulk", `{"ids":[],"action":"confirm"}`).Code)
	})
}

func TestCreateOrder(t *testing.T) {
	f := newFixture()
	f.orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(in order.CreateOrderInput) bool {
		return len(in.Items) == 1 && in.Items[0].Quantity == 2 && in.Items[0].UnitPrice.Equal(decimal.RequireFromString("9.99"))
	})).Return(sampleOrder(100, order.StatusPending), nil)

	w := f.do(http.MethodPost, "/orders", `{
		"customer_name": "Jane",
		"customer_email": "jane@example.com",
		"items": [{"product_id": "prod-1", "product_name": "Mug", "quantity": 2, "unit_price": "9.99"}]
	}`)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAdjustStock(t *testing.T) {
	t.Run("DefaultsToManualAdjustment", func(t *testing.T) {
		f := newFixture()
		f.ledger.On("Record", mock.Anything, mock.MatchedBy(func(in inventory.RecordInput) bool {
			return in.Reason == inventory.ReasonAdjustmentManual && in.ChangeAmount == 5 && *in.Actor == "ops@example.com"
		})).Return(&inventory.LedgerEntry{ID: 1, ProductID: "prod-1", ChangeAmount: 5, NewStock: 12}, nil)

		w := f.do(http.MethodPost, "/inventory/adjust", `{"product_id":"prod-1","change":5}`)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, float64(12), decodeBody(t, w)["new_stock"])
	})

	t.Run("NegativeStockRejected", func(t *testing.T) {
		f := newFixture()
		f.ledger.On("Record", mock.Anything, mock.Anything).
			Return(nil, &inventory.NegativeStockError{Key: inventory.StockKey{ProductID: "prod-1"}, Current: 1, Change: -3})

		w := f.do(http.MethodPost, "/inventory/adjust", `{"product_id":"prod-1","change":-3,"reason":"adjustment_manual"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "negative_stock", decodeBody(t, w)["kind"])
	})

	t.Run("InvalidReason", func(t *testing.T) {
		f := newFixture()
		f.ledger.On("Record", mock.Anything, mock.Anything).Return(nil, inventory.ErrInvalidReason)

		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/inventory/adjust", `{"product_id":"p","change":1,"reason":"gift"}`).Code)
	})
}

func TestStockTimelineAndVerify(t *testing.T) {
	f := newFixture()
	variant := "var-1"
	key := inventory.StockKey{ProductID: "prod-1", VariantID: &variant}

	f.ledger.On("Timeline", mock.Anything, key, int32(1), int32(50)).
		Return(&inventory.TimelinePage{Entries: []*inventory.LedgerEntry{}, Total: 0, Page: 1, Limit: 50}, nil)
	f.ledger.On("Verify", mock.Anything, key).
		Return(fmt.Errorf("%w: counter 3, replay 4", inventory.ErrLedgerDiverged))
	f.ledger.On("Verify", mock.Anything, inventory.StockKey{ProductID: "prod-2"}).Return(nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/inventory/prod-1/timeline?variant_id=var-1&page=1&limit=50", "").Code)

	w := f.do(http.MethodGet, "/inventory/prod-1/verify?variant_id=var-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["consistent"])

	w = f.do(http.MethodGet, "/inventory/prod-2/verify", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["consistent"])
}

func TestVariants(t *testing.T) {
	f := newFixture()
	f.variants.On("DeleteVariant", mock.Anything, "var-1").Return(product.ErrVariantInUse)
	f.variants.On("DeleteVariant", mock.Anything, "var-2").Return(nil)
	f.variants.On("Deactivate", mock.Anything, "var-1").Return(nil)
	f.variants.On("Activate", mock.Anything, "missing").Return(product.ErrVariantNotFound)
	f.variants.On("CreateVariant", mock.Anything, mock.MatchedBy(func(in product.NewVariantInput) bool {
		return in.ProductID == "prod-1" && in.SKU == "MUG-L" && in.InitialStock == 4
	})).Return(&product.VariantView{Variant: &product.Variant{ID: "var-3"}, Price: decimal.RequireFromString("5")}, nil)
	f.variants.On("CreateVariant", mock.Anything, mock.MatchedBy(func(in product.NewVariantInput) bool {
		return in.SKU == "DUP"
	})).Return(nil, product.ErrDuplicateSKU)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodDelete, "/variants/var-1", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/variants/var-2", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/variants/var-1/deactivate", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/variants/missing/activate", "").Code)
	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/products/prod-1/variants", `{"sku":"MUG-L","name":"Large","initial_stock":4}`).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/products/prod-1/variants", `{"sku":"DUP","name":"Dup"}`).Code)
}

func TestMetrics(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w), "bulk_batches")
}
