package order

import (
	"errors"
	"fmt"
	"testing"

	"storefront-be/internal/inventory"

	"github.com/stretchr/testify/assert"
)

func TestOrder_Validate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, newTestOrder(1, StatusPending).Validate())
	})

	t.Run("TotalMismatch", func(t *testing.T) {
		o := newTestOrder(1, StatusPending)
		o.Total = money("1.00")
		assert.ErrorIs(t, o.Validate(), ErrTotalMismatch)
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		o := newTestOrder(1, StatusPending)
		o.Tax = money("-1")
		o.Total = o.ComputeTotal()
		assert.ErrorIs(t, o.Validate(), ErrInvalidOrder)
	})

	t.Run("ZeroQuantity", func(t *testing.T) {
		o := newTestOrder(1, StatusPending)
		o.Items[0].Quantity = 0
		assert.ErrorIs(t, o.Validate(), ErrInvalidOrder)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		o := newTestOrder(1, "ON_HOLD")
		assert.ErrorIs(t, o.Validate(), ErrUnknownStatus)
	})
}

func TestOrder_Totals(t *testing.T) {
	o := newTestOrder(1, StatusPending)
	o.Discount = money("4.99")

	assert.True(t, o.ComputeTotal().Equal(money("55.00")))
	assert.True(t, o.ItemsSubtotal().Equal(money("50.00")))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" shipped ")
	assert.NoError(t, err)
	assert.Equal(t, StatusShipped, s)

	_, err = ParseStatus("lost")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestStatusProgress(t *testing.T) {
	assert.Equal(t, 10, StatusPending.Progress())
	assert.Equal(t, 75, StatusShipped.Progress())
	assert.Equal(t, 100, StatusDelivered.Progress())
	assert.Equal(t, 0, StatusCancelled.Progress())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{nil, ""},
		{&TransitionError{From: StatusShipped, To: StatusShipped}, KindInvalidTransition},
		{fmt.Errorf("%w: late", ErrRefundIneligible), KindRefundIneligible},
		{&inventory.NegativeStockError{Current: 1, Change: -2}, KindNegativeStock},
		{ErrOrderNotFound, KindNotFound},
		{ErrOrderBusy, KindConflict},
		{ErrConcurrentUpdate, KindConflict},
		{ErrTotalMismatch, KindValidation},
		{errors.New("connection reset"), KindInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, KindOf(tt.err), fmt.Sprint(tt.err))
	}
}

func TestToSummary(t *testing.T) {
	o := newTestOrder(3, StatusShipped)
	o.Rating = intPtr(4)

	s := ToSummary(o, NewRefundPolicy(0, FallbackUpdatedAt), testNow)

	assert.Equal(t, "59.99", s.Total)
	assert.Equal(t, 3, s.ItemCount)
	assert.Equal(t, 75, s.Progress)
	assert.Equal(t, AgeStale, s.Age)
	assert.Equal(t, RatingPositive, s.Rating)
	assert.False(t, s.RefundEligible)
	assert.Equal(t, []OrderStatus{StatusDelivered}, s.NextStatuses)
	assert.Nil(t, ToSummary(nil, RefundPolicy{}, testNow))
}
