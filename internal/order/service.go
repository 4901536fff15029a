package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront-be/internal/db"
	"storefront-be/internal/inventory"
	"storefront-be/internal/lock"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/notification"
	"storefront-be/internal/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	notifyTimeout    = 5 * time.Second
)

// StockRecorder records stock movements inside a caller's transaction.
type StockRecorder interface {
	RecordTx(ctx context.Context, tx db.Executor, in inventory.RecordInput) (*inventory.LedgerEntry, error)
}

// Locker serialises work on one order across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type Service interface {
	GetOrder(ctx context.Context, orderID uint) (*Order, error)
	ListOrders(ctx context.Context, f Filter, page, limit int32) (*OrderPage, error)
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
	Transition(ctx context.Context, orderID uint, to OrderStatus, tc TransitionContext) (*Order, *TransitionResult, error)
	AddNote(ctx context.Context, orderID uint, content string, internal bool) (*Note, error)
	RefundEligibility(ctx context.Context, orderID uint) (*RefundDecision, error)
	CheckRefunds(ctx context.Context, ids []uint) (map[uint]error, error)
}

type ServiceConfig struct {
	Policy  Policy
	Refund  RefundPolicy
	Locker  Locker
	Metrics *metrics.Orders
}

type OrderPage struct {
	Orders []*Order `json:"orders"`
	Total  int      `json:"total"`
	Page   int32    `json:"page"`
	Limit  int32    `json:"limit"`
}

type RefundDecision struct {
	OrderID  uint   `json:"order_id"`
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

type CreateOrderItemInput struct {
	ProductID   string
	VariantID   *string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type CreateOrderInput struct {
	CustomerName  string
	CustomerEmail string
	CouponCode    *string
	Priority      Priority
	Source        Source
	PaymentStatus PaymentStatus
	Tax           decimal.Decimal
	Shipping      decimal.Decimal
	Discount      decimal.Decimal
	Items         []CreateOrderItemInput
}

type service struct {
	repo     Repository
	stock    StockRecorder
	notifier notification.Notifier
	machine  *StateMachine
	refund   RefundPolicy
	locker   Locker
	metrics  *metrics.Orders
	now      func() time.Time
	dispatch func(func())
}

func NewService(repo Repository, stock StockRecorder, notifier notification.Notifier, cfg ServiceConfig) Service {
	refund := NewRefundPolicy(cfg.Refund.Window, cfg.Refund.Fallback)
	m := cfg.Metrics
	if m == nil {
		m = &metrics.Orders{}
	}
	if notifier == nil {
		notifier = notification.NewLogNotifier()
	}

	return &service{
		repo:     repo,
		stock:    stock,
		notifier: notifier,
		machine:  NewStateMachine(cfg.Policy, refund),
		refund:   refund,
		locker:   cfg.Locker,
		metrics:  m,
		now:      time.Now,
		dispatch: func(fn func()) { go fn() },
	}
}

func (s *service) GetOrder(ctx context.Context, orderID uint) (*Order, error) {
	return s.repo.GetOrderDetail(ctx, orderID)
}

func (s *service) ListOrders(ctx context.Context, f Filter, page, limit int32) (*OrderPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	} else if limit > maxPageLimit {
		limit = maxPageLimit
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ListOrders"),
		zap.Int32("page", page),
		zap.Int32("limit", limit),
	)

	candidates, err := s.repo.ListOrders(ctx, ListQuery{
		Status:   f.Status,
		Priority: f.Priority,
		Source:   f.Source,
		Search:   f.Search,
	})
	if err != nil {
		log.Error("failed to list orders", zap.Error(err))
		return nil, err
	}

	matched := f.Apply(candidates, s.refund, s.now())

	start := len(matched)
	if skip := int64(page-1) * int64(limit); skip < int64(len(matched)) {
		start = int(skip)
	}
	end := min(start+int(limit), len(matched))

	return &OrderPage{
		Orders: matched[start:end],
		Total:  len(matched),
		Page:   page,
		Limit:  limit,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
	)

	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}

	now := s.now().UTC()
	o := &Order{
		OrderNumber:   utils.GenerateOrderNumber(now),
		Status:        StatusPending,
		PaymentStatus: in.PaymentStatus,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		CouponCode:    in.CouponCode,
		Priority:      in.Priority,
		Source:        in.Source,
		Tax:           in.Tax,
		Shipping:      in.Shipping,
		Discount:      in.Discount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentPending
	}
	if o.Priority == "" {
		o.Priority = PriorityNormal
	}
	if o.Source == "" {
		o.Source = SourceWeb
	}

	for _, it := range in.Items {
		o.Items = append(o.Items, OrderItem{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	o.Subtotal = o.ItemsSubtotal()
	o.Total = o.ComputeTotal()

	if err := o.Validate(); err != nil {
		log.Warn("invalid order input", zap.Error(err))
		return nil, err
	}

	actor := utils.ActorFromContext(ctx)
	err := s.repo.CreateOrder(ctx, o, func(ctx context.Context, tx db.Executor, o *Order) error {
		for _, item := range o.Items {
			if _, err := s.stock.RecordTx(ctx, tx, inventory.RecordInput{
				Key:          inventory.StockKey{ProductID: item.ProductID, VariantID: item.VariantID},
				Reason:       inventory.ReasonSale,
				ChangeAmount: -item.Quantity,
				Notes:        utils.StrPtr("order " + o.OrderNumber),
				Actor:        &actor,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("order placed",
		zap.Uint("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("total", o.Total.StringFixed(2)),
	)

	return o, nil
}

// Transition moves an order to status to. The status change, its history
// and note rows and any restock ledger entries commit together or not at all.
func (s *service) Transition(ctx context.Context, orderID uint, to OrderStatus, tc TransitionContext) (*Order, *TransitionResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Transition"),
		zap.Uint("order_id", orderID),
		zap.String("to", string(to)),
	)

	if !to.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if strings.TrimSpace(tc.Actor) == "" {
		tc.Actor = utils.ActorFromContext(ctx)
	}

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, lockKey(orderID))
		if errors.Is(err, lock.ErrNotAcquired) {
			s.metrics.TransitionsFailed.Inc()
			log.Warn("order lock busy", zap.Error(err))
			return nil, nil, ErrOrderBusy
		}
		if err != nil {
			s.metrics.TransitionsFailed.Inc()
			log.Error("failed to take order lock", zap.Error(err))
			return nil, nil, err
		}
		defer release()
	}

	now := s.now().UTC()
	var result *TransitionResult

	updated, err := s.repo.UpdateWithLock(ctx, orderID, func(ctx context.Context, tx db.Executor, o *Order) error {
		res, err := s.machine.Apply(o, to, tc, now)
		if err != nil {
			return err
		}

		for _, r := range res.Restocks {
			if _, err := s.stock.RecordTx(ctx, tx, inventory.RecordInput{
				Key:          inventory.StockKey{ProductID: r.ProductID, VariantID: r.VariantID},
				Reason:       inventory.ReasonCancellation,
				ChangeAmount: r.Quantity,
				Notes:        utils.StrPtr("order " + o.OrderNumber + " cancelled"),
				Actor:        utils.StrPtr(tc.Actor),
			}); err != nil {
				return err
			}
		}

		result = res
		return nil
	})
	if err != nil {
		s.metrics.TransitionsFailed.Inc()
		log.Warn("transition failed", zap.Error(err), zap.String("kind", string(KindOf(err))))
		return nil, nil, err
	}
	s.metrics.Transitions.Inc()

	for _, w := range result.Warnings {
		log.Warn("transition warning", zap.String("warning", string(w)))
	}
	log.Info("order transitioned",
		zap.String("from", string(result.From)),
		zap.Int("restocks", len(result.Restocks)),
	)

	s.notify(ctx, updated, result, tc.Actor)

	return updated, result, nil
}

// notify hands the event to the notifier after commit and returns at once.
// Delivery failures are logged and never undo the transition.
func (s *service) notify(ctx context.Context, o *Order, res *TransitionResult, actor string) {
	if res.Event == "" {
		return
	}

	msg := notification.Message{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		Event:          res.Event,
		PreviousStatus: string(res.From),
		CurrentStatus:  string(res.To),
		Actor:          actor,
		TrackingNumber: o.TrackingNumber,
		Carrier:        o.Carrier,
		OccurredAt:     res.At,
	}
	nctx := context.WithoutCancel(ctx)

	s.dispatch(func() {
		sendCtx, cancel := context.WithTimeout(nctx, notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(sendCtx, msg); err != nil {
			logger.FromCtx(nctx).Error("failed to send order notification",
				zap.Uint("order_id", msg.OrderID),
				zap.String("event", string(msg.Event)),
				zap.Error(err),
			)
		}
	})
}

func (s *service) AddNote(ctx context.Context, orderID uint, content string, internal bool) (*Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyNote
	}

	note := &Note{
		OrderID:    orderID,
		Content:    content,
		Author:     utils.ActorFromContext(ctx),
		IsInternal: internal,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.AppendNote(ctx, note); err != nil {
		logger.FromCtx(ctx).Error("failed to append note",
			zap.Uint("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}

	return note, nil
}

func (s *service) RefundEligibility(ctx context.Context, orderID uint) (*RefundDecision, error) {
	o, err := s.repo.GetOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}

	decision := &RefundDecision{OrderID: orderID, Eligible: true}
	if err := s.refund.Check(o, s.now()); err != nil {
		decision.Eligible = false
		decision.Reason = err.Error()
	}
	return decision, nil
}

// CheckRefunds maps each id to nil when refundable, or to the reason it is not.
func (s *service) CheckRefunds(ctx context.Context, ids []uint) (map[uint]error, error) {
	orders, err := s.repo.GetOrdersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]*Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	now := s.now()
	out := make(map[uint]error, len(ids))
	for _, id := range ids {
		o, ok := byID[id]
		if !ok {
			out[id] = ErrOrderNotFound
			continue
		}
		out[id] = s.refund.Check(o, now)
	}
	return out, nil
}

func lockKey(orderID uint) string {
	return strconv.FormatUint(uint64(orderID), 10)
}
