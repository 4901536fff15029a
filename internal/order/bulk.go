package order

import (
	"context"
	"fmt"
	"strings"

	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultBulkConcurrency = 4

type BulkAction string

const (
	BulkConfirm       BulkAction = "confirm"
	BulkCancel        BulkAction = "cancel"
	BulkMarkDelivered BulkAction = "mark_delivered"
	BulkRefund        BulkAction = "refund"
)

func (a BulkAction) Target() (OrderStatus, error) {
	switch BulkAction(strings.ToLower(string(a))) {
	case BulkConfirm:
		return StatusConfirmed, nil
	case BulkCancel:
		return StatusCancelled, nil
	case BulkMarkDelivered:
		return StatusDelivered, nil
	case BulkRefund:
		return StatusRefunded, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBulkAction, a)
}

type BulkFailure struct {
	ID     uint      `json:"id"`
	Reason string    `json:"reason"`
	Kind   ErrorKind `json:"kind"`
}

type BulkResult struct {
	BatchID   string        `json:"batch_id"`
	Action    BulkAction    `json:"action"`
	Succeeded []uint        `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// Partial reports a batch where some items succeeded and some failed.
func (r *BulkResult) Partial() bool {
	return len(r.Succeeded) > 0 && len(r.Failed) > 0
}

// Bulk runs one action over many orders. Every id is its own transaction;
// a failing id never stops or rolls back the others.
type Bulk struct {
	svc         Service
	concurrency int
	metrics     *metrics.Orders
}

func NewBulk(svc Service, concurrency int, m *metrics.Orders) *Bulk {
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}
	if m == nil {
		m = &metrics.Orders{}
	}
	return &Bulk{svc: svc, concurrency: concurrency, metrics: m}
}

// Apply returns an error only when the batch could not start at all.
// Per-order outcomes are reported in the result, in input order.
func (b *Bulk) Apply(ctx context.Context, ids []uint, action BulkAction, tc TransitionContext) (*BulkResult, error) {
	target, err := action.Target()
	if err != nil {
		return nil, err
	}

	timer := metrics.StartTimer()
	batchID := uuid.NewString()
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "BulkApply"),
		zap.String("batch_id", batchID),
		zap.String("action", string(action)),
	)

	unique := dedupe(ids)
	outcomes := make([]error, len(unique))
	attempt := make([]bool, len(unique))
	for i := range attempt {
		attempt[i] = true
	}

	if target == StatusRefunded {
		checks, err := b.svc.CheckRefunds(ctx, unique)
		if err != nil {
			log.Error("refund pre-check failed", zap.Error(err))
			return nil, err
		}
		for i, id := range unique {
			if checkErr := checks[id]; checkErr != nil {
				outcomes[i] = checkErr
				attempt[i] = false
			}
		}
	}

	var g errgroup.Group
	g.SetLimit(b.concurrency)

	for i, id := range unique {
		if !attempt[i] {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = err
				return nil
			}
			_, _, outcomes[i] = b.svc.Transition(ctx, id, target, tc)
			return nil
		})
	}
	_ = g.Wait()

	result := &BulkResult{
		BatchID:   batchID,
		Action:    action,
		Succeeded: []uint{},
		Failed:    []BulkFailure{},
	}
	for i, id := range unique {
		if outcomes[i] == nil {
			result.Succeeded = append(result.Succeeded, id)
			continue
		}
		result.Failed = append(result.Failed, BulkFailure{
			ID:     id,
			Reason: outcomes[i].Error(),
			Kind:   KindOf(outcomes[i]),
		})
	}

	b.metrics.BulkBatches.Inc()
	b.metrics.BulkItems.Add(uint64(len(unique)))
	b.metrics.BulkItemsFailed.Add(uint64(len(result.Failed)))
	b.metrics.BulkDuration.Observe(timer.Duration())

	log.Info("bulk action finished",
		zap.Int("requested", len(ids)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Bool("partial", result.Partial()),
		zap.Duration("duration", timer.Duration()),
	)

	return result, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
