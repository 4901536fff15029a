package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

const (
	defaultTimelineLimit = 20
	maxTimelineLimit     = 100
)

// Ledger is the only writer of stock counters. Every change appends an entry
// and updates the maintained counter in the same transaction, so replaying
// the entries always yields the counter.
type Ledger interface {
	Record(ctx context.Context, in RecordInput) (*LedgerEntry, error)
	RecordTx(ctx context.Context, tx db.Executor, in RecordInput) (*LedgerEntry, error)
	CurrentStock(ctx context.Context, key StockKey) (int, error)
	Timeline(ctx context.Context, key StockKey, page, limit int32) (*TimelinePage, error)
	Verify(ctx context.Context, key StockKey) error
}

type ledger struct {
	db   *sql.DB
	repo Repository
	now  func() time.Time
}

func NewLedger(database *sql.DB, repo Repository) Ledger {
	return &ledger{
		db:   database,
		repo: repo,
		now:  time.Now,
	}
}

func (l *ledger) Record(ctx context.Context, in RecordInput) (*LedgerEntry, error) {
	var entry *LedgerEntry

	err := db.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		var err error
		entry, err = l.RecordTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (l *ledger) RecordTx(ctx context.Context, tx db.Executor, in RecordInput) (*LedgerEntry, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RecordTx"),
		zap.String("stock_key", in.Key.String()),
		zap.String("reason", string(in.Reason)),
		zap.Int("change", in.ChangeAmount),
	)

	if err := validateInput(in); err != nil {
		log.Warn("invalid ledger input", zap.Error(err))
		return nil, err
	}

	current, err := l.repo.LockStock(ctx, tx, in.Key)
	if err != nil {
		log.Error("failed to lock stock row", zap.Error(err))
		return nil, err
	}

	newStock := current + in.ChangeAmount
	override := strings.TrimSpace(in.Override)
	if newStock < 0 && override == "" {
		log.Warn("rejected negative stock", zap.Int("current", current))
		return nil, &NegativeStockError{Key: in.Key, Current: current, Change: in.ChangeAmount}
	}

	notes := in.Notes
	if newStock < 0 {
		text := "negative stock override: " + override
		if notes != nil && *notes != "" {
			text = *notes + " (" + text + ")"
		}
		notes = &text
	}

	entry := &LedgerEntry{
		ProductID:    in.Key.ProductID,
		VariantID:    in.Key.VariantID,
		Reason:       in.Reason,
		ChangeAmount: in.ChangeAmount,
		NewStock:     newStock,
		Notes:        notes,
		Actor:        in.Actor,
		CreatedAt:    l.now().UTC(),
	}

	if err := l.repo.InsertEntry(ctx, tx, entry); err != nil {
		log.Error("failed to insert ledger entry", zap.Error(err))
		return nil, err
	}

	if err := l.repo.SetStock(ctx, tx, in.Key, newStock); err != nil {
		log.Error("failed to update stock counter", zap.Error(err))
		return nil, err
	}

	log.Info("stock recorded",
		zap.Uint("entry_id", entry.ID),
		zap.Int("new_stock", newStock),
	)

	return entry, nil
}

func validateInput(in RecordInput) error {
	if strings.TrimSpace(in.Key.ProductID) == "" {
		return ErrMissingProduct
	}
	if !in.Reason.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidReason, in.Reason)
	}
	if in.ChangeAmount == 0 {
		return ErrZeroChange
	}
	return nil
}

func (l *ledger) CurrentStock(ctx context.Context, key StockKey) (int, error) {
	return l.repo.CurrentStock(ctx, key)
}

func (l *ledger) Timeline(ctx context.Context, key StockKey, page, limit int32) (*TimelinePage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultTimelineLimit
	} else if limit > maxTimelineLimit {
		limit = maxTimelineLimit
	}

	// Pages past the int32 offset range cannot hold entries.
	var entries []*LedgerEntry
	if offset := int64(page-1) * int64(limit); offset <= math.MaxInt32 {
		var err error
		entries, err = l.repo.ListEntries(ctx, key, limit, int32(offset))
		if err != nil {
			return nil, err
		}
	}

	total, err := l.repo.CountEntries(ctx, key)
	if err != nil {
		return nil, err
	}

	if entries == nil {
		entries = []*LedgerEntry{}
	}

	return &TimelinePage{
		Entries: entries,
		Total:   total,
		Page:    page,
		Limit:   limit,
	}, nil
}

// Verify replays the ledger for key and compares it with the maintained counter.
func (l *ledger) Verify(ctx context.Context, key StockKey) error {
	current, err := l.repo.CurrentStock(ctx, key)
	if err != nil {
		return err
	}

	replayed, err := l.repo.SumChanges(ctx, key)
	if err != nil {
		return err
	}

	if replayed != current {
		logger.FromCtx(ctx).Error("ledger diverged",
			zap.String("stock_key", key.String()),
			zap.Int("current", current),
			zap.Int("replayed", replayed),
		)
		return fmt.Errorf("%w: %s counter %d, replay %d", ErrLedgerDiverged, key, current, replayed)
	}

	return nil
}
