package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-be/internal/db"
	"storefront-be/internal/inventory"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

// StockRecorder records stock movements inside a caller's transaction.
type StockRecorder interface {
	RecordTx(ctx context.Context, tx db.Executor, in inventory.RecordInput) (*inventory.LedgerEntry, error)
}

type Service interface {
	CreateVariant(ctx context.Context, in NewVariantInput) (*VariantView, error)
	GetVariant(ctx context.Context, variantID string) (*VariantView, error)
	ListVariants(ctx context.Context, productID string) ([]*VariantView, error)
	Deactivate(ctx context.Context, variantID string) error
	Activate(ctx context.Context, variantID string) error
	DeleteVariant(ctx context.Context, variantID string) error
}

type service struct {
	repo  Repository
	stock StockRecorder
	now   func() time.Time
}

func NewService(repo Repository, stock StockRecorder) Service {
	return &service{repo: repo, stock: stock, now: time.Now}
}

func validateVariant(in NewVariantInput) error {
	if strings.TrimSpace(in.ProductID) == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidVariant)
	}
	if strings.TrimSpace(in.SKU) == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidVariant)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidVariant)
	}
	if in.InitialStock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidVariant)
	}
	if in.PriceOverride != nil && in.PriceOverride.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidVariant)
	}
	return nil
}

// CreateVariant inserts the variant and books its initial stock as a
// RECEIVING ledger entry in the same transaction.
func (s *service) CreateVariant(ctx context.Context, in NewVariantInput) (*VariantView, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateVariant"),
		zap.String("product_id", in.ProductID),
		zap.String("sku", in.SKU),
	)

	if err := validateVariant(in); err != nil {
		log.Warn("invalid variant input", zap.Error(err))
		return nil, err
	}

	p, err := s.repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	attrs := in.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}

	v := &Variant{
		ProductID:     in.ProductID,
		SKU:           strings.ToUpper(strings.TrimSpace(in.SKU)),
		Name:          strings.TrimSpace(in.Name),
		PriceOverride: in.PriceOverride,
		Attributes:    attrs,
		Images:        images,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	actor := utils.ActorFromContext(ctx)
	err = s.repo.CreateVariant(ctx, v, func(ctx context.Context, tx db.Executor, v *Variant) error {
		if in.InitialStock == 0 {
			return nil
		}
		notes := "initial stock"
		entry, err := s.stock.RecordTx(ctx, tx, inventory.RecordInput{
			Key:          inventory.StockKey{ProductID: v.ProductID, VariantID: &v.ID},
			Reason:       inventory.ReasonReceiving,
			ChangeAmount: in.InitialStock,
			Notes:        &notes,
			Actor:        &actor,
		})
		if err != nil {
			return err
		}
		v.Stock = entry.NewStock
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("variant created", zap.String("variant_id", v.ID), zap.Int("stock", v.Stock))

	return &VariantView{Variant: v, Price: v.EffectivePrice(p.Price)}, nil
}

func (s *service) GetVariant(ctx context.Context, variantID string) (*VariantView, error) {
	v, err := s.repo.GetVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetProduct(ctx, v.ProductID)
	if err != nil {
		return nil, err
	}
	return &VariantView{Variant: v, Price: v.EffectivePrice(p.Price)}, nil
}

func (s *service) ListVariants(ctx context.Context, productID string) ([]*VariantView, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	variants, err := s.repo.ListVariants(ctx, productID)
	if err != nil {
		return nil, err
	}

	out := make([]*VariantView, 0, len(variants))
	for _, v := range variants {
		out = append(out, &VariantView{Variant: v, Price: v.EffectivePrice(p.Price)})
	}
	return out, nil
}

func (s *service) Deactivate(ctx context.Context, variantID string) error {
	return s.setActive(ctx, variantID, false)
}

func (s *service) Activate(ctx context.Context, variantID string) error {
	return s.setActive(ctx, variantID, true)
}

func (s *service) setActive(ctx context.Context, variantID string, active bool) error {
	if err := s.repo.SetActive(ctx, variantID, active); err != nil {
		logger.FromCtx(ctx).Error("failed to update variant status",
			zap.String("variant_id", variantID),
			zap.Bool("active", active),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// DeleteVariant refuses with ErrVariantInUse while any order item references
// the variant. Deactivate is the normal way to retire a variant.
func (s *service) DeleteVariant(ctx context.Context, variantID string) error {
	if err := s.repo.DeleteVariant(ctx, variantID); err != nil {
		logger.FromCtx(ctx).Warn("variant delete refused",
			zap.String("variant_id", variantID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
