package promo

import (
	"context"
	"database/sql"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	ActiveModals(ctx context.Context) ([]*Modal, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

// ActiveModals re-checks every candidate against the same clock the query
// used, so rows written between query and response are judged consistently.
func (s *service) ActiveModals(ctx context.Context) ([]*Modal, error) {
	now := s.now().UTC()

	candidates, err := s.repo.ListCandidates(ctx, sql.NullTime{Time: now, Valid: true})
	if err != nil {
		logger.FromCtx(ctx).With(
			zap.String("layer", "service"),
			zap.String("method", "ActiveModals"),
		).Error("failed to list promo modals", zap.Error(err))
		return nil, err
	}

	out := make([]*Modal, 0, len(candidates))
	for _, m := range candidates {
		if m.IsEffective(now) {
			out = append(out, m)
		}
	}
	return out, nil
}
