package promo

import (
	"context"
	"database/sql"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// ListCandidates returns active modals whose window may include now.
	ListCandidates(ctx context.Context, now sql.NullTime) ([]*Modal, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListCandidates(ctx context.Context, now sql.NullTime) ([]*Modal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, body, image_url, link_url, priority, starts_at, expires_at, is_active, created_at, updated_at
		FROM promo_modals
		WHERE is_active = TRUE
		  AND (starts_at IS NULL OR starts_at <= $1)
		  AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY priority DESC, created_at DESC
	`, now)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to query promo modals", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	modals := []*Modal{}
	for rows.Next() {
		var (
			m                   Modal
			imageURL, linkURL   sql.NullString
			startsAt, expiresAt sql.NullTime
		)
		if err := rows.Scan(
			&m.ID, &m.Title, &m.Body, &imageURL, &linkURL, &m.Priority,
			&startsAt, &expiresAt, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if imageURL.Valid {
			m.ImageURL = &imageURL.String
		}
		if linkURL.Valid {
			m.LinkURL = &linkURL.String
		}
		if startsAt.Valid {
			m.StartsAt = &startsAt.Time
		}
		if expiresAt.Valid {
			m.ExpiresAt = &expiresAt.Time
		}
		modals = append(modals, &m)
	}
	return modals, rows.Err()
}
