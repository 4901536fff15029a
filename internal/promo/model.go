package promo

import "time"

type Modal struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ImageURL  *string    `json:"image_url,omitempty"`
	LinkURL   *string    `json:"link_url,omitempty"`
	Priority  int        `json:"priority"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsEffective reports whether the modal should be shown at now. The start is
// inclusive and the expiry exclusive; either bound may be unset.
func (m *Modal) IsEffective(now time.Time) bool {
	if !m.IsActive {
		return false
	}
	if m.StartsAt != nil && m.StartsAt.After(now) {
		return false
	}
	if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
		return false
	}
	return true
}
