package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"is_active"`
}

type Variant struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	// PriceOverride nil means the variant sells at the product price.
	PriceOverride *decimal.Decimal `json:"price_override,omitempty"`
	// Stock is maintained by the inventory ledger only.
	Stock      int               `json:"stock"`
	Attributes map[string]string `json:"attributes"`
	Images     []string          `json:"images"`
	IsActive   bool              `json:"is_active"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (v *Variant) EffectivePrice(productPrice decimal.Decimal) decimal.Decimal {
	if v.PriceOverride != nil {
		return *v.PriceOverride
	}
	return productPrice
}

type NewVariantInput struct {
	ProductID     string
	SKU           string
	Name          string
	PriceOverride *decimal.Decimal
	InitialStock  int
	Attributes    map[string]string
	Images        []string
}

// VariantView pairs a variant with the price it sells at.
type VariantView struct {
	*Variant
	Price decimal.Decimal `json:"price"`
}
