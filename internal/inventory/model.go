package inventory

import (
	"fmt"
	"time"
)

type Reason string

const (
	ReasonSale             Reason = "SALE"
	ReasonReturn           Reason = "RETURN"
	ReasonAdjustmentManual Reason = "ADJUSTMENT_MANUAL"
	ReasonReceiving        Reason = "RECEIVING"
	ReasonCancellation     Reason = "CANCELLATION"
	ReasonOther            Reason = "OTHER"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonSale, ReasonReturn, ReasonAdjustmentManual, ReasonReceiving, ReasonCancellation, ReasonOther:
		return true
	}
	return false
}

// StockKey identifies one stock counter: a product, or one of its variants.
type StockKey struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
}

func (k StockKey) String() string {
	if k.VariantID != nil {
		return fmt.Sprintf("%s/%s", k.ProductID, *k.VariantID)
	}
	return k.ProductID
}

// LedgerEntry is immutable once inserted. NewStock is the counter value
// right after ChangeAmount was applied.
type LedgerEntry struct {
	ID           uint      `json:"id"`
	ProductID    string    `json:"product_id"`
	VariantID    *string   `json:"variant_id,omitempty"`
	Reason       Reason    `json:"reason"`
	ChangeAmount int       `json:"change_amount"`
	NewStock     int       `json:"new_stock"`
	Notes        *string   `json:"notes,omitempty"`
	Actor        *string   `json:"actor,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (e *LedgerEntry) Key() StockKey {
	return StockKey{ProductID: e.ProductID, VariantID: e.VariantID}
}

type RecordInput struct {
	Key          StockKey
	Reason       Reason
	ChangeAmount int
	Notes        *string
	Actor        *string

	// Override, when non-empty, lets the entry drive stock below zero.
	// The text is kept on the entry for audit.
	Override string
}

type TimelinePage struct {
	Entries []*LedgerEntry `json:"entries"`
	Total   int            `json:"total"`
	Page    int32          `json:"page"`
	Limit   int32          `json:"limit"`
}
