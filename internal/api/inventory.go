package api

import (
	"errors"
	"net/http"
	"strings"

	"storefront-be/internal/inventory"
	"storefront-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

type adjustRequest struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id"`
	Reason    string  `json:"reason"`
	Change    int     `json:"change"`
	Notes     *string `json:"notes"`
	Override  string  `json:"override"`
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	reason := inventory.Reason(strings.ToUpper(strings.TrimSpace(req.Reason)))
	if reason == "" {
		reason = inventory.ReasonAdjustmentManual
	}
	actor := utils.ActorFromContext(r.Context())

	entry, err := h.ledger.Record(r.Context(), inventory.RecordInput{
		Key:          inventory.StockKey{ProductID: req.ProductID, VariantID: req.VariantID},
		Reason:       reason,
		ChangeAmount: req.Change,
		Notes:        req.Notes,
		Actor:        &actor,
		Override:     strings.TrimSpace(req.Override),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, entry)
}

func stockKeyParam(r *http.Request) inventory.StockKey {
	return inventory.StockKey{
		ProductID: chi.URLParam(r, "productID"),
		VariantID: queryOptional(r, "variant_id"),
	}
}

func (h *Handler) StockTimeline(w http.ResponseWriter, r *http.Request) {
	page, err := h.ledger.Timeline(r.Context(), stockKeyParam(r), queryInt32(r, "page"), queryInt32(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, page)
}

type verifyResponse struct {
	Key        string `json:"key"`
	Consistent bool   `json:"consistent"`
	Detail     string `json:"detail,omitempty"`
}

// VerifyStock reports a diverged ledger in the body rather than as an error
// status; the check itself succeeded.
func (h *Handler) VerifyStock(w http.ResponseWriter, r *http.Request) {
	key := stockKeyParam(r)

	err := h.ledger.Verify(r.Context(), key)
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusOK, verifyResponse{Key: key.String(), Consistent: true})
	case errors.Is(err, inventory.ErrLedgerDiverged):
		utils.WriteJSON(w, http.StatusOK, verifyResponse{Key: key.String(), Consistent: false, Detail: err.Error()})
	default:
		writeError(w, r, err)
	}
}
