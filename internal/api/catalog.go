package api

import (
	"net/http"

	"storefront-be/internal/product"
	"storefront-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createVariantRequest struct {
	SKU           string            `json:"sku"`
	Name          string            `json:"name"`
	PriceOverride *decimal.Decimal  `json:"price_override"`
	InitialStock  int               `json:"initial_stock"`
	Attributes    map[string]string `json:"attributes"`
	Images        []string          `json:"images"`
}

func (h *Handler) ListVariants(w http.ResponseWriter, r *http.Request) {
	views, err := h.variants.ListVariants(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	var req createVariantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	view, err := h.variants.CreateVariant(r.Context(), product.NewVariantInput{
		ProductID:     chi.URLParam(r, "productID"),
		SKU:           req.SKU,
		Name:          req.Name,
		PriceOverride: req.PriceOverride,
		InitialStock:  req.InitialStock,
		Attributes:    req.Attributes,
		Images:        req.Images,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) GetVariant(w http.ResponseWriter, r *http.Request) {
	view, err := h.variants.GetVariant(r.Context(), chi.URLParam(r, "variantID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) DeactivateVariant(w http.ResponseWriter, r *http.Request) {
	if err := h.variants.Deactivate(r.Context(), chi.URLParam(r, "variantID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ActivateVariant(w http.ResponseWriter, r *http.Request) {
	if err := h.variants.Activate(r.Context(), chi.URLParam(r, "variantID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteVariant(w http.ResponseWriter, r *http.Request) {
	if err := h.variants.DeleteVariant(r.Context(), chi.URLParam(r, "variantID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ActivePromos(w http.ResponseWriter, r *http.Request) {
	modals, err := h.promos.ActiveModals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, modals)
}
