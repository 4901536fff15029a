package api

import (
	"errors"
	"net/http"

	"storefront-be/internal/inventory"
	"storefront-be/internal/logger"
	"storefront-be/internal/order"
	"storefront-be/internal/product"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

type errorBody struct {
	Error string          `json:"error"`
	Kind  order.ErrorKind `json:"kind"`
}

// kindOf extends order.KindOf with the catalog and ledger errors.
func kindOf(err error) order.ErrorKind {
	switch {
	case errors.Is(err, product.ErrProductNotFound), errors.Is(err, product.ErrVariantNotFound):
		return order.KindNotFound
	case errors.Is(err, product.ErrVariantInUse), errors.Is(err, product.ErrDuplicateSKU):
		return order.KindConflict
	case errors.Is(err, product.ErrInvalidVariant),
		errors.Is(err, inventory.ErrInvalidReason),
		errors.Is(err, inventory.ErrZeroChange),
		errors.Is(err, inventory.ErrMissingProduct):
		return order.KindValidation
	}
	return order.KindOf(err)
}

func statusFor(kind order.ErrorKind) int {
	switch kind {
	case order.KindValidation:
		return http.StatusBadRequest
	case order.KindInvalidTransition, order.KindRefundIneligible:
		return http.StatusUnprocessableEntity
	case order.KindNegativeStock, order.KindConflict:
		return http.StatusConflict
	case order.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := kindOf(err)
	status := statusFor(kind)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = http.StatusText(status)
	}

	utils.WriteJSON(w, status, errorBody{Error: msg, Kind: kind})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	utils.WriteJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: order.KindValidation})
}
