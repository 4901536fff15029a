package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront-be/internal/inventory"
	"storefront-be/internal/metrics"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/product"
	"storefront-be/internal/promo"
	"storefront-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// BulkRunner applies one action to many orders.
type BulkRunner interface {
	Apply(ctx context.Context, ids []uint, action order.BulkAction, tc order.TransitionContext) (*order.BulkResult, error)
}

type Deps struct {
	Orders   order.Service
	Bulk     BulkRunner
	Refund   order.RefundPolicy
	Ledger   inventory.Ledger
	Variants product.Service
	Promos   promo.Service
	Metrics  *metrics.Orders
}

type Handler struct {
	orders   order.Service
	bulk     BulkRunner
	refund   order.RefundPolicy
	ledger   inventory.Ledger
	variants product.Service
	promos   promo.Service
	metrics  *metrics.Orders
	now      func() time.Time
}

func NewHandler(d Deps) *Handler {
	m := d.Metrics
	if m == nil {
		m = &metrics.Orders{}
	}
	return &Handler{
		orders:   d.Orders,
		bulk:     d.Bulk,
		refund:   d.Refund,
		ledger:   d.Ledger,
		variants: d.Variants,
		promos:   d.Promos,
		metrics:  m,
		now:      time.Now,
	}
}

// Routes mounts the storefront API. Everything except the promo feed
// requires a staff caller.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/promos/active", h.ActivePromos)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaff)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Post("/bulk", h.BulkAction)
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", h.GetOrder)
				r.Get("/transitions", h.AllowedTransitions)
				r.Post("/transition", h.TransitionOrder)
				r.Post("/notes", h.AddNote)
				r.Get("/refund-eligibility", h.RefundEligibility)
			})
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/adjust", h.AdjustStock)
			r.Get("/{productID}/timeline", h.StockTimeline)
			r.Get("/{productID}/verify", h.VerifyStock)
		})

		r.Route("/products/{productID}/variants", func(r chi.Router) {
			r.Get("/", h.ListVariants)
			r.Post("/", h.CreateVariant)
		})

		r.Route("/variants/{variantID}", func(r chi.Router) {
			r.Get("/", h.GetVariant)
			r.Post("/deactivate", h.DeactivateVariant)
			r.Post("/activate", h.ActivateVariant)
			r.Delete("/", h.DeleteVariant)
		})

		r.Get("/metrics", h.Metrics)
	})

	return r
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.metrics.Snapshot())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func orderIDParam(r *http.Request) (uint, error) {
	return utils.ToUint(chi.URLParam(r, "orderID"))
}

func queryInt32(r *http.Request, key string) int32 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
}

func queryOptional(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}
