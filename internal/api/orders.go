package api

import (
	"net/http"
	"strings"

	"storefront-be/internal/order"
	"storefront-be/internal/utils"

	"github.com/shopspring/decimal"
)

type orderListResponse struct {
	Orders []*order.Summary `json:"orders"`
	Total  int              `json:"total"`
	Page   int32            `json:"page"`
	Limit  int32            `json:"limit"`
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.Filter{
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Source:   q.Get("source"),
		Age:      q.Get("age"),
		Rating:   q.Get("rating"),
		Refund:   q.Get("refund"),
	}

	page, err := h.orders.ListOrders(r.Context(), f, queryInt32(r, "page"), queryInt32(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, orderListResponse{
		Orders: order.ToSummaries(page.Orders, h.refund, h.now()),
		Total:  page.Total,
		Page:   page.Page,
		Limit:  page.Limit,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid order id")
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, o)
}

type createOrderItemRequest struct {
	ProductID   string          `json:"product_id"`
	VariantID   *string         `json:"variant_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	CustomerName  string                   `json:"customer_name"`
	CustomerEmail string                   `json:"customer_email"`
	CouponCode    *string                  `json:"coupon_code"`
	Priority      order.Priority           `json:"priority"`
	Source        order.Source             `json:"source"`
	PaymentStatus order.PaymentStatus      `json:"payment_status"`
	Tax           decimal.Decimal          `json:"tax"`
	Shipping      decimal.Decimal          `json:"shipping"`
	Discount      decimal.Decimal          `json:"discount"`
	Items         []createOrderItemRequest `json:"items"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	in := order.CreateOrderInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CouponCode:    req.CouponCode,
		Priority:      req.Priority,
		Source:        req.Source,
		PaymentStatus: req.PaymentStatus,
		Tax:           req.Tax,
		Shipping:      req.Shipping,
		Discount:      req.Discount,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, order.CreateOrderItemInput(item))
	}

	o, err := h.orders.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) AllowedTransitions(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid order id")
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   o.Status,
		"allowed":  order.AllowedTransitions(o.Status),
		"terminal": order.IsTerminal(o.Status),
	})
}

type transitionRequest struct {
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

type transitionResponse struct {
	Order    *order.Order      `json:"order"`
	From     order.OrderStatus `json:"from"`
	Warnings []order.Warning   `json:"warnings"`
}

func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid order id")
		return
	}

	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	to, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, res, err := h.orders.Transition(r.Context(), id, to, order.TransitionContext{
		Actor:          utils.ActorFromContext(r.Context()),
		Reason:         strings.TrimSpace(req.Reason),
		TrackingNumber: strings.TrimSpace(req.TrackingNumber),
		Carrier:        strings.TrimSpace(req.Carrier),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []order.Warning{}
	}
	utils.WriteJSON(w, http.StatusOK, transitionResponse{Order: o, From: res.From, Warnings: warnings})
}

type noteRequest struct {
	Content  string `json:"content"`
	Internal bool   `json:"internal"`
}

func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid order id")
		return
	}

	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	note, err := h.orders.AddNote(r.Context(), id, req.Content, req.Internal)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, note)
}

func (h *Handler) RefundEligibility(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid order id")
		return
	}

	decision, err := h.orders.RefundEligibility(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, decision)
}

type bulkRequest struct {
	IDs    []uint `json:"ids"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// BulkAction answers 200 even when some orders failed; the body lists the
// per-order outcome.
func (h *Handler) BulkAction(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeBadRequest(w, "ids must not be empty")
		return
	}

	result, err := h.bulk.Apply(r.Context(), req.IDs, order.BulkAction(req.Action), order.TransitionContext{
		Actor:  utils.ActorFromContext(r.Context()),
		Reason: strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}
