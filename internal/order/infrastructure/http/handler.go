package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/docelar/backoffice/internal/order/application"
	"github.com/docelar/backoffice/internal/order/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Patch("/orders/{orderID}/status", h.updateStatus)
	r.Post("/orders/{orderID}/cancel", h.cancelOrder)

	return r
}

type createOrderReq struct {
	CustomerID   int64                     `json:"customerId"`
	OrderDate    string                    `json:"orderDate"`
	DeliveryDate string                    `json:"deliveryDate"`
	Notes        string                    `json:"notes"`
	Discount     float64                   `json:"discount"`
	Items        []application.ItemRequest `json:"items"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	orderDate, err := parseDate(req.OrderDate)
	if err != nil && req.OrderDate != "" {
		http.Error(w, "invalid orderDate", http.StatusBadRequest)
		return
	}
	deliveryDate, err := parseDate(req.DeliveryDate)
	if err != nil {
		http.Error(w, "invalid deliveryDate", http.StatusBadRequest)
		return
	}

	order, err := h.service.CreateOrder(ctx, application.CreateOrderRequest{
		CustomerID:   req.CustomerID,
		OrderDate:    orderDate,
		DeliveryDate: deliveryDate,
		Notes:        req.Notes,
		Discount:     req.Discount,
		Items:        req.Items,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	q := r.URL.Query()
	f := application.OrderFilter{Status: domain.OrderStatus(q.Get("status"))}
	f.CustomerID, _ = strconv.ParseInt(q.Get("customerId"), 10, 64)
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	page, err := h.service.ListOrders(ctx, f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	order, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type statusReq struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	order, err := h.service.UpdateStatus(ctx, orderID, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	order, err := h.service.CancelOrder(ctx, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrOrderNotFound),
		errors.Is(err, application.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, application.ErrNoItems),
		errors.Is(err, application.ErrInvalidQuantity),
		errors.Is(err, application.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.log.Error("order request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
