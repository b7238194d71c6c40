package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/docelar/backoffice/internal/production/application"
	"github.com/docelar/backoffice/internal/production/domain"
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
		tracer:  otel.Tracer("production-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/sync/orders/{orderID}", h.syncOrder)
	r.Delete("/sync/orders/{orderID}", h.removeOrder)
	r.Post("/sync/all", h.syncAll)
	r.Post("/sync/pending", h.syncPending)
	r.Post("/sync/clean", h.syncClean)
	r.Get("/sync/status", h.syncStatus)

	r.Get("/tasks", h.listTasks)
	r.Post("/tasks/recalculate", h.recalculate)
	r.Delete("/tasks/completed", h.clearCompleted)
	r.Get("/tasks/{taskID}", h.getTask)
	r.Patch("/tasks/{taskID}", h.updateTask)
	r.Delete("/tasks/{taskID}", h.deleteTask)
	r.Post("/tasks/{taskID}/progress", h.updateProgress)
	r.Patch("/tasks/{taskID}/status", h.updateStatus)

	r.Get("/dashboard", h.dashboard)

	return r
}

func (h *Handler) syncOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SyncOrder")
	defer span.End()

	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	result, err := h.service.SyncOrder(ctx, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) removeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RemoveOrderFromProduction")
	defer span.End()

	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	result, err := h.service.RemoveOrderFromProduction(ctx, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) syncAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SyncAllOrders")
	defer span.End()

	result, err := h.service.SyncAllOrders(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) syncPending(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SyncPendingOrders")
	defer span.End()

	result, err := h.service.SyncPendingOrders(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) syncClean(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SyncAllOrdersClean")
	defer span.End()

	result, err := h.service.SyncAllOrdersClean(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SyncStatus")
	defer span.End()

	counts, err := h.service.SyncStatus(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListTasks")
	defer span.End()

	q := r.URL.Query()
	f := application.TaskFilter{
		Status:   domain.TaskStatus(q.Get("status")),
		Priority: domain.Priority(q.Get("priority")),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	page, err := h.service.ListTasks(ctx, f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetTask")
	defer span.End()

	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}
	task, err := h.service.GetTask(ctx, taskID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type updateTaskReq struct {
	TotalQuantity     *int               `json:"totalQuantity"`
	PendingQuantity   *int               `json:"pendingQuantity"`
	CompletedQuantity *int               `json:"completedQuantity"`
	Status            *domain.TaskStatus `json:"status"`
	Priority          *domain.Priority   `json:"priority"`
	DueDate           *dateOnly          `json:"dueDate"`
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateTask")
	defer span.End()

	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}
	var req updateTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	patch := application.TaskPatch{
		TotalQuantity:     req.TotalQuantity,
		PendingQuantity:   req.PendingQuantity,
		CompletedQuantity: req.CompletedQuantity,
		Status:            req.Status,
		Priority:          req.Priority,
	}
	if req.DueDate != nil {
		t := req.DueDate.Time
		patch.DueDate = &t
	}

	task, err := h.service.UpdateTask(ctx, taskID, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteTask")
	defer span.End()

	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}
	if err := h.service.DeleteTask(ctx, taskID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type progressReq struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateProgress")
	defer span.End()

	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}
	var req progressReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	task, err := h.service.UpdateProgress(ctx, taskID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type statusReq struct {
	Status domain.TaskStatus `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateTaskStatus")
	defer span.End()

	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	task, err := h.service.UpdateTaskStatus(ctx, taskID, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RecalculateAllPriorities")
	defer span.End()

	if err := h.service.RecalculateAllPriorities(ctx); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recalculated"})
}

func (h *Handler) clearCompleted(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ClearCompleted")
	defer span.End()

	removed, err := h.service.ClearCompleted(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetDashboard")
	defer span.End()

	d, err := h.service.GetDashboard(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var syncErr *application.SyncError
	switch {
	case errors.Is(err, application.ErrOrderNotFound),
		errors.Is(err, application.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, application.ErrInvalidDelta),
		errors.Is(err, application.ErrInvalidStatus),
		errors.Is(err, application.ErrEmptyUpdate):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, application.ErrExceedsTotal):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.As(err, &syncErr):
		h.log.Error("order sync failed", "order_id", syncErr.OrderID, "err", syncErr.Err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		h.log.Error("production request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
