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

	"github.com/docelar/backoffice/internal/pricing/application"
	"github.com/docelar/backoffice/internal/pricing/domain"
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
		tracer:  otel.Tracer("pricing-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/products", h.listProducts)
	r.Get("/products/calculated", h.listCalculated)
	r.Get("/products/{productID}", h.getProduct)

	r.Post("/products/{productID}/simulate", h.simulate)
	r.Post("/products/{productID}/scenarios", h.scenarios)
	r.Post("/products/{productID}/calculate", h.calculate)
	r.Delete("/products/{productID}/price", h.reset)
	r.Get("/products/{productID}/feasibility", h.feasibility)

	r.Post("/products/{productID}/ingredients", h.addIngredient)
	r.Put("/products/{productID}/ingredients/{lineID}", h.updateIngredient)
	r.Delete("/products/{productID}/ingredients/{ingredientID}", h.removeIngredient)

	return r
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProductsForPricing")
	defer span.End()

	products, err := h.service.ListProductsForPricing(ctx, filterFrom(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) listCalculated(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListCalculatedProducts")
	defer span.End()

	products, err := h.service.ListCalculatedProducts(ctx, filterFrom(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProductForPricing")
	defer span.End()

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	detail, err := h.service.GetProductForPricing(ctx, productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) simulate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SimulatePrice")
	defer span.End()

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req application.PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := h.service.SimulatePrice(ctx, productID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type scenariosReq struct {
	Scenarios []application.PriceRequest `json:"scenarios"`
}

func (h *Handler) scenarios(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SimulateScenarios")
	defer span.End()

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req scenariosReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(req.Scenarios) == 0 {
		http.Error(w, "no scenarios given", http.StatusBadRequest)
		return
	}

	results, err := h.service.SimulateScenarios(ctx, productID, req.Scenarios)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CalculateAndSavePrice")
	defer span.End()

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req application.PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	outcome, err := h.service.CalculateAndSavePrice(ctx, productID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ResetPrice")
	defer span.End()

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	product, err := h.service.ResetPrice(ctx, productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) feasibility(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AnalyzeFeasibility")
	defer span.End()

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	detail, err := h.service.GetProductForPricing(ctx, productID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	q := r.URL.Query()
	params := domain.FeasibilityParams{CostPrice: detail.Summary.CostPerUnit}
	if v, err := strconv.ParseFloat(q.Get("targetPrice"), 64); err == nil {
		params.TargetSalePrice = v
	}
	if v, err := strconv.ParseFloat(q.Get("maxMarketPrice"), 64); err == nil {
		params.MaxMarketPrice = v
	}
	if v, err := strconv.ParseFloat(q.Get("minMargin"), 64); err == nil {
		params.MinAcceptableMargin = v
	}
	if v, err := strconv.ParseFloat(q.Get("expensePercent"), 64); err == nil && v > 0 {
		params.Expenses = append(params.Expenses, domain.Expense{Name: "expenses", Type: domain.TaxPercentOnSale, Value: v})
	}

	report, err := domain.AnalyzeFeasibility(params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) addIngredient(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddIngredient")
	defer span.End()

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var req application.MatrixLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := h.service.AddIngredient(ctx, productID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) updateIngredient(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateIngredient")
	defer span.End()

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	var req application.MatrixLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := h.service.UpdateIngredient(ctx, productID, lineID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) removeIngredient(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RemoveIngredient")
	defer span.End()

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	ingredientID, ok := pathID(w, r, "ingredientID")
	if !ok {
		return
	}
	if err := h.service.RemoveIngredient(ctx, productID, ingredientID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrProductNotFound),
		errors.Is(err, application.ErrIngredientNotFound),
		errors.Is(err, application.ErrLineNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, application.ErrPriceLocked),
		errors.Is(err, application.ErrLineMismatch):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, application.ErrInvalidQuantity),
		errors.Is(err, application.ErrNoIngredients),
		errors.Is(err, domain.ErrInvalidCost),
		errors.Is(err, domain.ErrAmbiguousStrategy),
		errors.Is(err, domain.ErrInvalidMargin),
		errors.Is(err, domain.ErrInvalidYield),
		errors.Is(err, domain.ErrInvalidSalePrice),
		errors.Is(err, domain.ErrUnsupportedConversion):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.log.Error("pricing request failed", "err", err)
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

func filterFrom(r *http.Request) application.ProductFilter {
	q := r.URL.Query()
	f := application.ProductFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	return f
}
