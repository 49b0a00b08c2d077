package bom

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/platform/httpx"
)

// Handler wires HTTP endpoints for recipes.
type Handler struct {
	logger *slog.Logger
	graph  *Graph
}

// NewHandler constructs BOM handler.
func NewHandler(logger *slog.Logger, graph *Graph) *Handler {
	return &Handler{logger: logger, graph: graph}
}

// MountRoutes registers BOM routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{productID}/inputs", h.listInputs)
	r.Put("/{productID}/inputs/{inputID}", h.upsertEdge)
	r.Delete("/{productID}/inputs/{inputID}", h.removeEdge)
	r.Get("/{productID}/buildable", h.buildable)
}

type edgeRequest struct {
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
}

func (h *Handler) listInputs(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inputs, err := h.graph.ListInputs(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inputs)
}

func (h *Handler) upsertEdge(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inputID, err := httpx.IDParam(r, "inputID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req edgeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	edge, err := h.graph.UpsertEdge(r.Context(), productID, inputID, req.QuantityPerUnit)
	if err != nil {
		h.logger.WarnContext(r.Context(), "bom upsert failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, edge)
}

func (h *Handler) removeEdge(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inputID, err := httpx.IDParam(r, "inputID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	removed, err := h.graph.RemoveEdge(r.Context(), productID, inputID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !removed {
		httpx.RespondError(w, ErrEdgeNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) buildable(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.graph.BuildableQuantity(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
