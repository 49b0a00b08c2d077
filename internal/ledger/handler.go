package ledger

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/movements", h.handleScan)
	r.Get("/products/{id}/balance", h.handleBalance)
	r.Get("/products/{id}/balances-by-color", h.handleBalancesByColor)
	r.Get("/products/{id}/stock-card", h.handleStockCard)
	r.Post("/adjustments", h.handleAdjust)
	r.Post("/reconciliations", h.handleReconcile)
}

type adjustRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	ColorID   *int64          `json:"color_id" validate:"omitempty,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	Note      string          `json:"note" validate:"max=500"`
}

type reconcileRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	ColorID   *int64          `json:"color_id" validate:"omitempty,gt=0"`
	Counted   decimal.Decimal `json:"counted"`
}

type balanceResponse struct {
	ProductID int64           `json:"product_id"`
	ColorID   *int64          `json:"color_id,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if productID != nil {
		filter.ProductID = *productID
	}
	movements, err := h.service.Scan(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "scan movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	colorID, err := httpx.QueryInt64(r, "color_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.service.Balance(r.Context(), productID, colorID)
	if err != nil {
		h.fail(w, r, "balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{ProductID: productID, ColorID: colorID, Balance: balance})
}

func (h *Handler) handleBalancesByColor(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balances, err := h.service.BalancesByColor(r.Context(), productID)
	if err != nil {
		h.fail(w, r, "balances by color", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balances)
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.ProductID = productID
	entries, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "stock card", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Adjust(r.Context(), AdjustInput{
		ProductID: req.ProductID,
		ColorID:   req.ColorID,
		Quantity:  req.Quantity,
		Note:      req.Note,
	})
	if err != nil {
		h.fail(w, r, "adjust", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Reconcile(r.Context(), req.ProductID, req.ColorID, req.Counted)
	if err != nil {
		h.fail(w, r, "reconcile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), "ledger request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func parseFilter(r *http.Request) (Filter, error) {
	var filter Filter
	colorID, err := httpx.QueryInt64(r, "color_id")
	if err != nil {
		return filter, err
	}
	filter.ColorID = colorID
	if filter.From, err = httpx.QueryDate(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = httpx.QueryDate(r, "to"); err != nil {
		return filter, err
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.AddDate(0, 0, 1).Add(-1)
	}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			filter.Kinds = append(filter.Kinds, Kind(strings.TrimSpace(k)))
		}
	}
	filter.OriginKind = r.URL.Query().Get("origin_kind")
	originID, err := httpx.QueryInt64(r, "origin_id")
	if err != nil {
		return filter, err
	}
	if originID != nil {
		filter.OriginID = *originID
	}
	limit, err := httpx.QueryInt64(r, "limit")
	if err != nil {
		return filter, err
	}
	if limit != nil {
		filter.Limit = int(*limit)
	}
	return filter, nil
}
