package production

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/platform/httpx"
)

// Handler wires HTTP endpoints for production orders.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs production handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers production routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.list)
	r.Post("/orders", h.create)
	r.Get("/orders/{id}", h.get)
	r.Post("/orders/{id}/execute", h.execute)
	r.Get("/orders/{id}/color-check", h.checkColors)
	r.Get("/buildable/{productID}", h.buildable)
}

type lineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Role      Role            `json:"role" validate:"required,oneof=fabricated kit"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type createRequest struct {
	Date            string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	ColorID         *int64          `json:"color_id" validate:"omitempty,gt=0"`
	Note            string          `json:"note" validate:"max=500"`
	OutputProductID int64           `json:"output_product_id" validate:"omitempty,gt=0"`
	Quantity        decimal.Decimal `json:"quantity"`
	Lines           []lineRequest   `json:"lines" validate:"dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateInput{
		ColorID:         req.ColorID,
		Note:            req.Note,
		OutputProductID: req.OutputProductID,
		Quantity:        req.Quantity,
	}
	if req.Date != "" {
		input.Date, _ = time.Parse("2006-01-02", req.Date)
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, LineInput{ProductID: l.ProductID, Role: l.Role, Quantity: l.Quantity})
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.fail(w, r, "create", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context(), ListFilter{Status: Status(r.URL.Query().Get("status"))})
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Execute(r.Context(), id)
	if err != nil {
		h.fail(w, r, "execute", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) checkColors(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.CheckColors(r.Context(), id)
	if err != nil {
		h.fail(w, r, "color check", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) buildable(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.BuildableQuantity(r.Context(), productID)
	if err != nil {
		h.fail(w, r, "buildable", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), "production request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
