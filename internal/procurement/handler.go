package procurement

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/platform/httpx"
)

// Handler exposes purchase order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/receive", h.receive)
}

type lineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	ColorID   *int64          `json:"color_id" validate:"omitempty,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createRequest struct {
	SupplierID   int64         `json:"supplier_id" validate:"required,gt=0"`
	Kind         Kind          `json:"kind" validate:"omitempty,oneof=order direct_receipt"`
	OrderDate    string        `json:"order_date" validate:"omitempty,datetime=2006-01-02"`
	ExpectedDate string        `json:"expected_date" validate:"omitempty,datetime=2006-01-02"`
	Note         string        `json:"note" validate:"max=500"`
	Lines        []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type updateRequest struct {
	SupplierID   *int64        `json:"supplier_id" validate:"omitempty,gt=0"`
	ExpectedDate *string       `json:"expected_date" validate:"omitempty,datetime=2006-01-02"`
	Note         *string       `json:"note" validate:"omitempty,max=500"`
	Lines        []lineRequest `json:"lines" validate:"omitempty,min=1,dive"`
}

type receiveRequest struct {
	Lines []struct {
		LineID           int64           `json:"line_id" validate:"required,gt=0"`
		QuantityReceived decimal.Decimal `json:"quantity_received"`
	} `json:"lines" validate:"required,min=1,dive"`
}

func toLineInputs(lines []lineRequest) []LineInput {
	if lines == nil {
		return nil
	}
	out := make([]LineInput, len(lines))
	for i, l := range lines {
		out[i] = LineInput{ProductID: l.ProductID, ColorID: l.ColorID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return out
}

func parseDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateInput{
		SupplierID:   req.SupplierID,
		Kind:         req.Kind,
		ExpectedDate: parseDate(req.ExpectedDate),
		Note:         req.Note,
		Lines:        toLineInputs(req.Lines),
	}
	if d := parseDate(req.OrderDate); d != nil {
		input.OrderDate = *d
	}
	order, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, "create", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := UpdateInput{SupplierID: req.SupplierID, Note: req.Note, Lines: toLineInputs(req.Lines)}
	if req.ExpectedDate != nil {
		input.ExpectedDate = parseDate(*req.ExpectedDate)
	}
	order, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.fail(w, r, "update", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req receiveRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	receipts := make([]ReceiveInput, len(req.Lines))
	for i, l := range req.Lines {
		receipts[i] = ReceiveInput{LineID: l.LineID, QuantityReceived: l.QuantityReceived}
	}
	order, err := h.service.Receive(r.Context(), id, receipts)
	if err != nil {
		h.fail(w, r, "receive", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
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

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	supplierID, err := httpx.QueryInt64(r, "supplier_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{Status: Status(r.URL.Query().Get("status")), Kind: Kind(r.URL.Query().Get("kind"))}
	if supplierID != nil {
		filter.SupplierID = *supplierID
	}
	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), "purchase request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
