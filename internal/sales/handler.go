package sales

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/platform/httpx"
)

// Handler handles HTTP requests for sales orders.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/delivery-feed", h.deliveryFeed)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/deliver", h.deliver)
}

type lineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	ColorID   *int64          `json:"color_id" validate:"omitempty,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createRequest struct {
	CustomerID       *int64          `json:"customer_id" validate:"omitempty,gt=0"`
	OrderDate        string          `json:"order_date" validate:"omitempty,datetime=2006-01-02"`
	DeliveryKind     DeliveryKind    `json:"delivery_kind" validate:"omitempty,oneof=pickup delivery"`
	PromisedLeadDays *int            `json:"promised_lead_days" validate:"omitempty,gte=1"`
	Freight          decimal.Decimal `json:"freight"`
	Note             string          `json:"note" validate:"max=500"`
	Lines            []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

type updateRequest struct {
	CustomerID       *int64           `json:"customer_id" validate:"omitempty,gt=0"`
	DeliveryKind     *DeliveryKind    `json:"delivery_kind" validate:"omitempty,oneof=pickup delivery"`
	PromisedLeadDays *int             `json:"promised_lead_days" validate:"omitempty,gte=1"`
	Freight          *decimal.Decimal `json:"freight"`
	Note             *string          `json:"note" validate:"omitempty,max=500"`
	Lines            []lineRequest    `json:"lines" validate:"omitempty,min=1,dive"`
}

type confirmRequest struct {
	PromisedLeadDays *int `json:"promised_lead_days"`
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

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateInput{
		CustomerID:       req.CustomerID,
		DeliveryKind:     req.DeliveryKind,
		PromisedLeadDays: req.PromisedLeadDays,
		Freight:          req.Freight,
		Note:             req.Note,
		Lines:            toLineInputs(req.Lines),
	}
	if req.OrderDate != "" {
		input.OrderDate, _ = time.Parse("2006-01-02", req.OrderDate)
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
	order, err := h.service.Update(r.Context(), id, UpdateInput{
		CustomerID:       req.CustomerID,
		DeliveryKind:     req.DeliveryKind,
		PromisedLeadDays: req.PromisedLeadDays,
		Freight:          req.Freight,
		Note:             req.Note,
		Lines:            toLineInputs(req.Lines),
	})
	if err != nil {
		h.fail(w, r, "update", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req confirmRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	order, err := h.service.Confirm(r.Context(), id, req.PromisedLeadDays)
	if err != nil {
		h.fail(w, r, "confirm", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, r, "cancel", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Deliver(r.Context(), id)
	if err != nil {
		h.fail(w, r, "deliver", err)
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
	customerID, err := httpx.QueryInt64(r, "customer_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	if customerID != nil {
		filter.CustomerID = *customerID
	}
	if filter.From, err = httpx.QueryDate(r, "from"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryDate(r, "to"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) deliveryFeed(w http.ResponseWriter, r *http.Request) {
	stops, err := h.service.DeliveryFeed(r.Context())
	if err != nil {
		h.fail(w, r, "delivery feed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stops)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), "sales request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
