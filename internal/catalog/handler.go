package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the catalog.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers product, color and customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
	})
	r.Route("/colors", func(r chi.Router) {
		r.Get("/", h.listColors)
		r.Post("/", h.createColor)
	})
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{id}", h.getCustomer)
	})
}

type productRequest struct {
	Code              string           `json:"code" validate:"required,max=60"`
	Description       string           `json:"description" validate:"max=255"`
	Unit              string           `json:"unit" validate:"max=10"`
	Kind              ProductKind      `json:"kind" validate:"required,oneof=resale raw_material fabricated"`
	PurchasePrice     decimal.Decimal  `json:"purchase_price"`
	SalePrice         decimal.Decimal  `json:"sale_price"`
	ReorderMin        decimal.Decimal  `json:"reorder_min"`
	ReorderMax        *decimal.Decimal `json:"reorder_max"`
	PrimarySupplierID *int64           `json:"primary_supplier_id" validate:"omitempty,gt=0"`
	TrackedByColor    bool             `json:"tracked_by_color"`
	FabricationKind   FabricationKind  `json:"fabrication_kind" validate:"omitempty,oneof=fabricated kit"`
}

func (req productRequest) input() ProductInput {
	return ProductInput{
		Code:              req.Code,
		Description:       req.Description,
		Unit:              req.Unit,
		Kind:              req.Kind,
		PurchasePrice:     req.PurchasePrice,
		SalePrice:         req.SalePrice,
		ReorderMin:        req.ReorderMin,
		ReorderMax:        req.ReorderMax,
		PrimarySupplierID: req.PrimarySupplierID,
		TrackedByColor:    req.TrackedByColor,
		FabricationKind:   req.FabricationKind,
	}
}

type colorRequest struct {
	Name string `json:"name" validate:"required,max=60"`
}

type customerRequest struct {
	Name string       `json:"name" validate:"required,max=120"`
	Kind CustomerKind `json:"kind" validate:"omitempty,oneof=regular loja"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ProductFilter{Kind: ProductKind(q.Get("kind")), Search: q.Get("q")}
	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req productRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listColors(w http.ResponseWriter, r *http.Request) {
	colors, err := h.service.ListColors(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, colors)
}

func (h *Handler) createColor(w http.ResponseWriter, r *http.Request) {
	var req colorRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateColor(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customers)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateCustomer(r.Context(), req.Name, req.Kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WarnContext(r.Context(), "catalog request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
