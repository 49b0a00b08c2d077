package reorder

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-stock/internal/platform/httpx"
)

// Handler exposes reorder endpoints.
type Handler struct {
	logger  *slog.Logger
	advisor *Advisor
}

// NewHandler builds reorder handler.
func NewHandler(logger *slog.Logger, advisor *Advisor) *Handler {
	return &Handler{logger: logger, advisor: advisor}
}

// MountRoutes registers reorder routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{id}/suggestion", h.suggest)
	r.Get("/below-minimum", h.belowMinimum)
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.advisor.Suggest(r.Context(), id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "reorder suggestion failed", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) belowMinimum(w http.ResponseWriter, r *http.Request) {
	list, err := h.advisor.BelowMinimumList(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "below minimum failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []BelowMinimum{}
	}
	httpx.JSON(w, http.StatusOK, list)
}
