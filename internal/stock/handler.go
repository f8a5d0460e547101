package stock

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oceangate/oceangate/internal/platform/httpx"
	"github.com/oceangate/oceangate/internal/shared"
)

// Handler exposes stock endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/available", h.available)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

// ParseListQuery reads the filter and page from list query parameters.
// "all" disables the category and status predicates.
func ParseListQuery(values url.Values) (Filter, shared.PageRequest, error) {
	var filter Filter
	filter.Search = strings.TrimSpace(values.Get("search"))
	if raw := strings.TrimSpace(values.Get("category")); raw != "" && raw != "all" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Filter{}, shared.PageRequest{}, shared.Validation("Invalid category filter %q", raw)
		}
		filter.CategoryID = &id
	}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" && raw != "all" {
		status, ok := ParseStatus(raw)
		if !ok {
			return Filter{}, shared.PageRequest{}, shared.Validation("Invalid status filter %q", raw)
		}
		filter.Status = &status
	}
	page := shared.PageRequest{Page: atoiOr(values.Get("page"), shared.DefaultPage), Limit: atoiOr(values.Get("limit"), shared.DefaultLimit)}
	return filter, page.Normalize(), nil
}

func atoiOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, page, err := ParseListQuery(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	items, pagination, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Page(w, items, pagination)
}

func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Available(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, item)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	item, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var input Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	item, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, item)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Stock deleted successfully")
}
