package posts

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/platform/httpx"
	"github.com/pressroom-hq/pressroom/internal/shared"
)

const maxPerPage = 100

// Handler exposes the posts JSON API. Every route is guarded.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    abac.Guard
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard abac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers post routes with their policy chains.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Protect(abac.RequireCan(abac.ActionRead, abac.SubjectPost)))
		r.Get("/", h.list)
		r.Get("/{slug}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Protect(abac.RequireCan(abac.ActionCreate, abac.SubjectPost)))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Protect(abac.RequireCan(abac.ActionUpdate, abac.SubjectPost)))
		r.Patch("/{slug}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Protect(abac.RequireCan(abac.ActionDelete, abac.SubjectPost)))
		r.Delete("/{slug}", h.remove)
	})
}

type createRequest struct {
	Title     string `json:"title" validate:"required,min=3,max=200"`
	Body      string `json:"body" validate:"required"`
	Published bool   `json:"published"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request")
		return
	}
	actor, ok := abac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	ability := abac.AbilityFromContext(r.Context())
	post, err := h.service.Create(r.Context(), ability, actor.ID, CreateInput{
		Title:     req.Title,
		Body:      req.Body,
		Published: req.Published,
	})
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "a post with this title already exists")
			return
		}
		h.respondError(w, "create post", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, post.AttributeMap())
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ability := abac.AbilityFromContext(r.Context())
	page := shared.ParsePageRequest(r, maxPerPage)
	records, total, err := h.service.List(r.Context(), ability, page)
	if err != nil {
		h.logger.Error("list posts", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if records == nil {
		records = []map[string]any{}
	}
	httpx.JSON(w, http.StatusOK, httpx.Page{
		Data: records,
		Meta: httpx.PageMeta{Total: total, Page: page.Page, PerPage: page.PerPage},
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ability := abac.AbilityFromContext(r.Context())
	record, err := h.service.Get(r.Context(), ability, chi.URLParam(r, "slug"))
	if err != nil {
		h.respondError(w, "get post", err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

type updateRequest struct {
	Title     *string `json:"title" validate:"omitempty,min=3,max=200"`
	Body      *string `json:"body"`
	Published *bool   `json:"published"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request")
		return
	}
	ability := abac.AbilityFromContext(r.Context())
	record, err := h.service.Update(r.Context(), ability, chi.URLParam(r, "slug"), UpdateInput{
		Title:     req.Title,
		Body:      req.Body,
		Published: req.Published,
	})
	if err != nil {
		h.respondError(w, "update post", err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	ability := abac.AbilityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), ability, chi.URLParam(r, "slug")); err != nil {
		h.respondError(w, "delete post", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, ErrFieldForbidden), errors.Is(err, httpx.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
