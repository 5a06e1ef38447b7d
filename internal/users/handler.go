package users

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

// Handler exposes the users JSON API.
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

// MountRoutes registers user routes. Signup is public; everything else
// declares its policy chain here, at registration time.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Protect(abac.RequireCan(abac.ActionRead, abac.SubjectUser)))
		r.Get("/", h.list)
		r.Get("/{uuid}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Protect(abac.RequireCan(abac.ActionUpdate, abac.SubjectUser)))
		r.Patch("/{uuid}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Protect(abac.RequireCan(abac.ActionDelete, abac.SubjectUser)))
		r.Delete("/{uuid}", h.remove)
	})
}

type createRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,min=3,max=32"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	user, err := h.service.Create(r.Context(), CreateInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		City:      req.City,
		Country:   req.Country,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "email already registered")
			return
		}
		h.logger.Error("create user", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, user.AttributeMap())
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ability := abac.AbilityFromContext(r.Context())
	page := shared.ParsePageRequest(r, maxPerPage)
	records, total, err := h.service.List(r.Context(), ability, page)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
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
	record, err := h.service.Get(r.Context(), ability, chi.URLParam(r, "uuid"))
	if err != nil {
		h.respondError(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

type updateRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=3,max=32"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	City      *string `json:"city"`
	Country   *string `json:"country"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	ability := abac.AbilityFromContext(r.Context())
	record, err := h.service.Update(r.Context(), ability, chi.URLParam(r, "uuid"), UpdateInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		City:      req.City,
		Country:   req.Country,
	})
	if err != nil {
		h.respondError(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	ability := abac.AbilityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), ability, chi.URLParam(r, "uuid")); err != nil {
		h.respondError(w, "delete user", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, ErrFieldForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fieldErrs[0].Field() + " is invalid"
	}
	return "invalid request"
}
