package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/platform/httpx"
)

// Handler exposes the rule administration JSON API.
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

// MountRoutes registers the administration routes. The whole surface sits
// behind manage grants on both subjects, which in practice means the
// ADMIN role's manage/all rule.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Protect(
			abac.RequireCan(abac.ActionManage, abac.SubjectUser),
			abac.RequireCan(abac.ActionManage, abac.SubjectPost),
		))
		r.Get("/roles", h.listRoles)
		r.Post("/roles", h.createRole)
		r.Get("/permissions", h.listPermissions)
		r.Post("/permissions", h.createPermission)
		r.Get("/roles/{roleID}/permissions", h.rolePermissions)
		r.Put("/roles/{roleID}/permissions", h.setRolePermissions)
		r.Post("/users/{userID}/roles/{roleID}", h.assignRole)
		r.Delete("/users/{userID}/roles/{roleID}", h.removeRole)
	})
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{ID: role.ID, Name: role.Name, Description: role.Description}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, "list roles", err)
		return
	}
	out := make([]roleResponse, 0, len(list))
	for _, role := range list {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request")
		return
	}
	role, err := h.service.CreateRole(r.Context(), h.actorID(r), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, ErrRoleTaken) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "role name already exists")
			return
		}
		h.respondError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

type permissionResponse struct {
	ID         int64   `json:"id"`
	Action     string  `json:"action"`
	Subject    string  `json:"subject"`
	Fields     *string `json:"fields"`
	Conditions *string `json:"conditions"`
}

func toPermissionResponse(perm Permission) permissionResponse {
	return permissionResponse{
		ID:         perm.ID,
		Action:     perm.Action,
		Subject:    perm.Subject,
		Fields:     perm.Fields,
		Conditions: perm.Conditions,
	}
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.respondError(w, "list permissions", err)
		return
	}
	out := make([]permissionResponse, 0, len(list))
	for _, perm := range list {
		out = append(out, toPermissionResponse(perm))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type createPermissionRequest struct {
	Action     string  `json:"action" validate:"required"`
	Subject    string  `json:"subject" validate:"required"`
	Fields     *string `json:"fields"`
	Conditions *string `json:"conditions"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request")
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), h.actorID(r), Permission{
		Action:     req.Action,
		Subject:    req.Subject,
		Fields:     req.Fields,
		Conditions: req.Conditions,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRule) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.respondError(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPermissionResponse(perm))
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	ids, err := h.service.RolePermissionIDs(r.Context(), roleID)
	if err != nil {
		h.respondError(w, "role permissions", err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissionIds": ids})
}

type setRolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permissionIds" validate:"required"`
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	var req setRolePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.service.SetRolePermissions(r.Context(), h.actorID(r), roleID, req.PermissionIDs); err != nil {
		h.respondError(w, "set role permissions", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.AssignRole(r.Context(), h.actorID(r), userID, roleID); err != nil {
		h.respondError(w, "assign role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.RemoveRole(r.Context(), h.actorID(r), userID, roleID); err != nil {
		h.respondError(w, "remove role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) actorID(r *http.Request) int64 {
	actor, _ := abac.ActorFromContext(r.Context())
	return actor.ID
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, ErrInvalidRule):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
