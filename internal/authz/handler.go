package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-bms/meridian-bms/internal/platform/httpx"
	"github.com/meridian-bms/meridian-bms/internal/shared"
)

// Handler exposes the administrative JSON surface for roles, modules,
// permission entries and user role bindings.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
	matrix   *Matrix
	bindings *Bindings
	resolver *Resolver
	cache    *CachedStore
	mw       Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler. cache may be nil when resolver reads go
// straight to the store.
func NewHandler(logger *slog.Logger, registry *Registry, matrix *Matrix, bindings *Bindings, resolver *Resolver, cache *CachedStore, mw Middleware) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		matrix:   matrix,
		bindings: bindings,
		resolver: resolver,
		cache:    cache,
		mw:       mw,
		validate: validator.New(),
	}
}

// MountRoutes registers the admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleUsers, ActionRead))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{roleID}/entries", h.listEntries)
		r.Get("/modules", h.listModules)
		r.Get("/users/{userID}/binding", h.getBinding)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleUsers, ActionCreate))
		r.Post("/roles", h.createRole)
		r.Post("/modules", h.createModule)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleUsers, ActionUpdate))
		r.Put("/roles/{roleID}/entries/{moduleID}", h.upsertEntry)
		r.Post("/roles/{roleID}/deactivate", h.deactivateRole)
		r.Post("/roles/{roleID}/activate", h.activateRole)
		r.Put("/users/{userID}/role", h.bindRole)
		r.Post("/users/{userID}/migrate-role", h.migrateRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleUsers, ActionDelete))
		r.Delete("/roles/{roleID}", h.deleteRole)
		r.Delete("/roles/{roleID}/entries/{moduleID}", h.deleteEntry)
		r.Delete("/modules/{moduleID}", h.deleteModule)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.registry.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

type createRoleRequest struct {
	Name         string `json:"name" validate:"required"`
	Level        int    `json:"level" validate:"gte=0"`
	Description  string `json:"description"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.registry.CreateRole(r.Context(), CreateRoleInput{
		Name:         req.Name,
		Level:        req.Level,
		Description:  req.Description,
		IsSuperAdmin: req.IsSuperAdmin,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidate(r.Context())
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) deactivateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.registry.DeactivateRole(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) activateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.registry.ActivateRole(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.registry.DeleteRole(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.registry.ListModules(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, modules)
}

type createModuleRequest struct {
	Key              string `json:"key" validate:"required"`
	DisplayName      string `json:"displayName"`
	RequiresApproval bool   `json:"requiresApproval"`
}

func (h *Handler) createModule(w http.ResponseWriter, r *http.Request) {
	var req createModuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	module, err := h.registry.CreateModule(r.Context(), CreateModuleInput{
		Key:              req.Key,
		DisplayName:      req.DisplayName,
		RequiresApproval: req.RequiresApproval,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidate(r.Context())
	httpx.JSON(w, http.StatusCreated, module)
}

func (h *Handler) deleteModule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "moduleID")
	if !ok {
		return
	}
	if err := h.registry.DeleteModule(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	entries, err := h.matrix.ListEntriesForRole(r.Context(), roleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

type upsertEntryRequest struct {
	CanRead    bool `json:"canRead"`
	CanCreate  bool `json:"canCreate"`
	CanUpdate  bool `json:"canUpdate"`
	CanDelete  bool `json:"canDelete"`
	CanExport  bool `json:"canExport"`
	CanApprove bool `json:"canApprove"`
}

func (h *Handler) upsertEntry(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	moduleID, ok := h.pathID(w, r, "moduleID")
	if !ok {
		return
	}
	var req upsertEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	entry, err := h.matrix.UpsertEntry(r.Context(), roleID, moduleID, Capabilities{
		CanRead:    req.CanRead,
		CanCreate:  req.CanCreate,
		CanUpdate:  req.CanUpdate,
		CanDelete:  req.CanDelete,
		CanExport:  req.CanExport,
		CanApprove: req.CanApprove,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidate(r.Context())
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	moduleID, ok := h.pathID(w, r, "moduleID")
	if !ok {
		return
	}
	if err := h.matrix.DeleteEntry(r.Context(), roleID, moduleID); err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getBinding(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	binding, err := h.bindings.GetBinding(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, binding)
}

type bindRoleRequest struct {
	RoleID int64 `json:"roleId" validate:"required,min=1"`
}

func (h *Handler) bindRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var req bindRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	binding, err := h.bindings.Bind(r.Context(), h.actorID(r), userID, req.RoleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, binding)
}

type migrateRoleRequest struct {
	LegacyLabel string `json:"legacyLabel"`
}

func (h *Handler) migrateRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var req migrateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	roleID, err := h.bindings.MigrateLegacyLabel(r.Context(), h.actorID(r), userID, req.LegacyLabel)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"roleId": roleID})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) actorID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}

func (h *Handler) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx); err != nil && h.logger != nil {
		h.logger.Warn("authz cache invalidate", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRoleNotFound), errors.Is(err, ErrModuleNotFound),
		errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrBindingNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrSuperAdminExists):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrEntriesExist):
		httpx.Problem(w, http.StatusConflict, "Entries Exist", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("authz handler", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
