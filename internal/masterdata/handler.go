package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-bms/meridian-bms/internal/authz"
	"github.com/meridian-bms/meridian-bms/internal/platform/httpx"
	"github.com/meridian-bms/meridian-bms/internal/shared"
)

// Handler exposes client and project JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	mw       authz.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, repo Repository, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, mw: mw, validate: validator.New()}
}

// MountClientRoutes registers client routes.
func (h *Handler) MountClientRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleClients, authz.ActionRead))
		r.Get("/", h.listClients)
		r.Get("/{clientID}", h.getClient)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleClients, authz.ActionCreate))
		r.Post("/", h.createClient)
	})
}

// MountProjectRoutes registers project routes.
func (h *Handler) MountProjectRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleProjects, authz.ActionRead))
		r.Get("/", h.listProjects)
		r.Get("/{projectID}", h.getProject)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleProjects, authz.ActionCreate))
		r.Post("/", h.createProject)
	})
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.repo.ListClients(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, clients)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "clientID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "invalid client id")
		return
	}
	client, err := h.repo.GetClient(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

type createClientRequest struct {
	Name  string `json:"name" validate:"required"`
	TaxID string `json:"taxId"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	client, err := h.repo.CreateClient(r.Context(), CreateClientInput{
		Name:  strings.TrimSpace(req.Name),
		TaxID: strings.TrimSpace(req.TaxID),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, client)
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	var clientID int64
	if raw := r.URL.Query().Get("client"); raw != "" {
		clientID, _ = strconv.ParseInt(raw, 10, 64)
	}
	projects, err := h.repo.ListProjects(r.Context(), clientID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projects)
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "invalid project id")
		return
	}
	project, err := h.repo.GetProject(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

type createProjectRequest struct {
	ClientID int64  `json:"clientId" validate:"min=1"`
	Name     string `json:"name" validate:"required"`
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if _, err := h.repo.GetClient(r.Context(), req.ClientID); err != nil {
		h.respondError(w, err)
		return
	}
	project, err := h.repo.CreateProject(r.Context(), CreateProjectInput{
		ClientID: req.ClientID,
		Name:     strings.TrimSpace(req.Name),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, project)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrClientNotFound), errors.Is(err, ErrProjectNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("masterdata handler", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
