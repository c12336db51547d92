package payables

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-bms/meridian-bms/internal/authz"
	"github.com/meridian-bms/meridian-bms/internal/merge"
	"github.com/meridian-bms/meridian-bms/internal/platform/httpx"
	"github.com/meridian-bms/meridian-bms/internal/shared"
)

// Handler exposes payable JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	mw       authz.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validate: validator.New()}
}

// MountRoutes registers payable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModulePayables, authz.ActionRead))
		r.Get("/", h.list)
		r.Get("/{payableID}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModulePayables, authz.ActionExport))
		r.Get("/export", h.export)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModulePayables, authz.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModulePayables, authz.ActionUpdate))
		r.Patch("/{payableID}", h.update)
		r.Post("/{payableID}/paid", h.markPaid)
		r.Post("/{payableID}/void", h.void)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModulePayables, authz.ActionDelete))
		r.Delete("/{payableID}", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var clientID int64
	if raw := r.URL.Query().Get("client"); raw != "" {
		clientID, _ = strconv.ParseInt(raw, 10, 64)
	}
	payables, err := h.service.List(r.Context(), clientID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payables)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	payables, err := h.service.List(r.Context(), 0)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="payables.json"`)
	httpx.JSON(w, http.StatusOK, payables)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	payable, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payable)
}

type createPayableRequest struct {
	Concept   string  `json:"concept" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	ClientID  int64   `json:"clientId" validate:"min=1"`
	ProjectID *int64  `json:"projectId"`
	DueAt     string  `json:"dueAt" validate:"required"`
	Notes     string  `json:"notes"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPayableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dueAt, err := time.Parse(time.RFC3339, req.DueAt)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dueAt must be RFC3339")
		return
	}
	payable, err := h.service.Create(r.Context(), CreatePayableInput{
		Concept:   req.Concept,
		Amount:    req.Amount,
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		DueAt:     dueAt,
		Notes:     req.Notes,
		CreatedBy: h.actorID(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payable)
}

type updatePayableResponse struct {
	Payable  Payable                 `json:"payable"`
	Rejected map[string]merge.Reason `json:"rejected,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var patch merge.Patch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	result, err := h.service.Update(r.Context(), h.actorID(r), id, patch)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updatePayableResponse{
		Payable:  result.Payable,
		Rejected: result.Rejected,
	})
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkPaid(r.Context(), h.actorID(r), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Void(r.Context(), h.actorID(r), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "payableID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "invalid payable id")
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

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrPayableNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	if h.logger != nil {
		h.logger.Error("payables handler", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
