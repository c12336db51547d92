package invoicing

import (
	"context"
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

// Handler exposes invoice JSON endpoints.
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

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleInvoices, authz.ActionRead))
		r.Get("/", h.list)
		r.Get("/{invoiceID}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleInvoices, authz.ActionExport))
		r.Get("/export", h.export)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleInvoices, authz.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleInvoices, authz.ActionUpdate))
		r.Patch("/{invoiceID}", h.update)
		r.Post("/{invoiceID}/issue", h.issue)
		r.Post("/{invoiceID}/paid", h.markPaid)
		r.Post("/{invoiceID}/void", h.void)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.ModuleInvoices, authz.ActionApprove))
		r.Post("/{invoiceID}/approve", h.approve)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var clientID int64
	if raw := r.URL.Query().Get("client"); raw != "" {
		clientID, _ = strconv.ParseInt(raw, 10, 64)
	}
	invoices, err := h.service.List(r.Context(), clientID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.List(r.Context(), 0)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.json"`)
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

type createInvoiceRequest struct {
	Number    string  `json:"number" validate:"required"`
	Concept   string  `json:"concept" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	TaxAmount float64 `json:"taxAmount" validate:"gte=0"`
	ClientID  int64   `json:"clientId" validate:"min=1"`
	ProjectID *int64  `json:"projectId"`
	IssuedAt  string  `json:"issuedAt" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issuedAt, err := time.Parse(time.RFC3339, req.IssuedAt)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "issuedAt must be RFC3339")
		return
	}
	invoice, err := h.service.Create(r.Context(), CreateInvoiceInput{
		Number:    req.Number,
		Concept:   req.Concept,
		Amount:    req.Amount,
		TaxAmount: req.TaxAmount,
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		IssuedAt:  issuedAt,
		CreatedBy: h.actorID(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

type updateInvoiceResponse struct {
	Invoice  Invoice                 `json:"invoice"`
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
	httpx.JSON(w, http.StatusOK, updateInvoiceResponse{
		Invoice:  result.Invoice,
		Rejected: result.Rejected,
	})
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Issue)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Approve)
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.MarkPaid)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Void)
}

func (h *Handler) statusChange(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actorID, id int64) error) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), h.actorID(r), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "invalid invoice id")
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
	switch {
	case errors.Is(err, ErrInvoiceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("invoicing handler", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
