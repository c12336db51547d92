package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/meridian-bms/meridian-bms/internal/merge"
	"github.com/meridian-bms/meridian-bms/internal/shared"
)

// ErrInvalidTransition rejects a status change the invoice lifecycle
// does not permit.
var ErrInvalidTransition = errors.New("invoicing: invalid status transition")

// UpdateResult carries the persisted invoice alongside per-field
// rejections.
type UpdateResult struct {
	Invoice  Invoice
	Rejected map[string]merge.Reason
}

// Service orchestrates invoice operations.
type Service struct {
	repo  Repository
	guard *merge.Guard
	audit shared.AuditRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, guard *merge.Guard, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, guard: guard, audit: audit}
}

// Get fetches one invoice.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// List returns invoices, optionally filtered by client.
func (s *Service) List(ctx context.Context, clientID int64) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, clientID)
}

// Create inserts a new draft invoice.
func (s *Service) Create(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	input.Number = strings.TrimSpace(input.Number)
	input.Concept = strings.TrimSpace(input.Concept)
	if input.Number == "" {
		return Invoice{}, errors.New("invoicing: number required")
	}
	if input.Concept == "" {
		return Invoice{}, errors.New("invoicing: concept required")
	}
	if input.Amount <= 0 {
		return Invoice{}, errors.New("invoicing: amount must be positive")
	}
	if input.TaxAmount < 0 {
		return Invoice{}, errors.New("invoicing: tax amount must not be negative")
	}
	if input.ClientID <= 0 {
		return Invoice{}, errors.New("invoicing: client required")
	}
	return s.repo.CreateInvoice(ctx, input)
}

// Update applies a partial patch through the field-merge guard. Only
// draft and issued invoices accept patches; approved and paid ones are
// frozen.
func (s *Service) Update(ctx context.Context, actorID, id int64, patch merge.Patch) (UpdateResult, error) {
	existing, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return UpdateResult{}, err
	}
	if existing.Status != StatusDraft && existing.Status != StatusIssued {
		return UpdateResult{}, fmt.Errorf("%w: cannot patch %s invoice", ErrInvalidTransition, existing.Status)
	}

	result := s.guard.Merge(existing.Fields(), patch, FieldSpecs())

	updated := existing
	if len(result.Applied) > 0 {
		updated, err = s.repo.UpdateInvoiceFields(ctx, id, result.Applied)
		if err != nil {
			return UpdateResult{}, err
		}
		if s.audit != nil {
			_ = s.audit.Record(ctx, shared.AuditLog{
				ActorID:  actorID,
				Action:   "invoice.update",
				Entity:   "invoice",
				EntityID: strconv.FormatInt(id, 10),
				Meta: map[string]any{
					"applied":  appliedNames(result.Applied),
					"rejected": result.Rejected,
				},
			})
		}
	}

	return UpdateResult{Invoice: updated, Rejected: result.Rejected}, nil
}

// Issue transitions DRAFT -> ISSUED.
func (s *Service) Issue(ctx context.Context, actorID, id int64) error {
	return s.transition(ctx, actorID, id, StatusIssued, StatusDraft)
}

// Approve transitions ISSUED -> APPROVED.
func (s *Service) Approve(ctx context.Context, actorID, id int64) error {
	return s.transition(ctx, actorID, id, StatusApproved, StatusIssued)
}

// MarkPaid transitions APPROVED -> PAID.
func (s *Service) MarkPaid(ctx context.Context, actorID, id int64) error {
	return s.transition(ctx, actorID, id, StatusPaid, StatusApproved)
}

// Void cancels an invoice from any non-paid status.
func (s *Service) Void(ctx context.Context, actorID, id int64) error {
	return s.transition(ctx, actorID, id, StatusVoid, StatusDraft, StatusIssued, StatusApproved)
}

func (s *Service) transition(ctx context.Context, actorID, id int64, to InvoiceStatus, from ...InvoiceStatus) error {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	allowed := false
	for _, status := range from {
		if invoice.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, invoice.Status, to)
	}
	if err := s.repo.SetStatus(ctx, id, to); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "invoice.status",
			Entity:   "invoice",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"from": string(invoice.Status), "to": string(to)},
		})
	}
	return nil
}

func appliedNames(record merge.Record) []string {
	names := make([]string, 0, len(record))
	for name := range record {
		names = append(names, name)
	}
	return names
}
