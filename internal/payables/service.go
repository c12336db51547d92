package payables

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/meridian-bms/meridian-bms/internal/merge"
	"github.com/meridian-bms/meridian-bms/internal/shared"
)

// UpdateResult carries the persisted payable alongside per-field
// rejections. Rejections are non-fatal: valid fields are persisted
// even when others were refused.
type UpdateResult struct {
	Payable  Payable
	Rejected map[string]merge.Reason
}

// Service orchestrates payable operations.
type Service struct {
	repo  Repository
	guard *merge.Guard
	audit shared.AuditRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, guard *merge.Guard, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, guard: guard, audit: audit}
}

// Get fetches one payable.
func (s *Service) Get(ctx context.Context, id int64) (Payable, error) {
	return s.repo.GetPayable(ctx, id)
}

// List returns payables, optionally filtered by client.
func (s *Service) List(ctx context.Context, clientID int64) ([]Payable, error) {
	return s.repo.ListPayables(ctx, clientID)
}

// Create inserts a new payable.
func (s *Service) Create(ctx context.Context, input CreatePayableInput) (Payable, error) {
	input.Concept = strings.TrimSpace(input.Concept)
	if input.Concept == "" {
		return Payable{}, errors.New("payables: concept required")
	}
	if input.Amount <= 0 {
		return Payable{}, errors.New("payables: amount must be positive")
	}
	if input.ClientID <= 0 {
		return Payable{}, errors.New("payables: client required")
	}
	return s.repo.CreatePayable(ctx, input)
}

// Update applies a partial patch through the field-merge guard and
// persists only the applied subset. Untouched fields are never
// written; rejected fields keep their stored value and are reported
// back to the caller.
func (s *Service) Update(ctx context.Context, actorID, id int64, patch merge.Patch) (UpdateResult, error) {
	existing, err := s.repo.GetPayable(ctx, id)
	if err != nil {
		return UpdateResult{}, err
	}

	result := s.guard.Merge(existing.Fields(), patch, FieldSpecs())

	updated := existing
	if len(result.Applied) > 0 {
		updated, err = s.repo.UpdatePayableFields(ctx, id, result.Applied)
		if err != nil {
			return UpdateResult{}, err
		}
	}

	if s.audit != nil && len(result.Applied) > 0 {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "payable.update",
			Entity:   "payable",
			EntityID: strconv.FormatInt(id, 10),
			Meta: map[string]any{
				"applied":  fieldNames(result.Applied),
				"rejected": result.Rejected,
			},
		})
	}

	return UpdateResult{Payable: updated, Rejected: result.Rejected}, nil
}

// MarkPaid transitions a payable to PAID.
func (s *Service) MarkPaid(ctx context.Context, actorID, id int64) error {
	if err := s.repo.SetStatus(ctx, id, StatusPaid); err != nil {
		return err
	}
	return s.recordStatus(ctx, actorID, id, StatusPaid)
}

// Void transitions a payable to VOID. This is the only path that
// retires an amount; patches rejecting zero amounts point callers
// here.
func (s *Service) Void(ctx context.Context, actorID, id int64) error {
	if err := s.repo.SetStatus(ctx, id, StatusVoid); err != nil {
		return err
	}
	return s.recordStatus(ctx, actorID, id, StatusVoid)
}

// Delete removes a payable.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeletePayable(ctx, id)
}

func (s *Service) recordStatus(ctx context.Context, actorID, id int64, status PayableStatus) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "payable.status",
		Entity:   "payable",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"status": string(status)},
	})
}

func fieldNames(record merge.Record) []string {
	names := make([]string, 0, len(record))
	for name := range record {
		names = append(names, name)
	}
	return names
}
