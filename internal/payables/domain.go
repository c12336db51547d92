package payables

import (
	"time"

	"github.com/meridian-bms/meridian-bms/internal/merge"
)

// PayableStatus enumerates payable statuses.
type PayableStatus string

const (
	StatusPending PayableStatus = "PENDING"
	StatusPaid    PayableStatus = "PAID"
	StatusVoid    PayableStatus = "VOID"
)

// Payable is an obligation owed to a supplier or contractor.
type Payable struct {
	ID        int64
	Concept   string
	Amount    float64
	ClientID  int64
	ProjectID *int64
	DueAt     time.Time
	Status    PayableStatus
	Notes     string
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreatePayableInput carries payable creation fields.
type CreatePayableInput struct {
	Concept   string
	Amount    float64
	ClientID  int64
	ProjectID *int64
	DueAt     time.Time
	Notes     string
	CreatedBy int64
}

// FieldSpecs declares the update rules for patchable payable fields.
// Amount and the client link were the fields historically zeroed out
// by full-object updates; both are guarded here once, for every
// caller.
func FieldSpecs() map[string]merge.FieldSpec {
	return map[string]merge.FieldSpec{
		"concept":   merge.RequiredText(),
		"amount":    merge.Amount(),
		"clientId":  merge.RequiredReference(),
		"projectId": merge.Reference(),
		"dueAt":     merge.FieldSpec{Rule: "datetime=" + time.RFC3339, Required: true},
		"notes":     merge.Text(),
	}
}

// Fields exposes the patchable view of a payable for the merge guard.
func (p Payable) Fields() merge.Record {
	var projectID any
	if p.ProjectID != nil {
		projectID = *p.ProjectID
	}
	return merge.Record{
		"concept":   p.Concept,
		"amount":    p.Amount,
		"clientId":  p.ClientID,
		"projectId": projectID,
		"dueAt":     p.DueAt.Format(time.RFC3339),
		"notes":     p.Notes,
	}
}
