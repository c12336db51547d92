package invoicing

import (
	"time"

	"github.com/meridian-bms/meridian-bms/internal/merge"
)

// InvoiceStatus enumerates invoice statuses.
type InvoiceStatus string

const (
	StatusDraft    InvoiceStatus = "DRAFT"
	StatusIssued   InvoiceStatus = "ISSUED"
	StatusApproved InvoiceStatus = "APPROVED"
	StatusPaid     InvoiceStatus = "PAID"
	StatusVoid     InvoiceStatus = "VOID"
)

// Invoice is a receivable issued to a client.
type Invoice struct {
	ID        int64
	Number    string
	Concept   string
	Amount    float64
	TaxAmount float64
	ClientID  int64
	ProjectID *int64
	IssuedAt  time.Time
	Status    InvoiceStatus
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInvoiceInput carries invoice creation fields.
type CreateInvoiceInput struct {
	Number    string
	Concept   string
	Amount    float64
	TaxAmount float64
	ClientID  int64
	ProjectID *int64
	IssuedAt  time.Time
	CreatedBy int64
}

// FieldSpecs declares the update rules for patchable invoice fields.
// Tax may legitimately be zero; the net amount may not.
func FieldSpecs() map[string]merge.FieldSpec {
	return map[string]merge.FieldSpec{
		"number":    merge.RequiredText(),
		"concept":   merge.RequiredText(),
		"amount":    merge.Amount(),
		"taxAmount": merge.FieldSpec{Rule: "gte=0", Required: true},
		"clientId":  merge.RequiredReference(),
		"projectId": merge.Reference(),
		"issuedAt":  merge.FieldSpec{Rule: "datetime=" + time.RFC3339, Required: true},
	}
}

// Fields exposes the patchable view of an invoice for the merge guard.
func (inv Invoice) Fields() merge.Record {
	var projectID any
	if inv.ProjectID != nil {
		projectID = *inv.ProjectID
	}
	return merge.Record{
		"number":    inv.Number,
		"concept":   inv.Concept,
		"amount":    inv.Amount,
		"taxAmount": inv.TaxAmount,
		"clientId":  inv.ClientID,
		"projectId": projectID,
		"issuedAt":  inv.IssuedAt.Format(time.RFC3339),
	}
}
