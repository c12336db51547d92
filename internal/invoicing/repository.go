package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-bms/meridian-bms/internal/merge"
)

// ErrInvoiceNotFound indicates the requested invoice does not exist.
var ErrInvoiceNotFound = errors.New("invoicing: not found")

// ErrDuplicateNumber indicates the invoice number is already taken.
var ErrDuplicateNumber = errors.New("invoicing: duplicate invoice number")

// Repository defines invoice data access with field-level updates.
type Repository interface {
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, clientID int64) ([]Invoice, error)
	CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error)
	UpdateInvoiceFields(ctx context.Context, id int64, fields merge.Record) (Invoice, error)
	SetStatus(ctx context.Context, id int64, status InvoiceStatus) error
}

var patchColumns = map[string]string{
	"number":    "number",
	"concept":   "concept",
	"amount":    "amount",
	"taxAmount": "tax_amount",
	"clientId":  "client_id",
	"projectId": "project_id",
	"issuedAt":  "issued_at",
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

var _ Repository = (*pgRepository)(nil)

const invoiceColumns = `id, number, concept, amount, tax_amount, client_id, project_id, issued_at, status, created_by, created_at, updated_at`

func (r *pgRepository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

func (r *pgRepository) ListInvoices(ctx context.Context, clientID int64) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices ORDER BY issued_at DESC, id`
	args := []any{}
	if clientID > 0 {
		query = `SELECT ` + invoiceColumns + ` FROM invoices WHERE client_id = $1 ORDER BY issued_at DESC, id`
		args = append(args, clientID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func (r *pgRepository) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (number, concept, amount, tax_amount, client_id, project_id, issued_at, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+invoiceColumns,
		input.Number, input.Concept, input.Amount, input.TaxAmount, input.ClientID, input.ProjectID, input.IssuedAt, StatusDraft, input.CreatedBy)
	invoice, err := scanInvoice(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Invoice{}, ErrDuplicateNumber
		}
		return Invoice{}, err
	}
	return invoice, nil
}

func (r *pgRepository) UpdateInvoiceFields(ctx context.Context, id int64, fields merge.Record) (Invoice, error) {
	if len(fields) == 0 {
		return r.GetInvoice(ctx, id)
	}

	set := make([]string, 0, len(fields)+1)
	args := []any{id}
	for field, value := range fields {
		column, ok := patchColumns[field]
		if !ok {
			return Invoice{}, fmt.Errorf("invoicing: field %q is not patchable", field)
		}
		args = append(args, normalizeValue(field, value))
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	set = append(set, "updated_at = NOW()")

	row := r.pool.QueryRow(ctx,
		`UPDATE invoices SET `+strings.Join(set, ", ")+` WHERE id = $1 RETURNING `+invoiceColumns,
		args...)
	return scanInvoice(row)
}

func (r *pgRepository) SetStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func normalizeValue(field string, value any) any {
	switch field {
	case "clientId", "projectId":
		if f, ok := value.(float64); ok {
			return int64(f)
		}
	case "issuedAt":
		if s, ok := value.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
		}
	}
	return value
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.Concept, &inv.Amount, &inv.TaxAmount, &inv.ClientID, &inv.ProjectID, &inv.IssuedAt, &inv.Status, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}
