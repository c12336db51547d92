package payables

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-bms/meridian-bms/internal/merge"
)

// ErrPayableNotFound indicates the requested payable does not exist.
var ErrPayableNotFound = errors.New("payables: not found")

// Repository defines payable data access. Updates are field-level: the
// store applies exactly the given subset, never a full-record write,
// so concurrent patches to disjoint fields cannot clobber each other.
type Repository interface {
	GetPayable(ctx context.Context, id int64) (Payable, error)
	ListPayables(ctx context.Context, clientID int64) ([]Payable, error)
	CreatePayable(ctx context.Context, input CreatePayableInput) (Payable, error)
	UpdatePayableFields(ctx context.Context, id int64, fields merge.Record) (Payable, error)
	SetStatus(ctx context.Context, id int64, status PayableStatus) error
	DeletePayable(ctx context.Context, id int64) error
}

// patchColumns whitelists patchable fields and their columns.
var patchColumns = map[string]string{
	"concept":   "concept",
	"amount":    "amount",
	"clientId":  "client_id",
	"projectId": "project_id",
	"dueAt":     "due_at",
	"notes":     "notes",
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

var _ Repository = (*pgRepository)(nil)

const payableColumns = `id, concept, amount, client_id, project_id, due_at, status, notes, created_by, created_at, updated_at`

func (r *pgRepository) GetPayable(ctx context.Context, id int64) (Payable, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+payableColumns+` FROM payables WHERE id = $1`, id)
	return scanPayable(row)
}

func (r *pgRepository) ListPayables(ctx context.Context, clientID int64) ([]Payable, error) {
	query := `SELECT ` + payableColumns + ` FROM payables ORDER BY due_at, id`
	args := []any{}
	if clientID > 0 {
		query = `SELECT ` + payableColumns + ` FROM payables WHERE client_id = $1 ORDER BY due_at, id`
		args = append(args, clientID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payables []Payable
	for rows.Next() {
		payable, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		payables = append(payables, payable)
	}
	return payables, rows.Err()
}

func (r *pgRepository) CreatePayable(ctx context.Context, input CreatePayableInput) (Payable, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO payables (concept, amount, client_id, project_id, due_at, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+payableColumns,
		input.Concept, input.Amount, input.ClientID, input.ProjectID, input.DueAt, StatusPending, input.Notes, input.CreatedBy)
	return scanPayable(row)
}

// UpdatePayableFields persists exactly the given field subset as an
// incremental UPDATE over whitelisted columns.
func (r *pgRepository) UpdatePayableFields(ctx context.Context, id int64, fields merge.Record) (Payable, error) {
	if len(fields) == 0 {
		return r.GetPayable(ctx, id)
	}

	set := make([]string, 0, len(fields)+1)
	args := []any{id}
	for field, value := range fields {
		column, ok := patchColumns[field]
		if !ok {
			return Payable{}, fmt.Errorf("payables: field %q is not patchable", field)
		}
		args = append(args, normalizeValue(field, value))
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	set = append(set, "updated_at = NOW()")

	row := r.pool.QueryRow(ctx,
		`UPDATE payables SET `+strings.Join(set, ", ")+` WHERE id = $1 RETURNING `+payableColumns,
		args...)
	payable, err := scanPayable(row)
	if err != nil {
		return Payable{}, err
	}
	return payable, nil
}

func (r *pgRepository) SetStatus(ctx context.Context, id int64, status PayableStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payables SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPayableNotFound
	}
	return nil
}

func (r *pgRepository) DeletePayable(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payables WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPayableNotFound
	}
	return nil
}

// normalizeValue converts JSON-decoded patch values to column types.
func normalizeValue(field string, value any) any {
	switch field {
	case "clientId", "projectId":
		if f, ok := value.(float64); ok {
			return int64(f)
		}
	case "dueAt":
		if s, ok := value.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
		}
	}
	return value
}

func scanPayable(row pgx.Row) (Payable, error) {
	var p Payable
	err := row.Scan(&p.ID, &p.Concept, &p.Amount, &p.ClientID, &p.ProjectID, &p.DueAt, &p.Status, &p.Notes, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payable{}, ErrPayableNotFound
		}
		return Payable{}, err
	}
	return p, nil
}
