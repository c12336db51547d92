package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors for master data lookups.
var (
	ErrClientNotFound  = errors.New("masterdata: client not found")
	ErrProjectNotFound = errors.New("masterdata: project not found")
)

// Repository defines client/project data access.
type Repository interface {
	GetClient(ctx context.Context, id int64) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	CreateClient(ctx context.Context, input CreateClientInput) (Client, error)

	GetProject(ctx context.Context, id int64) (Project, error)
	ListProjects(ctx context.Context, clientID int64) ([]Project, error)
	CreateProject(ctx context.Context, input CreateProjectInput) (Project, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

var _ Repository = (*pgRepository)(nil)

func (r *pgRepository) GetClient(ctx context.Context, id int64) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `SELECT id, name, tax_id, email, active, created_at, updated_at FROM clients WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.TaxID, &c.Email, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrClientNotFound
		}
		return Client{}, err
	}
	return c, nil
}

func (r *pgRepository) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, tax_id, email, active, created_at, updated_at FROM clients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxID, &c.Email, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *pgRepository) CreateClient(ctx context.Context, input CreateClientInput) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clients (name, tax_id, email, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, name, tax_id, email, active, created_at, updated_at`,
		input.Name, input.TaxID, input.Email).
		Scan(&c.ID, &c.Name, &c.TaxID, &c.Email, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

func (r *pgRepository) GetProject(ctx context.Context, id int64) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `SELECT id, client_id, name, active, created_at, updated_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.ClientID, &p.Name, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		return Project{}, err
	}
	return p, nil
}

func (r *pgRepository) ListProjects(ctx context.Context, clientID int64) ([]Project, error) {
	query := `SELECT id, client_id, name, active, created_at, updated_at FROM projects ORDER BY name`
	args := []any{}
	if clientID > 0 {
		query = `SELECT id, client_id, name, active, created_at, updated_at FROM projects WHERE client_id = $1 ORDER BY name`
		args = append(args, clientID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Name, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *pgRepository) CreateProject(ctx context.Context, input CreateProjectInput) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `
		INSERT INTO projects (client_id, name, active)
		VALUES ($1, $2, TRUE)
		RETURNING id, client_id, name, active, created_at, updated_at`,
		input.ClientID, input.Name).
		Scan(&p.ID, &p.ClientID, &p.Name, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}
