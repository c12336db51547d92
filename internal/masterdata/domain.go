package masterdata

import "time"

// Client is a business counterparty invoices and payables attach to.
type Client struct {
	ID        int64
	Name      string
	TaxID     string
	Email     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Project groups work performed for a client.
type Project struct {
	ID        int64
	ClientID  int64
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateClientInput carries client creation fields.
type CreateClientInput struct {
	Name  string
	TaxID string
	Email string
}

// CreateProjectInput carries project creation fields.
type CreateProjectInput struct {
	ClientID int64
	Name     string
}
