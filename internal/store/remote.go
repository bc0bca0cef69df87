package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zombor/receipt-pipeline/internal/receipt"
)

// PgxPool is the subset of pgxpool.Pool the remote store uses; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RemoteStore implements the Backend interface for authenticated sessions
// using Postgres. One row per receipt, items as a jsonb column, image
// references as an ordered text array. Per-owner visibility is enforced in
// every query.
type RemoteStore struct {
	db PgxPool
}

// NewRemoteStore creates a new RemoteStore instance
func NewRemoteStore(db PgxPool) *RemoteStore {
	return &RemoteStore{db: db}
}

// Schema creates the receipts table when it does not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS receipts (
	id                 text PRIMARY KEY,
	owner_id           text NOT NULL,
	images             text[] NOT NULL DEFAULT '{}',
	total_amount_cents bigint NOT NULL,
	items              jsonb NOT NULL DEFAULT '[]',
	store_name         text NOT NULL,
	store_address      text NOT NULL DEFAULT '',
	title              text NOT NULL,
	purchase_date      timestamptz NOT NULL,
	currency           text NOT NULL,
	payment_method     text NOT NULL,
	total_tax_cents    bigint NOT NULL,
	logo_search_term   text NOT NULL DEFAULT '',
	created_at         timestamptz NOT NULL,
	updated_at         timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS receipts_owner_idx ON receipts (owner_id);
`

// EnsureSchema applies the schema.
func (r *RemoteStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensuring receipts schema: %w", err)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const receiptColumns = `
	id, owner_id, images, total_amount_cents, items, store_name,
	store_address, title, purchase_date, currency, payment_method,
	total_tax_cents, logo_search_term, created_at, updated_at
`

// scanReceipt reads one receipt row. Expected column order matches
// receiptColumns.
func scanReceipt(s scanner) (*receipt.Receipt, error) {
	var rec receipt.Receipt
	var items []byte

	if err := s.Scan(
		&rec.ID, &rec.OwnerID, &rec.Images, &rec.TotalAmountCents, &items,
		&rec.StoreName, &rec.StoreAddress, &rec.Title, &rec.Date,
		&rec.Currency, &rec.PaymentMethod, &rec.TotalTaxCents,
		&rec.LogoSearchTerm, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &rec.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling items: %w", err)
	}
	return &rec, nil
}

// SaveReceipt inserts one row and returns the server-confirmed copy.
func (r *RemoteStore) SaveReceipt(ctx context.Context, rec *receipt.Receipt) (*receipt.Receipt, error) {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return nil, fmt.Errorf("marshaling items: %w", err)
	}

	query := `
		INSERT INTO receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + receiptColumns

	saved, err := scanReceipt(r.db.QueryRow(ctx, query,
		rec.ID, rec.OwnerID, rec.Images, rec.TotalAmountCents, items,
		rec.StoreName, rec.StoreAddress, rec.Title, rec.Date,
		rec.Currency, rec.PaymentMethod, rec.TotalTaxCents,
		rec.LogoSearchTerm, rec.CreatedAt, rec.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("inserting receipt: %w", err)
	}
	return saved, nil
}

// GetReceipt retrieves a receipt by ID, scoped to its owner
func (r *RemoteStore) GetReceipt(ctx context.Context, ownerID, id string) (*receipt.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1 AND owner_id = $2`

	rec, err := scanReceipt(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", receipt.ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return rec, nil
}

// ListReceipts returns all receipts for an owner, newest first.
func (r *RemoteStore) ListReceipts(ctx context.Context, ownerID string) ([]*receipt.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	defer rows.Close()

	recs := make([]*receipt.Receipt, 0)
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating receipt rows: %w", err)
	}
	return recs, nil
}

// DeleteReceipt removes a receipt row.
func (r *RemoteStore) DeleteReceipt(ctx context.Context, ownerID, id string) error {
	query := `DELETE FROM receipts WHERE id = $1 AND owner_id = $2`

	if _, err := r.db.Exec(ctx, query, id, ownerID); err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}
	return nil
}
