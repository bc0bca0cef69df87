package store

import (
	"context"
	"fmt"

	"github.com/zombor/receipt-pipeline/internal/receipt"
)

// Backend is the uniform read/write contract both storage targets expose.
type Backend interface {
	// SaveReceipt persists one receipt and returns the stored copy
	SaveReceipt(ctx context.Context, rec *receipt.Receipt) (*receipt.Receipt, error)

	// GetReceipt retrieves a receipt by ID, scoped to its owner
	GetReceipt(ctx context.Context, ownerID, id string) (*receipt.Receipt, error)

	// ListReceipts returns all receipts for an owner
	ListReceipts(ctx context.Context, ownerID string) ([]*receipt.Receipt, error)

	// DeleteReceipt removes a receipt
	DeleteReceipt(ctx context.Context, ownerID, id string) error
}

// Router dispatches persistence calls to the backend selected by session
// mode: guest runs against the local store, authenticated against the remote
// store. There is no automatic migration or fallback between the two; a
// remote failure is a hard error.
type Router struct {
	local  Backend
	remote Backend
}

// NewRouter creates a Router. The remote backend may be nil when the service
// runs in guest-only configuration.
func NewRouter(local, remote Backend) *Router {
	return &Router{local: local, remote: remote}
}

func (r *Router) backend(mode receipt.Mode) (Backend, error) {
	switch mode {
	case receipt.ModeGuest:
		return r.local, nil
	case receipt.ModeAuthenticated:
		if r.remote == nil {
			return nil, fmt.Errorf("remote store is not configured")
		}
		return r.remote, nil
	default:
		return nil, fmt.Errorf("unknown session mode: %q", mode)
	}
}

// Persist writes a finished receipt to the backend for the given mode.
func (r *Router) Persist(ctx context.Context, mode receipt.Mode, rec *receipt.Receipt) (*receipt.Receipt, error) {
	b, err := r.backend(mode)
	if err != nil {
		return nil, err
	}
	return b.SaveReceipt(ctx, rec)
}

// Get retrieves one receipt scoped to its owner.
func (r *Router) Get(ctx context.Context, mode receipt.Mode, ownerID, id string) (*receipt.Receipt, error) {
	b, err := r.backend(mode)
	if err != nil {
		return nil, err
	}
	return b.GetReceipt(ctx, ownerID, id)
}

// List returns all receipts for an owner.
func (r *Router) List(ctx context.Context, mode receipt.Mode, ownerID string) ([]*receipt.Receipt, error) {
	b, err := r.backend(mode)
	if err != nil {
		return nil, err
	}
	return b.ListReceipts(ctx, ownerID)
}

// Delete removes a receipt.
func (r *Router) Delete(ctx context.Context, mode receipt.Mode, ownerID, id string) error {
	b, err := r.backend(mode)
	if err != nil {
		return err
	}
	return b.DeleteReceipt(ctx, ownerID, id)
}
