package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/receipt-pipeline/internal/extraction"
)

// Designed pipeline outcomes, distinct from transport errors.
var (
	// ErrInvalidReceipt signals the AI declared the image not to be a
	// readable receipt. No receipt is produced.
	ErrInvalidReceipt = errors.New("invalid receipt")
	// ErrUnreadableResponse signals the AI response held no decodable JSON.
	ErrUnreadableResponse = errors.New("unreadable extraction response")
	// ErrNoImages signals a pipeline run without any captured image.
	ErrNoImages = errors.New("at least one image is required")
	// ErrNotFound is returned by stores when a receipt does not exist.
	ErrNotFound = errors.New("receipt not found")
)

// Persister routes reads and writes to the storage backend selected by
// session mode.
type Persister interface {
	// Persist writes a finished receipt; on the authenticated path it
	// returns the server-confirmed copy
	Persist(ctx context.Context, mode Mode, rec *Receipt) (*Receipt, error)

	// Get retrieves one receipt scoped to its owner
	Get(ctx context.Context, mode Mode, ownerID, id string) (*Receipt, error)

	// List returns all receipts for an owner
	List(ctx context.Context, mode Mode, ownerID string) ([]*Receipt, error)

	// Delete removes a receipt
	Delete(ctx context.Context, mode Mode, ownerID, id string) error
}

// ImagePipeline resizes and uploads captured images, falling back to local
// files when the remote host is unavailable. Upload never fails; failure is
// absorbed into the fallback reference.
type ImagePipeline interface {
	// Prepare converts and resizes one image to an upload-ready JPEG
	Prepare(data []byte, contentType string) ([]byte, error)

	// UploadAll resolves a location reference per image, preserving order
	UploadAll(ctx context.Context, images []Image) []string

	// Discard removes local fallback files; remote references are ignored
	Discard(refs []string)

	// LocalFile reads a local fallback image by filename
	LocalFile(filename string) ([]byte, error)
}

// Service runs the ingestion pipeline: extract, normalize, finalize, upload,
// persist.
type Service struct {
	gateway   extraction.Gateway
	images    ImagePipeline
	store     Persister
	finalizer *Finalizer
}

// NewService creates a new Service with default finalization dependencies.
func NewService(gateway extraction.Gateway, images ImagePipeline, store Persister) *Service {
	return NewServiceWithDeps(gateway, images, store, NewFinalizer())
}

// NewServiceWithDeps creates a new Service with a custom finalizer for testing.
func NewServiceWithDeps(gateway extraction.Gateway, images ImagePipeline, store Persister, finalizer *Finalizer) *Service {
	return &Service{
		gateway:   gateway,
		images:    images,
		store:     store,
		finalizer: finalizer,
	}
}

// Process ingests one receipt: the first image is sent for AI extraction,
// the response is normalized and reconciled, all images are uploaded, and
// the finished record is persisted to the backend selected by the session.
// Stages run in strict sequence; only the per-image uploads overlap.
func (s *Service) Process(ctx context.Context, sess Session, images []Image) (*Receipt, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if sess.OwnerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	prepared, err := s.images.Prepare(images[0].Data, images[0].ContentType)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}

	rawText, err := s.gateway.Extract(ctx, extraction.Request{
		Image:             prepared,
		MIMEType:          "image/jpeg",
		Prompt:            extraction.ReceiptPrompt,
		SystemInstruction: extraction.ReceiptSystemInstruction,
		Config:            extraction.DefaultConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("extracting receipt: %w", err)
	}

	ext := extraction.Normalize(rawText)
	if ext == nil {
		slog.Error("Extraction response held no decodable JSON",
			"response_length", len(rawText),
		)
		return nil, ErrUnreadableResponse
	}

	rec := s.finalizer.Finalize(ext, sess.OwnerID)
	if rec == nil {
		msg := strings.TrimSpace(ext.Message)
		if msg == "" {
			msg = "the image could not be read as a receipt"
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidReceipt, msg)
	}

	// Image references are fixed at persist time, so all uploads must
	// resolve (remotely or via fallback) before the store is invoked.
	rec.Images = s.images.UploadAll(ctx, images)

	saved, err := s.store.Persist(ctx, sess.Mode, rec)
	if err != nil {
		return nil, fmt.Errorf("persisting receipt: %w", err)
	}

	slog.Info("Receipt ingested",
		"id", saved.ID,
		"mode", sess.Mode,
		"items", len(saved.Items),
		"total_cents", saved.TotalAmountCents,
	)
	return saved, nil
}

// Get retrieves a receipt by ID
func (s *Service) Get(ctx context.Context, sess Session, id string) (*Receipt, error) {
	rec, err := s.store.Get(ctx, sess.Mode, sess.OwnerID, id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return rec, nil
}

// List returns all receipts for the session's owner
func (s *Service) List(ctx context.Context, sess Session) ([]*Receipt, error) {
	recs, err := s.store.List(ctx, sess.Mode, sess.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return recs, nil
}

// Delete removes a receipt and any local fallback image files it references.
func (s *Service) Delete(ctx context.Context, sess Session, id string) error {
	rec, err := s.store.Get(ctx, sess.Mode, sess.OwnerID, id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if err := s.store.Delete(ctx, sess.Mode, sess.OwnerID, id); err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}

	// Remote-hosted images are left to the host; only fallback files are
	// cleaned up.
	s.images.Discard(rec.Images)
	return nil
}

// LocalImage reads a local fallback image file for serving.
func (s *Service) LocalImage(filename string) ([]byte, error) {
	return s.images.LocalFile(filename)
}
