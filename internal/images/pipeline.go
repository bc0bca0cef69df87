package images

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zombor/receipt-pipeline/internal/receipt"
)

// LocalPrefix marks a location reference resolved through the on-device
// fallback rather than the remote host.
const LocalPrefix = "local://"

// RemoteHost uploads one JPEG to the remote image host and returns its URL.
type RemoteHost interface {
	Upload(ctx context.Context, jpegData []byte) (string, error)
}

// FileStore persists local fallback image files.
type FileStore interface {
	// Save saves a file and returns the filename
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by filename
	Get(filename string) ([]byte, error)

	// Delete removes a file
	Delete(filename string) error
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// RandSource provides random filename suffixes
type RandSource interface {
	Suffix() string
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

type defaultRandSource struct{}

func (r *defaultRandSource) Suffix() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Pipeline resizes and uploads captured images. Remote upload failures are
// absorbed by falling back to on-device files, so every image always
// resolves to a location reference.
type Pipeline struct {
	host       RemoteHost
	files      FileStore
	timeSource TimeSource
	random     RandSource
}

// NewPipeline creates a Pipeline with the real clock and random source.
func NewPipeline(host RemoteHost, files FileStore) *Pipeline {
	return NewPipelineWithDeps(host, files, &defaultTimeSource{}, &defaultRandSource{})
}

// NewPipelineWithDeps creates a Pipeline with custom dependencies for testing.
func NewPipelineWithDeps(host RemoteHost, files FileStore, timeSrc TimeSource, random RandSource) *Pipeline {
	return &Pipeline{
		host:       host,
		files:      files,
		timeSource: timeSrc,
		random:     random,
	}
}

// Upload resolves one image to a location reference: the remote host URL on
// success, a local:// reference otherwise.
func (p *Pipeline) Upload(ctx context.Context, img receipt.Image) string {
	jpegData, err := p.Prepare(img.Data, img.ContentType)
	if err != nil {
		slog.Warn("Image could not be encoded, storing original bytes locally", "error", err)
		return p.fallback(img.Data)
	}

	url, err := p.host.Upload(ctx, jpegData)
	if err != nil {
		slog.Warn("Remote image upload failed, falling back to local storage", "error", err)
		return p.fallback(jpegData)
	}
	return url
}

// UploadAll resolves a reference for every image. Images are processed
// independently and concurrently; results keep input order and a mix of
// remote and local references within one batch is allowed.
func (p *Pipeline) UploadAll(ctx context.Context, imgs []receipt.Image) []string {
	refs := make([]string, len(imgs))
	var wg sync.WaitGroup
	for i, img := range imgs {
		wg.Add(1)
		go func(i int, img receipt.Image) {
			defer wg.Done()
			refs[i] = p.Upload(ctx, img)
		}(i, img)
	}
	wg.Wait()
	return refs
}

// Discard removes local fallback files for the given references. Remote
// references are left to the host.
func (p *Pipeline) Discard(refs []string) {
	for _, ref := range refs {
		filename, ok := strings.CutPrefix(ref, LocalPrefix)
		if !ok {
			continue
		}
		if err := p.files.Delete(filename); err != nil {
			slog.Warn("Failed to delete local image", "filename", filename, "error", err)
		}
	}
}

// LocalFile reads a local fallback image by filename.
func (p *Pipeline) LocalFile(filename string) ([]byte, error) {
	data, err := p.files.Get(filename)
	if err != nil {
		return nil, fmt.Errorf("getting local image: %w", err)
	}
	return data, nil
}

func (p *Pipeline) fallback(data []byte) string {
	filename := fmt.Sprintf("receipt_%d_%s.jpg", p.timeSource.Now().UnixNano(), p.random.Suffix())
	if _, err := p.files.Save(filename, data); err != nil {
		slog.Error("Failed to write local image fallback", "filename", filename, "error", err)
	}
	return LocalPrefix + filename
}
