package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/receipt-pipeline/internal/extraction"
)

// maxFormSize bounds multipart uploads (high-resolution phone photos).
const maxFormSize = int64(50 << 20) // 50MB

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sessionFromRequest reads the externally resolved session mode and owner.
// Guest owners are stable per-install identifiers generated on the client;
// the server treats them as opaque.
func sessionFromRequest(r *http.Request) (Session, bool) {
	mode := Mode(strings.ToLower(strings.TrimSpace(r.Header.Get("X-Session-Mode"))))
	if mode == "" {
		mode = ModeGuest
	}
	if mode != ModeGuest && mode != ModeAuthenticated {
		return Session{}, false
	}
	owner := strings.TrimSpace(r.Header.Get("X-Owner-ID"))
	if owner == "" {
		return Session{}, false
	}
	return Session{Mode: mode, OwnerID: owner}, true
}

// handleIngestReceipt runs the full pipeline for one or more uploaded images
func (s *Server) handleIngestReceipt(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(r)
	if !ok {
		jsonError(w, "X-Owner-ID header is required and X-Session-Mode must be 'guest' or 'authenticated'", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			msg = "Upload is too large. Maximum size is 50MB."
		}
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		jsonError(w, "No images were provided. Attach at least one image under the 'images' field.", http.StatusBadRequest)
		return
	}

	images := make([]Image, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			slog.Error("Error opening uploaded file", "filename", header.Filename, "error", err)
			jsonError(w, "Error reading upload. Please try again.", http.StatusInternalServerError)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			slog.Error("Error reading uploaded file", "filename", header.Filename, "error", err)
			jsonError(w, "Error reading upload. Please try again.", http.StatusInternalServerError)
			return
		}
		images = append(images, Image{
			Data:        data,
			ContentType: contentTypeFor(header.Header.Get("Content-Type"), header.Filename),
		})
	}

	rec, err := s.service.Process(r.Context(), sess, images)
	if err != nil {
		s.writeProcessError(w, err)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeProcessError maps pipeline outcomes to HTTP responses. A declared
// invalid receipt is a designed outcome, distinct from transport errors.
func (s *Server) writeProcessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidReceipt):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrNoImages):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnreadableResponse),
		errors.Is(err, extraction.ErrNoContent),
		errors.Is(err, extraction.ErrServer),
		errors.Is(err, extraction.ErrUnauthorized),
		errors.Is(err, extraction.ErrBadRequest):
		slog.Error("Extraction failed", "error", err)
		jsonError(w, "The receipt could not be analyzed. Please try again.", http.StatusBadGateway)
	case errors.Is(err, extraction.ErrRateLimited):
		jsonError(w, "The extraction service is busy. Please try again shortly.", http.StatusServiceUnavailable)
	default:
		slog.Error("Error processing receipt", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleListReceipts returns all receipts for the session's owner
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(r)
	if !ok {
		jsonError(w, "X-Owner-ID header is required", http.StatusBadRequest)
		return
	}

	recs, err := s.service.List(r.Context(), sess)
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if recs == nil {
		recs = []*Receipt{}
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(recs); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(r)
	if !ok {
		jsonError(w, "X-Owner-ID header is required", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}

	rec, err := s.service.Get(r.Context(), sess, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Receipt not found", http.StatusNotFound)
			return
		}
		slog.Error("Error getting receipt", "id", id, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleDeleteReceipt deletes a receipt and its local image files
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(r)
	if !ok {
		jsonError(w, "X-Owner-ID header is required", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}

	if err := s.service.Delete(r.Context(), sess, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Receipt not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting receipt", "id", id, "error", err)
		corsError(w, "Error deleting receipt", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetImage serves a local fallback image file
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename == "" {
		corsError(w, "Image filename required", http.StatusBadRequest)
		return
	}

	data, err := s.service.LocalImage(filename)
	if err != nil {
		corsError(w, "Image not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

// contentTypeFor falls back to the filename extension when the part carries
// no content type.
func contentTypeFor(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
