package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProxyHost implements RemoteHost against the backend image proxy, which
// relays uploads to a third-party image host.
type ProxyHost struct {
	endpoint string
	client   *http.Client
}

// NewProxyHost creates a ProxyHost pointed at the given endpoint URL.
func NewProxyHost(endpoint string) (*ProxyHost, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("image host endpoint is required")
	}

	return &ProxyHost{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// NewProxyHostWithClient creates a ProxyHost with a custom HTTP client for testing.
func NewProxyHostWithClient(endpoint string, client *http.Client) *ProxyHost {
	return &ProxyHost{endpoint: endpoint, client: client}
}

type uploadRequest struct {
	Image string `json:"image"`
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL      string `json:"url"`
		Provider string `json:"provider"`
	} `json:"data"`
}

// Upload sends one JPEG, base64-embedded in a JSON request, and returns the
// provider URL.
func (h *ProxyHost) Upload(ctx context.Context, jpegData []byte) (string, error) {
	body := uploadRequest{
		Image: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData),
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling image host: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("image host error (status %d): %s", resp.StatusCode, string(detail))
	}

	var uploadResp uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if !uploadResp.Success || uploadResp.Data.URL == "" {
		return "", fmt.Errorf("image host rejected upload")
	}
	return uploadResp.Data.URL, nil
}
