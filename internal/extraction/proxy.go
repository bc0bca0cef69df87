package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Proxy implements the Gateway interface against the backend AI proxy, which
// relays prompts to the provider and returns the raw model text.
type Proxy struct {
	endpoint string
	client   *http.Client
}

// NewProxy creates a new Proxy Gateway pointed at the given endpoint URL.
func NewProxy(endpoint string) (*Proxy, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("proxy endpoint is required")
	}

	return &Proxy{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 90 * time.Second, // vision extraction can be slow
		},
	}, nil
}

// NewProxyWithClient creates a Proxy with a custom HTTP client for testing.
func NewProxyWithClient(endpoint string, client *http.Client) *Proxy {
	return &Proxy{endpoint: endpoint, client: client}
}

// proxyRequest is the request body for the backend AI proxy.
type proxyRequest struct {
	Prompt            string       `json:"prompt"`
	Image             string       `json:"image,omitempty"`
	SystemInstruction string       `json:"systemInstruction,omitempty"`
	Config            *proxyConfig `json:"config,omitempty"`
}

type proxyConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	TopK            *int32   `json:"topK,omitempty"`
	MaxOutputTokens *int32   `json:"maxOutputTokens,omitempty"`
	ResponseFormat  string   `json:"responseFormat,omitempty"`
}

// proxyResponse is the response body from the backend AI proxy.
type proxyResponse struct {
	Response struct {
		Text string `json:"text"`
	} `json:"response"`
}

// Extract sends the request through the backend proxy and returns the raw
// text response. The image, when present, is embedded as a base64 data URI;
// text-only prompts omit the field entirely.
func (p *Proxy) Extract(ctx context.Context, req Request) (string, error) {
	body := proxyRequest{
		Prompt:            req.Prompt,
		SystemInstruction: req.SystemInstruction,
		Config: &proxyConfig{
			Temperature:     req.Config.Temperature,
			TopP:            req.Config.TopP,
			TopK:            req.Config.TopK,
			MaxOutputTokens: req.Config.MaxOutputTokens,
			ResponseFormat:  req.Config.ResponseFormat,
		},
	}
	if len(req.Image) > 0 {
		body.Image = dataURI(req.MIMEType, req.Image)
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling ai proxy: %w", err)
	}
	defer resp.Body.Close()

	if classified := classifyStatus(resp.StatusCode); classified != nil {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w (status %d): %s", classified, resp.StatusCode, string(detail))
	}

	var proxyResp proxyResponse
	if err := json.NewDecoder(resp.Body).Decode(&proxyResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	text := strings.TrimSpace(proxyResp.Response.Text)
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// Close closes the proxy gateway (no-op for HTTP client)
func (p *Proxy) Close() error {
	return nil
}

// dataURI encodes image bytes as a base64 data URI.
func dataURI(mimeType string, data []byte) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
