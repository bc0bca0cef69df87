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

// Ollama implements the Gateway interface against a local Ollama instance.
// Recommended vision models for receipt extraction:
//   - llava:1.6 (best balance of accuracy and speed)
//   - llava:latest (general purpose vision model)
//   - qwen2-vl:7b (good OCR capabilities)
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Gateway instance.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // local vision models can be slow
		},
	}, nil
}

// NewOllamaWithClient creates an Ollama gateway with a custom HTTP client for testing.
func NewOllamaWithClient(baseURL, modelName string, client *http.Client) *Ollama {
	return &Ollama{baseURL: baseURL, model: modelName, client: client}
}

// ollamaChatRequest is the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaOptions struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	TopK        *int32   `json:"top_k,omitempty"`
	NumPredict  *int32   `json:"num_predict,omitempty"`
}

// ollamaChatResponse is the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Extract sends the request to Ollama and returns the raw text response. The
// image rides on the user message as plain base64.
func (o *Ollama) Extract(ctx context.Context, req Request) (string, error) {
	userMsg := ollamaMessage{
		Role:    "user",
		Content: req.Prompt,
	}
	if len(req.Image) > 0 {
		userMsg.Images = []string{base64.StdEncoding.EncodeToString(req.Image)}
	}

	body := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Options: &ollamaOptions{
			Temperature: req.Config.Temperature,
			TopP:        req.Config.TopP,
			TopK:        req.Config.TopK,
			NumPredict:  req.Config.MaxOutputTokens,
		},
	}
	if req.Config.ResponseFormat == ResponseFormatJSON {
		body.Format = "json"
	}
	if req.SystemInstruction != "" {
		body.Messages = append(body.Messages, ollamaMessage{
			Role:    "system",
			Content: req.SystemInstruction,
		})
	}
	body.Messages = append(body.Messages, userMsg)

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if classified := classifyStatus(resp.StatusCode); classified != nil {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w (status %d): %s", classified, resp.StatusCode, string(detail))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	text := strings.TrimSpace(chatResp.Message.Content)
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
