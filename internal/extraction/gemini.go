package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gemini implements the Gateway interface using Google Gemini directly.
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini creates a new Gemini Gateway instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		modelName: modelName,
	}, nil
}

// Extract sends the request to Gemini and returns the raw text response.
// The generation config is applied per call, so concurrent extractions with
// different configs do not share model state.
func (g *Gemini) Extract(ctx context.Context, req Request) (string, error) {
	model := g.client.GenerativeModel(g.modelName)

	cfg := req.Config
	if cfg.Temperature != nil {
		model.SetTemperature(*cfg.Temperature)
	}
	if cfg.TopP != nil {
		model.SetTopP(*cfg.TopP)
	}
	if cfg.TopK != nil {
		model.SetTopK(*cfg.TopK)
	}
	if cfg.MaxOutputTokens != nil {
		model.SetMaxOutputTokens(*cfg.MaxOutputTokens)
	}
	if cfg.ResponseFormat == ResponseFormatJSON {
		model.ResponseMIMEType = "application/json"
	}
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstruction)},
		}
	}

	var parts []genai.Part
	if len(req.Image) > 0 {
		// genai.ImageData expects just the format suffix (e.g. "jpeg"),
		// not the full MIME type (e.g. "image/jpeg")
		parts = append(parts, genai.ImageData(formatSuffix(req.MIMEType), req.Image))
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoContent
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	text := strings.TrimSpace(responseText.String())
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}

// formatSuffix trims a MIME type down to the format suffix genai expects.
func formatSuffix(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if suffix, ok := strings.CutPrefix(mimeType, "image/"); ok && suffix != "" {
		return suffix
	}
	return "jpeg"
}

// classifyGeminiError maps a genai call failure to a sentinel error while
// preserving the underlying detail.
func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if classified := classifyStatus(gerr.Code); classified != nil {
			return fmt.Errorf("%w: %v", classified, err)
		}
	}
	return fmt.Errorf("generating content: %w", err)
}
