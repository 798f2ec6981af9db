// Package llm implements completion clients.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/tonechat/internal/domain"
	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("gemini returned empty text")

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional; overrides the public endpoint
}

// GeminiClient implements domain.CompletionClient using the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiClient creates a Gemini-backed completion client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		logger: logger.With("component", "gemini", "model", cfg.Model),
	}, nil
}

// Complete sends req and returns the generated text.
func (c *GeminiClient) Complete(ctx context.Context, req domain.Request) (string, error) {
	contents, err := toContents(req)
	if err != nil {
		return "", err
	}

	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		c.logger.Warn("generate content failed", "error", err)
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func toContents(req domain.Request) ([]*genai.Content, error) {
	switch r := req.(type) {
	case domain.TextRequest:
		return []*genai.Content{genai.NewContentFromText(r.Prompt, genai.RoleUser)}, nil
	case domain.ImageRequest:
		raw, err := base64.StdEncoding.DecodeString(r.Image.Data)
		if err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
		parts := []*genai.Part{
			genai.NewPartFromText(r.Instruction),
			genai.NewPartFromBytes(raw, r.Image.MIMEType),
		}
		return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}
}

var _ domain.CompletionClient = (*GeminiClient)(nil)
