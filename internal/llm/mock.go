package llm

import (
	"context"
	"fmt"

	"github.com/ashureev/tonechat/internal/domain"
)

// MockClient answers without calling any backend. Useful for local development.
type MockClient struct{}

// NewMockClient creates a MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Complete echoes a short description of the request.
func (m *MockClient) Complete(_ context.Context, req domain.Request) (string, error) {
	switch r := req.(type) {
	case domain.ImageRequest:
		return fmt.Sprintf("I received a %s image. You asked: %q", r.Image.MIMEType, r.Instruction), nil
	case domain.TextRequest:
		return fmt.Sprintf("(mock) I read %d characters of context.", len(r.Prompt)), nil
	default:
		return "", fmt.Errorf("unsupported request type %T", req)
	}
}

var _ domain.CompletionClient = (*MockClient)(nil)
