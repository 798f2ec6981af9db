package domain

import "context"

// Request is an outbound completion request. It is either a TextRequest or an
// ImageRequest.
type Request interface {
	isRequest()
}

// TextRequest continues a conversation from a single serialized prompt.
type TextRequest struct {
	Prompt string
}

// ImageRequest asks the backend about one image. It carries no history.
type ImageRequest struct {
	Instruction string
	Image       Image
}

func (TextRequest) isRequest()  {}
func (ImageRequest) isRequest() {}

// CompletionClient turns a request into generated text.
type CompletionClient interface {
	Complete(ctx context.Context, req Request) (string, error)
}
