// Package prompt assembles outbound completion requests from session state.
package prompt

import (
	"strings"

	"github.com/ashureev/tonechat/internal/domain"
)

// DefaultImageInstruction is used when an image is sent without any text.
const DefaultImageInstruction = "Describe what is in this image."

// Build turns the draft, an optional image, the active topic's transcript and
// the current tone into a request.
//
// Image requests are single-turn: history and tone are not sent with them.
func Build(draft string, image *domain.Image, history domain.Transcript, tone string) domain.Request {
	text := strings.TrimSpace(draft)

	if image != nil {
		if text == "" {
			text = DefaultImageInstruction
		}
		return domain.ImageRequest{
			Instruction: text,
			Image:       *image,
		}
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	b.WriteString(Script(history))
	b.WriteString("\n\nPlease respond in a ")
	b.WriteString(tone)
	b.WriteString(" tone to the following message: ")
	b.WriteString(text)

	return domain.TextRequest{Prompt: b.String()}
}

// Script serializes a transcript as "User: ..." / "Assistant: ..." lines,
// oldest first.
func Script(history domain.Transcript) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "Assistant"
		if m.Role == domain.RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
