package ai

import (
	"strings"

	"github.com/fusionbot-vk/fusionbot/pkg/markdown"
)

// artifactTokens are model control sequences that occasionally leak into
// completions and must never reach chat users.
var artifactTokens = []string{
	"<s>",
	"</s>",
	"<|im_start|>",
	"<|im_end|>",
	"```",
}

// CleanResponse strips model artifacts and markdown from a raw completion
// and normalizes whitespace. It may return an empty string, which callers
// treat as a failed attempt.
func CleanResponse(raw string) string {
	text := raw
	for _, token := range artifactTokens {
		text = strings.ReplaceAll(text, token, "")
	}

	text = markdown.ToPlainText(text)

	return strings.Join(strings.Fields(text), " ")
}
