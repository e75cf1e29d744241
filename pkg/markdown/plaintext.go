package markdown

import (
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	tagPattern     = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	newlinePattern = regexp.MustCompile(`\n{3,}`)
)

// ToPlainText renders markdown to plain text. The chat platform displays
// messages verbatim, so formatting markup has to be stripped rather than
// translated.
func ToPlainText(markdown string) string {
	if markdown == "" {
		return ""
	}

	rendered := string(blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	// Keep list structure readable before dropping tags.
	rendered = strings.ReplaceAll(rendered, "<li>", "• ")
	rendered = strings.ReplaceAll(rendered, "</p>", "\n")
	rendered = strings.ReplaceAll(rendered, "<br>", "\n")
	rendered = strings.ReplaceAll(rendered, "<br/>", "\n")

	rendered = tagPattern.ReplaceAllString(rendered, "")
	rendered = html.UnescapeString(rendered)
	rendered = newlinePattern.ReplaceAllString(rendered, "\n\n")

	return strings.TrimSpace(rendered)
}
