package markdown

import (
	"strings"
	"testing"
)

func TestToPlainTextStripsFormatting(t *testing.T) {
	in := "**Привет!** Вот *список*:\n\n- один\n- два\n\n`код` и [ссылка](https://example.com)"
	out := ToPlainText(in)

	for _, forbidden := range []string{"**", "<b>", "<em>", "<li>", "](", "<a "} {
		if strings.Contains(out, forbidden) {
			t.Errorf("plain text still contains %q: %q", forbidden, out)
		}
	}
	for _, want := range []string{"Привет!", "один", "два", "код", "ссылка"} {
		if !strings.Contains(out, want) {
			t.Errorf("plain text lost %q: %q", want, out)
		}
	}
}

func TestToPlainTextEmpty(t *testing.T) {
	if got := ToPlainText(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
