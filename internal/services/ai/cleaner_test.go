package ai

import "testing"

func TestCleanResponseStripsArtifacts(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"<s>Привет!</s>", "Привет!"},
		{"<|im_start|>assistant Ответ<|im_end|>", "assistant Ответ"},
		{"```\ncode here\n```", "code here"},
		{"Ответ   с \n\n лишними    пробелами", "Ответ с лишними пробелами"},
		{"**Жирный** ответ", "Жирный ответ"},
		{"", ""},
		{"<s></s>", ""},
	}

	for _, tc := range cases {
		if got := CleanResponse(tc.in); got != tc.want {
			t.Errorf("CleanResponse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
