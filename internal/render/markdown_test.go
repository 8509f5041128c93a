package render

import (
	"strings"
	"testing"
)

func TestMarkdownHTML(t *testing.T) {
	m := NewMarkdown()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "emphasis", in: "**slow start**", want: "<strong>slow start</strong>"},
		{name: "code block", in: "```go\nfmt.Println(1)\n```", want: "<code class=\"language-go\">"},
		{name: "table", in: "| a | b |\n|---|---|\n| 1 | 2 |", want: "<table>"},
		{name: "hard wrap", in: "line one\nline two", want: "<br>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.HTML(tc.in); !strings.Contains(got, tc.want) {
				t.Fatalf("HTML(%q) = %q, want it to contain %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMarkdownDropsRawHTML(t *testing.T) {
	got := NewMarkdown().HTML("hi <script>alert(1)</script>")
	if strings.Contains(got, "<script>") {
		t.Fatalf("raw html leaked: %q", got)
	}
}
