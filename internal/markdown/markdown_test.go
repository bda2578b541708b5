// SPDX-License-Identifier: AGPL-3.0-only
package markdown

import (
	"regexp"
	"strings"
	"testing"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func TestRenderEmpty(t *testing.T) {
	if got := Render("", 80); got != "" {
		t.Errorf("Render(\"\") = %q, want empty", got)
	}
}

func TestRenderParagraph(t *testing.T) {
	got := stripANSI(Render("hello world", 80))
	if !strings.Contains(got, "hello world") {
		t.Errorf("paragraph output missing text: %q", got)
	}
}

func TestRenderWrapsToWidth(t *testing.T) {
	src := "one two three four five six seven eight nine ten"
	got := stripANSI(Render(src, 20))

	lines := strings.Split(got, "\n")
	if len(lines) < 2 {
		t.Fatalf("expected wrapped output, got %q", got)
	}
	for _, line := range lines {
		if len(line) > 20 {
			t.Errorf("line longer than width 20: %q", line)
		}
	}
}

func TestRenderHeading(t *testing.T) {
	got := stripANSI(Render("# Title", 80))
	if !strings.Contains(got, "Title") {
		t.Errorf("heading output missing text: %q", got)
	}
}

func TestRenderCodeBlockKeepsLines(t *testing.T) {
	src := "```go\nfmt.Println(\"hello world\")\n```"
	got := stripANSI(Render(src, 20))

	// Code is never reflowed, even below the wrap width.
	if !strings.Contains(got, `fmt.Println("hello world")`) {
		t.Errorf("code block reflowed or lost: %q", got)
	}
	if !strings.Contains(got, "go") {
		t.Errorf("language label missing: %q", got)
	}
	if !strings.Contains(got, "│ ") {
		t.Errorf("code gutter missing: %q", got)
	}
}

func TestRenderUnorderedList(t *testing.T) {
	got := stripANSI(Render("- first\n- second", 80))
	if !strings.Contains(got, "- first") || !strings.Contains(got, "- second") {
		t.Errorf("list markers missing: %q", got)
	}
}

func TestRenderOrderedListStart(t *testing.T) {
	got := stripANSI(Render("3. third\n4. fourth", 80))
	if !strings.Contains(got, "3. third") || !strings.Contains(got, "4. fourth") {
		t.Errorf("ordered list should honor its start number: %q", got)
	}
}

func TestRenderNestedList(t *testing.T) {
	got := stripANSI(Render("- outer\n  - inner", 80))
	if !strings.Contains(got, "- outer") {
		t.Errorf("outer item missing: %q", got)
	}
	if !strings.Contains(got, "  - inner") {
		t.Errorf("inner item should be indented: %q", got)
	}
}

func TestRenderLinkShowsDestination(t *testing.T) {
	got := stripANSI(Render("[docs](https://example.com)", 80))
	if !strings.Contains(got, "docs") || !strings.Contains(got, "(https://example.com)") {
		t.Errorf("link text or destination missing: %q", got)
	}
}

func TestRenderBlockquote(t *testing.T) {
	got := stripANSI(Render("> quoted text", 80))
	if !strings.Contains(got, "> quoted text") {
		t.Errorf("blockquote gutter missing: %q", got)
	}
}

func TestRenderBlockSeparation(t *testing.T) {
	got := stripANSI(Render("first paragraph\n\nsecond paragraph", 80))
	if !strings.Contains(got, "\n\n") {
		t.Errorf("expected blank line between paragraphs: %q", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Errorf("trailing newline should be trimmed: %q", got)
	}
}

func TestRenderZeroWidthDefaults(t *testing.T) {
	// width <= 0 falls back to 80 instead of degenerate wrapping.
	got := stripANSI(Render("some text", 0))
	if !strings.Contains(got, "some text") {
		t.Errorf("output missing text with zero width: %q", got)
	}
}
