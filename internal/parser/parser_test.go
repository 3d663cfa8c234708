package parser

import (
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - iris\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "iris" {
		t.Errorf("tags = %v, want [go iris]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
	if r.FirstHeading() != "Hello" {
		t.Errorf("first heading = %q, want %q", r.FirstHeading(), "Hello")
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestExtractLinks_Basic(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A#Intro]] again."
	links := extractLinks(body)
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2", len(links))
	}
	if links[0] != "Note A" || links[1] != "Note B" {
		t.Errorf("links = %v", links)
	}
}

func TestExtractLinks_EmptyTarget(t *testing.T) {
	links := extractLinks("see [[ ]] and [[|alias]]")
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{
		"tags": []any{"#alpha", 42, "gamma"},
	}
	inline := extractInlineTags("Some text #beta and #alpha again. #beta")
	if len(inline) != 2 || inline[0] != "#beta" || inline[1] != "#alpha" {
		t.Fatalf("inline = %v, want [#beta #alpha]", inline)
	}
	tags := extractTags(inline, fm)
	if len(tags) != 3 || tags[0] != "alpha" || tags[1] != "gamma" || tags[2] != "beta" {
		t.Errorf("tags = %v, want [alpha gamma beta]", tags)
	}
}

func TestFrontmatterTags_NotAList(t *testing.T) {
	if got := FrontmatterTags(map[string]any{"tags": "single"}); got != nil {
		t.Errorf("tags = %v, want nil", got)
	}
	if got := FrontmatterTags(nil); got != nil {
		t.Errorf("tags = %v, want nil", got)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	title := deriveTitle(fm, "# H1 Title\ntext")
	if title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	title := deriveTitle(nil, "some text\n# My Heading\nmore")
	if title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}

func TestHeadings_LevelsAndOffsets(t *testing.T) {
	text := "# A\ntext\n   ## B ##\n####### not a heading\n#nospace\n### C#\n"
	hs := Headings(text)
	if len(hs) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(hs), hs)
	}
	want := []Heading{
		{Level: 1, Title: "A", Offset: 0, End: 4},
		{Level: 2, Title: "B", Offset: 9, End: 20},
		{Level: 3, Title: "C#", Offset: 51, End: 58},
	}
	for i, w := range want {
		if hs[i] != w {
			t.Errorf("heading %d = %+v, want %+v", i, hs[i], w)
		}
	}
}

func TestHeadings_SkipsFencesAndFrontmatter(t *testing.T) {
	text := "---\ntitle: x\n# yaml comment\n---\n# Real\n```bash\n# comment\n```\n## After\n"
	hs := Headings(text)
	if len(hs) != 2 || hs[0].Title != "Real" || hs[1].Title != "After" {
		t.Fatalf("headings = %+v", hs)
	}
}

func TestHeadings_LastLineWithoutNewline(t *testing.T) {
	hs := Headings("intro\n## Tail")
	if len(hs) != 1 || hs[0].End != len("intro\n## Tail") {
		t.Fatalf("headings = %+v", hs)
	}
}

func TestFrontmatterEnd(t *testing.T) {
	if got := FrontmatterEnd("no frontmatter"); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	if got := FrontmatterEnd("---\na: 1\n---\nbody"); got != 13 {
		t.Errorf("got %d, want 13", got)
	}
	if got := FrontmatterEnd("---\nunterminated"); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}
