package chunker_test

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"reimburse/internal/chunker"
	"reimburse/internal/domain"
)

const policyDoc = `# Travel Policy

Employees must book economy class. R-TRV-001 applies.

## Meals

Breakfast is capped at 15 EUR (R-MEAL-001).
Dinner is capped at 40 EUR (R-MEAL-003), see also R-MEAL-001.

## Lodging

Nightly cap is 180 EUR. R-LODG-010
`

func TestSplitSections(t *testing.T) {
	chunks := chunker.Split(policyDoc, 2400)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	tests := []struct {
		title   string
		prefix  string
		ruleIDs []string
	}{
		{"Travel Policy", "# Travel Policy", []string{"R-TRV-001"}},
		{"Meals", "## Meals", []string{"R-MEAL-001", "R-MEAL-003"}},
		{"Lodging", "## Lodging", []string{"R-LODG-010"}},
	}
	for i, tt := range tests {
		c := chunks[i]
		if c.SectionTitle != tt.title {
			t.Errorf("chunk %d title: got %q, want %q", i, c.SectionTitle, tt.title)
		}
		if !strings.HasPrefix(c.Text, tt.prefix) {
			t.Errorf("chunk %d should keep its heading line, got %q", i, c.Text)
		}
		if !slices.Equal(c.RuleIDs, tt.ruleIDs) {
			t.Errorf("chunk %d rule ids: got %v, want %v", i, c.RuleIDs, tt.ruleIDs)
		}
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	for _, doc := range []string{"", "   \n\n  \n"} {
		if chunks := chunker.Split(doc, 100); len(chunks) != 0 {
			t.Errorf("Split(%q) returned %d chunks, want 0", doc, len(chunks))
		}
	}
}

func TestSplitNoHeadings(t *testing.T) {
	chunks := chunker.Split("Plain text without any heading.\n\nSecond paragraph.", 2400)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].SectionTitle != domain.UntitledSection {
		t.Errorf("title: got %q, want %q", chunks[0].SectionTitle, domain.UntitledSection)
	}
	if len(chunks[0].RuleIDs) != 0 || chunks[0].RuleIDs == nil {
		t.Errorf("rule ids: got %#v, want empty non-nil slice", chunks[0].RuleIDs)
	}
}

func TestSplitBareHeadingIsUntitled(t *testing.T) {
	chunks := chunker.Split("###\nbody text", 2400)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].SectionTitle != domain.UntitledSection {
		t.Errorf("title: got %q", chunks[0].SectionTitle)
	}
	if chunks[0].Text != "###\nbody text" {
		t.Errorf("text: got %q", chunks[0].Text)
	}
}

func TestSplitPacksParagraphs(t *testing.T) {
	para := func(c string) string { return strings.Repeat(c, 30) }
	doc := "# Big\n\n" + strings.Join([]string{para("a"), para("b"), para("c"), para("d")}, "\n\n")

	const maxChars = 65
	chunks := chunker.Split(doc, maxChars)

	// ["# Big", a], [b, c], [d]
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %q", len(chunks), texts(chunks))
	}
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); n > maxChars {
			t.Errorf("chunk exceeds max: %d > %d", n, maxChars)
		}
		if c.SectionTitle != "Big" {
			t.Errorf("title: got %q, want Big", c.SectionTitle)
		}
	}
	if chunks[1].Text != para("b")+"\n\n"+para("c") {
		t.Errorf("second chunk: got %q", chunks[1].Text)
	}
}

func TestSplitOversizedParagraphStandsAlone(t *testing.T) {
	huge := strings.Repeat("x", 500)
	doc := "# Section\n\nshort\n\n" + huge + "\n\ntail"
	chunks := chunker.Split(doc, 100)

	found := false
	for _, c := range chunks {
		n := utf8.RuneCountInString(c.Text)
		if n > 100 {
			if c.Text != huge {
				t.Errorf("oversized chunk should be exactly one paragraph, got %q", c.Text)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("expected the oversized paragraph as its own chunk")
	}
}

func TestSplitPreservesContent(t *testing.T) {
	doc := "intro line\n\n# A\n\n" + strings.Repeat("alpha beta ", 20) + "\n\n" +
		strings.Repeat("gamma ", 30) + "\n\n## B\n\ndelta R-OPS-123"
	chunks := chunker.Split(doc, 120)

	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Text)
		joined.WriteString("\n\n")
	}
	if got, want := strings.Fields(joined.String()), strings.Fields(doc); !slices.Equal(got, want) {
		t.Errorf("content not preserved:\n got %q\nwant %q", got, want)
	}
}

func TestExtractRuleIDsIdempotent(t *testing.T) {
	chunks := chunker.Split(policyDoc, 2400)
	for _, c := range chunks {
		if again := chunker.ExtractRuleIDs(c.Text); !slices.Equal(again, c.RuleIDs) {
			t.Errorf("re-extraction: got %v, want %v", again, c.RuleIDs)
		}
	}
}

func TestExtractRuleIDsPattern(t *testing.T) {
	got := chunker.ExtractRuleIDs("R-AB-001 R-ABCDE-999 R-A-001 R-ABCDEF-001 R-AB-0012 xR-AB-002 r-ab-003 R-AB-001")
	want := []string{"R-AB-001", "R-ABCDE-999"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestHeadingChunkerSetsSourcePath(t *testing.T) {
	c := chunker.NewHeadingChunker(0)
	chunks, err := c.Chunk(domain.Document{Path: "policies/travel.md", Content: policyDoc})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	for _, ch := range chunks {
		if ch.SourcePath != "policies/travel.md" {
			t.Errorf("source path: got %q", ch.SourcePath)
		}
	}
}

func texts(chunks []domain.PolicyChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
