package chunker

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"reimburse/internal/domain"
)

// DefaultMaxChars is the soft cap on chunk length, in characters.
const DefaultMaxChars = 2400

var (
	ruleIDPattern      = regexp.MustCompile(`\bR-[A-Z]{2,5}-\d{3}\b`)
	paragraphSeparator = regexp.MustCompile(`\n\s*\n`)
)

// HeadingChunker splits markdown policy documents into heading-scoped chunks,
// packing paragraphs of oversized sections into sub-chunks of at most maxChars.
type HeadingChunker struct {
	maxChars int
}

func NewHeadingChunker(maxChars int) *HeadingChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &HeadingChunker{maxChars: maxChars}
}

func (c *HeadingChunker) Chunk(document domain.Document) ([]domain.PolicyChunk, error) {
	chunks := Split(document.Content, c.maxChars)
	for i := range chunks {
		chunks[i].SourcePath = document.Path
	}
	return chunks, nil
}

// Split scans text line by line. A line starting with '#' opens a new section
// and stays part of that section's text. A section longer than maxChars is
// split on blank lines and its paragraphs are greedily packed; a single
// paragraph is never split, even when it alone exceeds maxChars.
func Split(text string, maxChars int) []domain.PolicyChunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []domain.PolicyChunk
	title := domain.UntitledSection
	var buf []string

	flush := func() {
		defer func() { buf = buf[:0] }()
		section := strings.TrimSpace(strings.Join(buf, "\n"))
		if section == "" {
			return
		}
		for _, part := range pack(section, maxChars) {
			chunks = append(chunks, domain.PolicyChunk{
				SectionTitle: title,
				RuleIDs:      ExtractRuleIDs(part),
				Text:         part,
			})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "#") {
			flush()
			title = strings.TrimSpace(strings.TrimLeft(line, "#"))
			if title == "" {
				title = domain.UntitledSection
			}
		}
		buf = append(buf, line)
	}
	flush()
	return chunks
}

func pack(section string, maxChars int) []string {
	if runeLen(section) <= maxChars {
		return []string{section}
	}
	var out []string
	var cur []string
	curLen := 0
	for _, p := range paragraphSeparator.Split(section, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n := runeLen(p)
		// joined length if p is appended: existing text + "\n\n" + p
		if len(cur) > 0 && curLen+2+n > maxChars {
			out = append(out, strings.Join(cur, "\n\n"))
			cur = cur[:0]
			curLen = 0
		}
		if len(cur) > 0 {
			curLen += 2
		}
		cur = append(cur, p)
		curLen += n
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, "\n\n"))
	}
	return out
}

// ExtractRuleIDs returns the distinct rule identifiers found in text, sorted.
// The result is never nil.
func ExtractRuleIDs(text string) []string {
	ids := ruleIDPattern.FindAllString(text, -1)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if ids == nil {
		ids = []string{}
	}
	return ids
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
