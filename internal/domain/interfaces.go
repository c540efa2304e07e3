package domain

// UntitledSection is the section title of text that no heading precedes.
const UntitledSection = "Untitled"

// Document represents a single policy file loaded into the system.
type Document struct {
	Path    string
	Content string
}

// PolicyChunk is a contiguous span of policy text used for indexing.
// Its identity is its position in the persisted metadata list.
type PolicyChunk struct {
	SourcePath   string   `json:"source_path"`
	SectionTitle string   `json:"section_title"`
	RuleIDs      []string `json:"rule_ids"`
	Text         string   `json:"text"`
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Score        float64  `json:"score"`
	SourcePath   string   `json:"source_path"`
	SectionTitle string   `json:"section_title"`
	RuleIDs      []string `json:"rule_ids"`
	Text         string   `json:"text"`
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]PolicyChunk, error)
}
