package vecturakit

import "time"

// maxTextLen bounds Document.Text, per the data model's ingress validation.
const maxTextLen = 1_000_000

// Document is a uniquely identified, immutable-at-rest record: an opaque ID,
// the original text, its dense embedding, and the creation timestamp.
// Documents are replaced wholesale by Update, never mutated in place.
type Document struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ScoredDocument pairs a Document with a similarity or fusion score, sorted
// descending by Score in every result slice this package returns.
type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}

// SearchOptions narrows a search_vector/search_text call.
type SearchOptions struct {
	TopK      int
	Threshold *float64 // nil means "no threshold"
	// Filter is not read by SearchVector or SearchText; results are not
	// filtered by metadata.
	Filter map[string]string
}

// DatabaseStats mirrors the teacher's StoreStats, surfaced by Stats(ctx).
type DatabaseStats struct {
	Count      int64
	Dimension  int
	ApproxSize int64 // on-disk byte estimate; DB.Stats does not compute it and leaves it 0
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func validateText(text string) error {
	if len(text) == 0 {
		return invalidInput("text must not be empty")
	}
	if len([]rune(text)) > maxTextLen {
		return invalidInput("text exceeds maximum length of %d code points", maxTextLen)
	}
	return nil
}
