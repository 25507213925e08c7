package types

// Page is the text extracted from one page of a source document.
type Page struct {
	Number int    // 1-based page number
	Text   string // Extracted text content
}

// Document is a source document after text extraction.
type Document struct {
	Source string // Source label, usually the file name
	Text   string // Full text, pages joined with a blank line
	Pages  []Page
}

// Chunk is a bounded span of document text produced by segmentation
type Chunk struct {
	ID     int    // 0-based position within the document
	Text   string // The actual text content
	Source string
	Page   *int // Attributed page, nil when unknown
}

// DocumentServiceConfig contains the segmentation options
type DocumentServiceConfig struct {
	MaxChunkSize int // Maximum size for text chunks, in runes
	OverlapSize  int // Size of overlap between chunks, in runes
}

// IDStrategy decides how point identifiers are derived.
type IDStrategy int

const (
	// IDRandom assigns a fresh UUIDv4 to every point.
	IDRandom IDStrategy = iota
	// IDDeterministic derives a UUIDv5 from the trimmed chunk text,
	// so re-ingesting identical text overwrites the same point.
	IDDeterministic
)

// IngestRequest is the input of one ingestion run. Texts wins over Text
// when both are set.
type IngestRequest struct {
	Texts      []string
	Text       string
	Source     string
	MaxChars   int
	Overlap    int
	IDStrategy IDStrategy
}

// Payload is the metadata stored next to each vector.
type Payload struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	Page      *int   `json:"page"`
	ChunkID   int    `json:"chunk_id"`
	CreatedAt int64  `json:"created_at"`
	Hash      string `json:"hash,omitempty"`
}

// Point is one entry in the vector index
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Record is a stored point read back without its vector.
type Record struct {
	ID      string
	Payload Payload
}

// Candidate is a point returned by a similarity query, held only while re-ranking.
type Candidate struct {
	ID      string
	Score   float32 // similarity reported by the index
	Vector  VectorData
	Payload Payload
}
