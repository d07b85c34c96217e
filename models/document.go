package models

// Well-known metadata keys attached to every chunk and indexed record.
const (
	MetadataSource   = "source"
	MetadataChunk    = "chunk"
	MetadataFormat   = "format"
	MetadataFileHash = "file_hash"
)

// Metadata is the free-form key/value bag carried with chunks and records.
type Metadata map[string]interface{}

// Source returns the origin document identifier, or "" when absent.
func (m Metadata) Source() string {
	if m == nil {
		return ""
	}
	s, _ := m[MetadataSource].(string)
	return s
}

// Clone returns a shallow copy so callers never share a map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SourceDocument is one normalized file from the corpus directory.
type SourceDocument struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Format string `json:"format"`
	Hash   string `json:"hash,omitempty"`
}

// Chunk is a bounded excerpt of a SourceDocument, the unit of embedding.
type Chunk struct {
	PageContent string   `json:"pageContent"`
	Metadata    Metadata `json:"metadata"`
}

// IndexedRecord is what the vector index stores. Text always equals the
// PageContent of the chunk that produced it.
type IndexedRecord struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata Metadata
}

// RetrievedDocument is a single nearest-neighbour hit, ranked by Score.
type RetrievedDocument struct {
	PageContent string   `json:"pageContent"`
	Metadata    Metadata `json:"metadata"`
	Score       float32  `json:"score,omitempty"`
}

// AggregatedSource merges every retrieved chunk that shares a source.
type AggregatedSource struct {
	PageContent string   `json:"pageContent"`
	Metadata    Metadata `json:"metadata"`
}

// AnswerResult is the output of the conversational retrieval chain.
type AnswerResult struct {
	Text            string              `json:"text"`
	SourceDocuments []RetrievedDocument `json:"sourceDocuments"`
}
