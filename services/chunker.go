package services

import (
	"unicode"

	"github/itish2003/rentalqa/models"
)

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by
// consecutive chunks.
const DefaultChunkOverlap = 200

// DefaultSeparators lists split points from coarsest to finest. When none is
// found in range the chunk is cut at the character limit.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Chunker splits documents into overlapping, size-bounded chunks. Sizes are
// counted in runes. Output depends only on the input text and configuration.
type Chunker struct {
	size       int
	overlap    int
	separators [][]rune
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithChunkOverlap sets the overlap between consecutive chunks.
func WithChunkOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator priority list.
func WithSeparators(seps ...string) ChunkerOption {
	return func(c *Chunker) {
		if len(seps) > 0 {
			c.separators = toRunes(seps)
		}
	}
}

// NewChunker creates a Chunker with the given options.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		size:       DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: toRunes(DefaultSeparators),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks every document, tagging each chunk with its source and ordinal.
func (c *Chunker) Split(docs []models.SourceDocument) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		chunks = append(chunks, c.SplitDocument(doc)...)
	}
	return chunks
}

// SplitDocument chunks a single document.
func (c *Chunker) SplitDocument(doc models.SourceDocument) []models.Chunk {
	texts := c.SplitText(doc.Text)
	chunks := make([]models.Chunk, 0, len(texts))
	for i, text := range texts {
		md := models.Metadata{
			models.MetadataSource: doc.ID,
			models.MetadataChunk:  i,
		}
		if doc.Format != "" {
			md[models.MetadataFormat] = doc.Format
		}
		if doc.Hash != "" {
			md[models.MetadataFileHash] = doc.Hash
		}
		chunks = append(chunks, models.Chunk{PageContent: text, Metadata: md})
	}
	return chunks
}

// SplitText splits text into pieces of at most size runes. Text that already
// fits is returned whole. Otherwise each piece ends just after the coarsest
// separator available and the next piece starts at least overlap runes
// before that point.
func (c *Chunker) SplitText(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= c.size {
		return []string{text}
	}

	var out []string
	start, prevCut := 0, 0
	for {
		end := start + c.size
		if end >= n {
			out = append(out, string(runes[start:]))
			return out
		}
		// The cut must move past the previous one, and leave room for the
		// overlap so the next start still advances.
		lo := start + c.overlap + 1
		if prevCut+1 > lo {
			lo = prevCut + 1
		}
		cut := c.breakPoint(runes, lo, end)
		out = append(out, string(runes[start:cut]))
		start = c.nextStart(runes, start, cut)
		prevCut = cut
	}
}

// breakPoint returns the position just after the last occurrence of the
// coarsest separator ending inside [lo, hi], or hi if there is none.
func (c *Chunker) breakPoint(runes []rune, lo, hi int) int {
	for _, sep := range c.separators {
		if i := lastIndexEndingIn(runes, sep, lo, hi); i >= 0 {
			return i
		}
	}
	return hi
}

// nextStart backs off overlap runes from cut, then snaps back to the start of
// a word when one is close enough.
func (c *Chunker) nextStart(runes []rune, start, cut int) int {
	next := cut - c.overlap
	limit := c.overlap / 2
	if room := c.size - c.overlap - 1; room < limit {
		limit = room
	}
	floor := next - limit
	if floor <= start {
		floor = start + 1
	}
	for i := next - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return next
}

// lastIndexEndingIn finds the last occurrence of sep whose end position e
// satisfies lo <= e <= hi, and returns e, or -1.
func lastIndexEndingIn(runes, sep []rune, lo, hi int) int {
	m := len(sep)
	if m == 0 {
		return -1
	}
	for e := hi; e >= lo && e-m >= 0; e-- {
		if equalRunes(runes[e-m:e], sep) {
			return e
		}
	}
	return -1
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toRunes(seps []string) [][]rune {
	out := make([][]rune, 0, len(seps))
	for _, s := range seps {
		if s != "" {
			out = append(out, []rune(s))
		}
	}
	return out
}
