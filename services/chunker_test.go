package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/rentalqa/models"
)

func TestNewChunker(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewChunker()
		assert.Equal(t, DefaultChunkSize, c.Size())
		assert.Equal(t, DefaultChunkOverlap, c.Overlap())
	})

	t.Run("custom values", func(t *testing.T) {
		c := NewChunker(WithChunkSize(500), WithChunkOverlap(50))
		assert.Equal(t, 500, c.Size())
		assert.Equal(t, 50, c.Overlap())
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		c := NewChunker(WithChunkSize(100), WithChunkOverlap(150))
		assert.Less(t, c.Overlap(), c.Size())
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		c := NewChunker(WithChunkSize(0), WithChunkOverlap(-1))
		assert.Equal(t, DefaultChunkSize, c.Size())
		assert.Equal(t, DefaultChunkOverlap, c.Overlap())
	})
}

func TestChunker_ShortDocumentIsOneChunk(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithChunkOverlap(20))
	text := "A tenant must pay the bond within 7 days.\n\nThe landlord lodges it."

	chunks := c.SplitText(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunker_ExactlyMaxSizeIsOneChunk(t *testing.T) {
	c := NewChunker(WithChunkSize(50), WithChunkOverlap(10))
	text := strings.Repeat("x", 50)

	assert.Equal(t, []string{text}, c.SplitText(text))
}

func TestChunker_EmptyText(t *testing.T) {
	assert.Empty(t, NewChunker().SplitText(""))
}

func TestChunker_LongDocumentBoundsAndOverlap(t *testing.T) {
	inputs := map[string]string{
		"prose":      strings.Repeat("The tenant must keep the premises reasonably clean. ", 80),
		"paragraphs": strings.Repeat("Rent is paid fortnightly in advance.\nReceipts are issued.\n\n", 60),
		"no spaces":  strings.Repeat("abcdefghij", 300),
		"unicode":    strings.Repeat("Mietvertrag für Wohnräume – Kündigungsfrist gemäß § 573c. ", 40),
	}
	for name, text := range inputs {
		t.Run(name, func(t *testing.T) {
			const size, overlap = 300, 60
			c := NewChunker(WithChunkSize(size), WithChunkOverlap(overlap))

			chunks := c.SplitText(text)
			require.Greater(t, len(chunks), 1)

			for i, ch := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(ch), size, "chunk %d too long", i)
			}
			for i := 1; i < len(chunks); i++ {
				prev := []rune(chunks[i-1])
				tail := string(prev[len(prev)-overlap:])
				assert.Contains(t, chunks[i], tail, "chunk %d does not repeat the tail of chunk %d", i, i-1)
			}
			assert.True(t, strings.HasPrefix(text, chunks[0]))
			assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
		})
	}
}

func TestChunker_PrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("word ", 30) // 150 runes
	text := para + "\n\n" + para + "\n\n" + para
	c := NewChunker(WithChunkSize(200), WithChunkOverlap(20))

	chunks := c.SplitText(text)

	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"), "first chunk should end on the paragraph break")
	assert.Equal(t, para+"\n\n", chunks[0])
}

func TestChunker_Deterministic(t *testing.T) {
	text := strings.Repeat("Section 12. Repairs are the landlord's responsibility! Are urgent repairs different? Yes.\n", 40)
	c1 := NewChunker(WithChunkSize(250), WithChunkOverlap(50))
	c2 := NewChunker(WithChunkSize(250), WithChunkOverlap(50))

	assert.Equal(t, c1.SplitText(text), c1.SplitText(text))
	assert.Equal(t, c1.SplitText(text), c2.SplitText(text))
}

func TestChunker_SplitTagsMetadata(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithChunkOverlap(10))
	docs := []models.SourceDocument{
		{ID: "docs/a.txt", Text: strings.Repeat("alpha beta gamma ", 20), Format: FormatText, Hash: "h1"},
		{ID: "docs/b.txt", Text: "short", Format: FormatText},
	}

	chunks := c.Split(docs)

	require.Greater(t, len(chunks), 2)
	last := chunks[len(chunks)-1]
	assert.Equal(t, "docs/b.txt", last.Metadata.Source())
	assert.Equal(t, 0, last.Metadata[models.MetadataChunk])
	assert.Equal(t, "short", last.PageContent)

	for i := 0; i < len(chunks)-1; i++ {
		assert.Equal(t, "docs/a.txt", chunks[i].Metadata.Source())
		assert.Equal(t, i, chunks[i].Metadata[models.MetadataChunk])
		assert.Equal(t, "h1", chunks[i].Metadata[models.MetadataFileHash])
	}
}
