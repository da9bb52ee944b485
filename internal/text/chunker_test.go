package text

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
)

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	return strings.Join(words, " ")
}

func TestSplit(t *testing.T) {
	t.Run("Single Sentence", func(t *testing.T) {
		sentence := "The pump housing is rated for 16 bar."
		chunks, err := Split(sentence, 500, 100, DefaultSeparators)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, sentence, chunks[0].Content)
	})

	t.Run("Space Fallback Without Newlines", func(t *testing.T) {
		text := numberedWords(240)
		require.NotContains(t, text, "\n")

		chunks, err := Split(text, 500, 100, DefaultSeparators)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(chunks), 3)

		prevEnd := -1
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 500)

			start := strings.Index(text, c.Content)
			require.GreaterOrEqual(t, start, 0, "chunk %d is not a span of the source", i)
			if prevEnd >= 0 {
				shared := prevEnd - start
				assert.Greater(t, shared, 0, "chunk %d does not overlap its predecessor", i)
				assert.LessOrEqual(t, shared, 100)
				assert.True(t, strings.HasSuffix(chunks[i-1].Content, text[start:prevEnd]))
			}
			prevEnd = start + len(c.Content)
		}
		assert.Equal(t, len(text), prevEnd, "last chunk must reach the end of the text")
	})

	t.Run("Character Fallback Exact Overlap", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 1200; i++ {
			b.WriteByte(byte('a' + i%26))
		}
		text := b.String()

		chunks, err := Split(text, 500, 100, DefaultSeparators)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, text[0:500], chunks[0].Content)
		assert.Equal(t, text[400:900], chunks[1].Content)
		assert.Equal(t, text[800:1200], chunks[2].Content)

		for i := 0; i+1 < len(chunks); i++ {
			prev := chunks[i].Content
			assert.Equal(t, prev[len(prev)-100:], chunks[i+1].Content[:100])
		}
	})

	t.Run("Paragraphs Preferred", func(t *testing.T) {
		p1 := strings.Repeat("alpha ", 30)
		p2 := strings.Repeat("beta ", 30)
		text := p1 + "\n\n" + p2

		chunks, err := Split(text, 200, 20, DefaultSeparators)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, strings.TrimSpace(p1), chunks[0].Content)
		assert.Equal(t, strings.TrimSpace(p2), chunks[1].Content)
	})

	t.Run("Unsplittable Token Kept Whole", func(t *testing.T) {
		token := strings.Repeat("x", 600)
		chunks, err := Split("short "+token, 500, 50, []string{" "})
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "short", chunks[0].Content)
		assert.Equal(t, token, chunks[1].Content)
	})

	t.Run("Counts Runes Not Bytes", func(t *testing.T) {
		text := strings.Repeat("도면", 150)
		chunks, err := Split(text, 100, 10, DefaultSeparators)
		require.NoError(t, err)
		for _, c := range chunks {
			assert.True(t, utf8.ValidString(c.Content))
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 100)
		}
		assert.Len(t, chunks, 4)
	})

	t.Run("Deterministic", func(t *testing.T) {
		text := numberedWords(500) + "\n\n" + numberedWords(37)
		a, err := Split(text, 300, 60, DefaultSeparators)
		require.NoError(t, err)
		b, err := Split(text, 300, 60, DefaultSeparators)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("Nil Separators Use Defaults", func(t *testing.T) {
		text := numberedWords(200)
		a, err := Split(text, 300, 60, nil)
		require.NoError(t, err)
		b, err := NewSplitter(300, 60).Split(text)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestSplit_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
	}{
		{"Empty Text", "", 500, 100},
		{"Whitespace Text", " \n\t ", 500, 100},
		{"Zero Chunk Size", "abc", 0, 0},
		{"Negative Chunk Size", "abc", -1, 0},
		{"Negative Overlap", "abc", 10, -1},
		{"Overlap Equals Size", "abc", 10, 10},
		{"Overlap Exceeds Size", "abc", 10, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(tt.text, tt.chunkSize, tt.overlap, DefaultSeparators)
			assert.Nil(t, chunks)
			assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
		})
	}
}
