package text

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
)

// DefaultSeparators are tried from coarsest to finest granularity. The empty
// separator splits into single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunk is one bounded piece of the source text. Index is 0-based.
type Chunk struct {
	Index   int
	Content string
}

// Splitter holds chunking parameters. The zero value is not usable; build one
// with NewSplitter.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap, Separators: DefaultSeparators}
}

func (s *Splitter) Split(text string) ([]Chunk, error) {
	return Split(text, s.ChunkSize, s.Overlap, s.Separators)
}

// Split cuts text into overlapping chunks of at most chunkSize characters.
// Lengths are counted in runes. A piece that no remaining separator can break
// is kept whole even when it exceeds chunkSize.
func Split(text string, chunkSize, overlap int, separators []string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", apperr.ErrInvalidInput)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", apperr.ErrInvalidInput, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", apperr.ErrInvalidInput, overlap, chunkSize)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}

	r := &recursive{src: []rune(text), size: chunkSize, overlap: overlap}
	spans := r.split(span{0, len(r.src)}, separators)

	chunks := make([]Chunk, 0, len(spans))
	for _, sp := range spans {
		chunks = append(chunks, Chunk{Index: len(chunks), Content: string(r.src[sp.start:sp.end])})
	}
	return chunks, nil
}

// span is a half-open rune range into the source text.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

type recursive struct {
	src     []rune
	size    int
	overlap int
}

func (r *recursive) split(sp span, separators []string) []span {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(string(r.src[sp.start:sp.end]), candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var out, fitting []span
	for _, piece := range r.cut(sp, sep) {
		if piece.len() < r.size {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, r.merge(fitting)...)
			fitting = nil
		}
		if len(rest) == 0 {
			out = r.appendTrimmed(out, piece)
		} else {
			out = append(out, r.split(piece, rest)...)
		}
	}
	if len(fitting) > 0 {
		out = append(out, r.merge(fitting)...)
	}
	return out
}

// cut splits sp at every occurrence of sep, keeping the separator at the
// start of the piece that follows it.
func (r *recursive) cut(sp span, sep string) []span {
	if sep == "" {
		out := make([]span, 0, sp.len())
		for i := sp.start; i < sp.end; i++ {
			out = append(out, span{i, i + 1})
		}
		return out
	}

	needle := []rune(sep)
	var out []span
	prev := sp.start
	for i := sp.start; i+len(needle) <= sp.end; {
		if r.hasAt(i, needle) {
			if i > prev {
				out = append(out, span{prev, i})
			}
			prev = i
			i += len(needle)
			continue
		}
		i++
	}
	if sp.end > prev {
		out = append(out, span{prev, sp.end})
	}
	return out
}

func (r *recursive) hasAt(i int, needle []rune) bool {
	for j, c := range needle {
		if r.src[i+j] != c {
			return false
		}
	}
	return true
}

// merge joins adjacent pieces up to the chunk size and carries up to overlap
// characters of the previous chunk into the next one.
func (r *recursive) merge(pieces []span) []span {
	var docs, current []span
	total := 0
	for _, p := range pieces {
		l := p.len()
		if total+l > r.size && len(current) > 0 {
			docs = r.appendTrimmed(docs, span{current[0].start, current[len(current)-1].end})
			for total > r.overlap || (total+l > r.size && total > 0) {
				total -= current[0].len()
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l
	}
	if len(current) > 0 {
		docs = r.appendTrimmed(docs, span{current[0].start, current[len(current)-1].end})
	}
	return docs
}

func (r *recursive) appendTrimmed(out []span, sp span) []span {
	for sp.start < sp.end && unicode.IsSpace(r.src[sp.start]) {
		sp.start++
	}
	for sp.end > sp.start && unicode.IsSpace(r.src[sp.end-1]) {
		sp.end--
	}
	if sp.len() == 0 {
		return out
	}
	return append(out, sp)
}
