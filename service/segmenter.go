package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tieubaoca/rag-assistant/types"
	"github.com/tieubaoca/rag-assistant/utils"
)

const (
	DEFAULT_CHUNK_SIZE    = 1000
	DEFAULT_CHUNK_OVERLAP = 150
)

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	// "2.3 Mercado", "1.2.1. Resultados"
	numberedHeader = regexp.MustCompile(`^\d+(\.\d+)+\.?\s+\S`)
	// "RESUMEN EJECUTIVO", "IVA 21%", "ANEXO (I)"
	capsHeader = regexp.MustCompile(`^[A-ZÁÉÍÓÚÜÑ0-9 ,.\-:%()]+$`)
)

// Segmenter splits document text into overlapping chunks along paragraph
// and sentence boundaries.
type Segmenter struct {
	chunkSize int
	overlap   int
}

// NewSegmenter validates the configuration. Zero values fall back to the
// defaults; an overlap that is negative or not smaller than the chunk size
// is rejected.
func NewSegmenter(cfg types.DocumentServiceConfig) (*Segmenter, error) {
	chunkSize := cfg.MaxChunkSize
	if chunkSize == 0 {
		chunkSize = DEFAULT_CHUNK_SIZE
	}
	overlap := cfg.OverlapSize
	if cfg.MaxChunkSize == 0 && cfg.OverlapSize == 0 {
		overlap = DEFAULT_CHUNK_OVERLAP
	}
	if chunkSize < 0 || overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", types.ErrInvalidConfig, overlap, chunkSize)
	}
	return &Segmenter{chunkSize: chunkSize, overlap: overlap}, nil
}

func (s *Segmenter) ChunkSize() int { return s.chunkSize }
func (s *Segmenter) Overlap() int   { return s.overlap }

// Segment returns the chunks of text with 0-based sequential ids. An empty
// or blank text yields no chunks.
func (s *Segmenter) Segment(text string) []types.Chunk {
	return s.Pack(SentenceUnits(text))
}

// SentenceUnits splits text into the units Pack fills chunks with. Blocks
// are separated by blank lines. Inside a block every line that reads as a
// header is a unit of its own; the remaining lines are joined, collapsed
// and split into sentences.
func SentenceUnits(text string) []string {
	var units []string
	for _, block := range paragraphBreak.Split(text, -1) {
		var body []string
		flush := func() {
			if paragraph := utils.CollapseSpaces(strings.Join(body, " ")); paragraph != "" {
				units = append(units, SplitSentences(paragraph)...)
			}
			body = body[:0]
		}
		for _, line := range strings.Split(block, "\n") {
			line = utils.CollapseSpaces(line)
			if line == "" {
				continue
			}
			if IsHeader(line) {
				flush()
				units = append(units, line)
				continue
			}
			body = append(body, line)
		}
		flush()
	}
	return units
}

// IsHeader reports whether line reads as a heading: longer than three
// characters, not plain lower-case prose, and either numbered "x.y" style
// or written in capitals.
func IsHeader(line string) bool {
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= 3 {
		return false
	}
	if strings.ToLower(line) == line && !strings.ContainsFunc(line, isASCIIDigit) {
		return false
	}
	return numberedHeader.MatchString(line) || capsHeader.MatchString(line)
}

// SplitSentences breaks a paragraph after '.', '!' or '?' when the next
// non-space character is an upper-case letter or a digit. Fragments that
// start with a bullet are joined to the previous sentence.
func SplitSentences(paragraph string) []string {
	runes := []rune(paragraph)
	var fragments []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j == len(runes) || !startsSentence(runes[j]) {
			continue
		}
		fragments = appendFragment(fragments, string(runes[start:i+1]))
		start = j
		i = j - 1
	}
	fragments = appendFragment(fragments, string(runes[start:]))
	return MergeBullets(fragments)
}

// MergeBullets joins fragments beginning with "•" or "-" onto the fragment before them.
func MergeBullets(fragments []string) []string {
	var out []string
	for _, f := range fragments {
		if len(out) > 0 && (strings.HasPrefix(f, "•") || strings.HasPrefix(f, "-")) {
			out[len(out)-1] += " " + f
			continue
		}
		out = append(out, f)
	}
	return out
}

// Pack greedily fills chunks with whole sentences. On overflow the current
// chunk is emitted and up to overlap of its trailing runes seed the next
// one, as many as fit next to the incoming sentence. Sentences longer than a
// chunk are hard-split into windows advancing by chunkSize-overlap.
func (s *Segmenter) Pack(sentences []string) []types.Chunk {
	p := &packer{size: s.chunkSize, overlap: s.overlap}
	for _, sentence := range sentences {
		n := utf8.RuneCountInString(sentence)
		if n == 0 {
			continue
		}
		if p.length+n+1 <= p.size {
			p.add(sentence, n)
			continue
		}

		carry := p.flush()
		if n > p.size {
			p.hardSplit(sentence)
			continue
		}
		if p.overlap > 0 {
			p.seed(lastRunes(carry, min(p.overlap, p.size-n-1)))
		}
		p.add(sentence, n)
	}
	p.flush()
	return p.chunks
}

type packer struct {
	size    int
	overlap int

	parts  []string
	length int
	// fresh is false while the buffer holds only carried overlap.
	fresh  bool
	chunks []types.Chunk
}

func (p *packer) add(sentence string, n int) {
	p.parts = append(p.parts, sentence)
	p.length += n + 1
	p.fresh = true
}

func (p *packer) reset() {
	p.parts = p.parts[:0]
	p.length = 0
	p.fresh = false
}

func (p *packer) seed(tail string) {
	p.reset()
	if tail == "" {
		return
	}
	p.parts = append(p.parts, tail)
	p.length = utf8.RuneCountInString(tail)
}

func (p *packer) emit(text string) {
	p.chunks = append(p.chunks, types.Chunk{ID: len(p.chunks), Text: text})
}

// flush emits the buffer when it holds new text and empties it. It returns
// the text the next chunk may overlap with.
func (p *packer) flush() string {
	text := strings.TrimSpace(strings.Join(p.parts, " "))
	if p.fresh && text != "" {
		p.emit(text)
	}
	p.reset()
	return text
}

func (p *packer) hardSplit(sentence string) {
	runes := []rune(sentence)
	step := p.size - p.overlap
	for i := 0; i < len(runes); i += step {
		end := i + p.size
		if end > len(runes) {
			end = len(runes)
		}
		p.emit(string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	p.seed(lastRunes(sentence, p.overlap))
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func startsSentence(r rune) bool {
	if (r >= 'A' && r <= 'Z') || isASCIIDigit(r) {
		return true
	}
	return strings.ContainsRune("ÁÉÍÓÚÜÑ", r)
}

func appendFragment(fragments []string, f string) []string {
	f = strings.TrimSpace(f)
	if f == "" {
		return fragments
	}
	return append(fragments, f)
}
