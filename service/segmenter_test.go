package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/rag-assistant/types"
)

func newSegmenter(t *testing.T, size, overlap int) *Segmenter {
	t.Helper()
	s, err := NewSegmenter(types.DocumentServiceConfig{MaxChunkSize: size, OverlapSize: overlap})
	require.NoError(t, err)
	return s
}

func chunkTexts(chunks []types.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestNewSegmenter(t *testing.T) {
	s, err := NewSegmenter(types.DocumentServiceConfig{})
	require.NoError(t, err)
	assert.Equal(t, DEFAULT_CHUNK_SIZE, s.ChunkSize())
	assert.Equal(t, DEFAULT_CHUNK_OVERLAP, s.Overlap())

	s, err = NewSegmenter(types.DocumentServiceConfig{MaxChunkSize: 50, OverlapSize: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Overlap())

	for _, cfg := range []types.DocumentServiceConfig{
		{MaxChunkSize: 100, OverlapSize: 100},
		{MaxChunkSize: 100, OverlapSize: 150},
		{MaxChunkSize: 100, OverlapSize: -1},
		{MaxChunkSize: -5, OverlapSize: 0},
	} {
		_, err := NewSegmenter(cfg)
		assert.ErrorIs(t, err, types.ErrInvalidConfig, "%+v", cfg)
	}
}

func TestIsHeader(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"1.2 INTRODUCCIÓN", true},
		{"RESUMEN EJECUTIVO", true},
		{"2.3 Mercado", true},
		{"1.2.1. Resultados por segmento", true},
		{"ANEXO (I): METODOLOGÍA", true},
		{"IVA 21%", true},
		// Known false positives: acronyms and bare numbers read as headings
		{"OCDE", true},
		{"2025", true},
		{"IVA", false},
		{"Introducción", false},
		{"Capítulo 1", false},
		{"este es un párrafo normal.", false},
		{"El mercado creció un 5%.", false},
		{"1. Primer punto de la lista", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeader(tt.line))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"two sentences", "Hola mundo. Adiós mundo.", []string{"Hola mundo.", "Adiós mundo."}},
		{"decimal number", "Vale 3.5 millones. Sube.", []string{"Vale 3.5 millones.", "Sube."}},
		{"abbreviation before lower case", "Ver art. siguiente.", []string{"Ver art. siguiente."}},
		{"question", "¿Qué pasa? Nada.", []string{"¿Qué pasa?", "Nada."}},
		{"exclamation", "¡Bien! Seguimos.", []string{"¡Bien!", "Seguimos."}},
		{"digit starts sentence", "El año fue bueno. 2025 será mejor.", []string{"El año fue bueno.", "2025 será mejor."}},
		{"accented capital", "Fin. Él dijo.", []string{"Fin.", "Él dijo."}},
		{"no terminator", "Hola mundo", []string{"Hola mundo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}

func TestMergeBullets(t *testing.T) {
	got := MergeBullets([]string{"Lista:", "• uno", "- dos", "Otro punto."})
	assert.Equal(t, []string{"Lista: • uno - dos", "Otro punto."}, got)

	assert.Equal(t, []string{"• solo"}, MergeBullets([]string{"• solo"}))
}

func TestSentenceUnits(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "wrapped lines join",
			text: "Uno\ncontinúa.\n\n  \n\nDos.\n \nTres.",
			want: []string{"Uno continúa.", "Dos.", "Tres."},
		},
		{
			name: "numbered header on its own line",
			text: "1.2 INTRODUCCIÓN\nEl sector creció un 12%. Las series lideran el mercado.",
			want: []string{"1.2 INTRODUCCIÓN", "El sector creció un 12%.", "Las series lideran el mercado."},
		},
		{
			name: "caps header between body lines",
			text: "Fin del apartado.\nRESUMEN EJECUTIVO\nLa taquilla\nsubió.",
			want: []string{"Fin del apartado.", "RESUMEN EJECUTIVO", "La taquilla subió."},
		},
		{
			name: "header paragraph",
			text: "RESUMEN EJECUTIVO\n\nEl sector creció.",
			want: []string{"RESUMEN EJECUTIVO", "El sector creció."},
		},
		{
			name: "blank",
			text: " \n\n ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SentenceUnits(tt.text))
		})
	}
}

func TestSegment_HeaderLineNotMergedWithBody(t *testing.T) {
	s := newSegmenter(t, 40, 5)

	chunks := s.Segment("1.2 INTRODUCCIÓN\nEl sector creció un 12%. Las series lideran el mercado.")

	texts := chunkTexts(chunks)
	require.NotEmpty(t, texts)
	assert.Equal(t, "1.2 INTRODUCCIÓN", texts[0])
	assert.True(t, containsAny(texts, "El sector creció un 12%."), "%q", texts)
	assert.True(t, containsAny(texts, "Las series lideran el mercado."), "%q", texts)
	for _, text := range texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(text), 40)
	}
}

func TestSegment_OverlapScenario(t *testing.T) {
	s := newSegmenter(t, 50, 10)
	text := "Introducción.\n\nEste informe trata del sector audiovisual. Incluye datos de 2025."

	chunks := s.Segment(text)

	assert.Equal(t, []string{
		"Introducción.",
		"ucción. Este informe trata del sector audiovisual.",
		"diovisual. Incluye datos de 2025.",
	}, chunkTexts(chunks))
	for i, c := range chunks {
		assert.Equal(t, i, c.ID)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 50)
	}
}

func TestSegment_HeaderKeptWhole(t *testing.T) {
	s := newSegmenter(t, 200, 20)
	chunks := s.Segment("RESUMEN EJECUTIVO\n\nEl sector creció. Las series lideran.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "RESUMEN EJECUTIVO El sector creció. Las series lideran.", chunks[0].Text)
}

func TestSegment_Empty(t *testing.T) {
	s := newSegmenter(t, 50, 10)
	assert.Empty(t, s.Segment(""))
	assert.Empty(t, s.Segment(" \n\n\t"))
}

func TestSegment_HardSplitsLongSentence(t *testing.T) {
	s := newSegmenter(t, 20, 5)
	long := strings.Repeat("abcdefghij", 5) // 50 runes, no terminator

	chunks := s.Segment(long)

	texts := chunkTexts(chunks)
	assert.Equal(t, []string{
		long[0:20],
		long[15:35],
		long[30:50],
	}, texts)
}

func TestSegment_Properties(t *testing.T) {
	paragraphs := []string{
		"1. INTRODUCCIÓN",
		"El sector audiovisual español facturó 5.000 millones en 2024. La producción de series creció un 12% respecto al año anterior. Las plataformas de streaming concentran la mayor parte de la inversión.",
		"RESUMEN EJECUTIVO",
		"La exhibición cinematográfica recuperó espectadores. Sin embargo, la taquilla sigue por debajo de 2019. ¿Qué factores explican esta evolución? Los precios y la oferta digital.",
		strings.Repeat("palabra ", 60),
	}
	text := strings.Join(paragraphs, "\n\n")

	for _, cfg := range []struct{ size, overlap int }{{50, 10}, {80, 0}, {120, 30}, {300, 60}} {
		s := newSegmenter(t, cfg.size, cfg.overlap)
		chunks := s.Segment(text)
		require.NotEmpty(t, chunks)

		texts := chunkTexts(chunks)
		for i, c := range chunks {
			assert.Equal(t, i, c.ID)
			assert.NotEmpty(t, c.Text)
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), cfg.size, "size=%d chunk %d", cfg.size, i)
		}

		// Sentences that fit appear whole; longer ones are covered by
		// windows from their first rune to their last.
		for _, sentence := range SentenceUnits(text) {
			runes := []rune(sentence)
			if len(runes) <= cfg.size {
				assert.True(t, containsAny(texts, sentence), "size=%d lost %q", cfg.size, sentence)
				continue
			}
			assert.Contains(t, texts, string(runes[:cfg.size]), "size=%d", cfg.size)
			assert.True(t, hasSuffixAny(texts, sentence), "size=%d tail of %q", cfg.size, sentence)
		}
	}
}

func containsAny(texts []string, s string) bool {
	for _, t := range texts {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}

func hasSuffixAny(texts []string, sentence string) bool {
	for _, t := range texts {
		if strings.HasSuffix(sentence, t) {
			return true
		}
	}
	return false
}
