package service

import (
	"strings"

	"github.com/tieubaoca/rag-assistant/types"
	"github.com/tieubaoca/rag-assistant/utils"
)

// Leading snippet lengths tried in order, longest first.
var snippetLengths = []int{200, 160, 120, 80}

const minSnippetLength = 40

type indexedPage struct {
	number int
	text   string
}

// PageIndex guesses the page a chunk came from by locating a leading
// snippet of the chunk in the normalized page texts.
type PageIndex struct {
	pages []indexedPage
}

func NewPageIndex(pages []types.Page) *PageIndex {
	idx := &PageIndex{pages: make([]indexedPage, 0, len(pages))}
	for _, p := range pages {
		idx.pages = append(idx.pages, indexedPage{number: p.Number, text: normalizeForMatch(p.Text)})
	}
	return idx
}

// Attribute returns the first page, in document order, containing the
// longest leading snippet of chunkText that can be found. It reports false
// when no snippet of at least 40 runes matches.
func (idx *PageIndex) Attribute(chunkText string) (int, bool) {
	normalized := []rune(normalizeForMatch(chunkText))
	tried := -1
	for _, length := range snippetLengths {
		if length > len(normalized) {
			length = len(normalized)
		}
		if length < minSnippetLength {
			break
		}
		if length == tried {
			continue
		}
		tried = length

		snippet := string(normalized[:length])
		for _, page := range idx.pages {
			if strings.Contains(page.text, snippet) {
				return page.number, true
			}
		}
	}
	return 0, false
}

// AttributePages sets Page on every chunk, using 0 when no page matches.
func (idx *PageIndex) AttributePages(chunks []types.Chunk) {
	for i := range chunks {
		page, _ := idx.Attribute(chunks[i].Text)
		chunks[i].Page = &page
	}
}

func normalizeForMatch(s string) string {
	return utils.CollapseSpaces(utils.StripDiacritics(strings.ToLower(s)))
}
