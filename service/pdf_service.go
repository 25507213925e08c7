package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/tieubaoca/rag-assistant/types"
	"go.uber.org/zap"
)

var pdfinfoPages = regexp.MustCompile(`Pages:\s+(\d+)`)

var textReplacements = strings.NewReplacer(
	"\u0000", "", // Null character
	"\ufffd", "", // Unicode replacement character
	"\u001b", "", // Escape character
	"\r", "", // Carriage return
	"\f", "\n", // Form feed to newline
	"\uf8ff", "", // Apple logo
	"‡", "", // Double dagger
	"†", "", // Dagger
)

// PDFService extracts per-page text from PDF files
type PDFService struct {
	logger *zap.Logger
}

func NewPDFService(logger *zap.Logger) *PDFService {
	return &PDFService{logger: logger}
}

// ExtractDocument reads every page of a PDF file.
// Parameters:
//   - filePath: Path to the PDF file
//   - source: Source label stored with the chunks, the file name when empty
//
// Returns:
//   - *types.Document: Pages in order and their text joined by blank lines
//   - error: Error if no page could be read
func (s *PDFService) ExtractDocument(ctx context.Context, filePath, source string) (*types.Document, error) {
	if source == "" {
		source = filepath.Base(filePath)
	}

	pages, err := s.extractWithReader(ctx, filePath)
	if err != nil {
		s.logger.Warn("pdf reader failed, falling back to pdftotext", zap.String("file", filePath), zap.Error(err))
		pages, err = s.extractWithPdftotext(ctx, filePath)
		if err != nil {
			return nil, err
		}
	}

	doc := &types.Document{Source: source, Pages: pages}
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	doc.Text = strings.Join(texts, "\n\n")
	if doc.Text == "" {
		return nil, fmt.Errorf("%w: no text extracted from %s", types.ErrEmptyInput, filePath)
	}
	s.logger.Info("pdf extracted", zap.String("source", source), zap.Int("pages", len(pages)))
	return doc, nil
}

// extractWithReader uses the pure Go reader and asks pdftotext only for
// pages that come back empty.
func (s *PDFService) extractWithReader(ctx context.Context, filePath string) ([]types.Page, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]types.Page, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := r.Page(pageNum)
		text := ""
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				s.logger.Debug("page text failed", zap.Int("page", pageNum), zap.Error(err))
				text = ""
			}
		}
		text = cleanText(text)
		if text == "" {
			// Scanned or oddly encoded page
			if fallback, err := pdftotextPage(ctx, filePath, pageNum); err == nil {
				text = cleanText(fallback)
			}
		}
		pages = append(pages, types.Page{Number: pageNum, Text: text})
	}
	return pages, nil
}

func (s *PDFService) extractWithPdftotext(ctx context.Context, filePath string) ([]types.Page, error) {
	total, err := getNumPages(ctx, filePath)
	if err != nil {
		return nil, err
	}
	pages := make([]types.Page, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		text, err := pdftotextPage(ctx, filePath, pageNum)
		if err != nil {
			s.logger.Warn("failed to extract page", zap.Int("page", pageNum), zap.Error(err))
		}
		pages = append(pages, types.Page{Number: pageNum, Text: cleanText(text)})
	}
	return pages, nil
}

// pdftotextPage extracts text using pdftotext utility
// Parameters:
//   - filePath: Path to the PDF file
//   - pageNumber: Page number to extract text from
//
// Returns:
//   - string: Extracted text
//   - error: Error if extraction fails
func pdftotextPage(ctx context.Context, filePath string, pageNumber int) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-f", strconv.Itoa(pageNumber),
		"-l", strconv.Itoa(pageNumber),
		"-enc", "UTF-8", "-nopgbrk",
		filePath, "-")
	var txtOut bytes.Buffer
	cmd.Stdout = &txtOut

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext page %d: %w", pageNumber, err)
	}
	if trimmed := strings.TrimSpace(txtOut.String()); len(trimmed) > 0 {
		return trimmed, nil
	}
	return "", fmt.Errorf("got nothing at page %d", pageNumber)
}

// getNumPages uses pdfinfo to get the total number of pages in a PDF file
func getNumPages(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("error running pdfinfo: %w", err)
	}

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		if matches := pdfinfoPages.FindStringSubmatch(scanner.Text()); len(matches) == 2 {
			return strconv.Atoi(matches[1])
		}
	}
	return 0, fmt.Errorf("unable to determine page count from pdfinfo")
}

// cleanText drops control and decoration characters but keeps line
// structure, which paragraph splitting relies on.
func cleanText(text string) string {
	return strings.TrimSpace(textReplacements.Replace(text))
}
