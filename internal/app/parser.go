package app

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Parser turns uploaded documents into plain text. PDF pages without an
// extractable text layer fall back to OCR when an engine is configured.
type Parser struct {
	ocr *OCREngine
}

func NewParser(ocr *OCREngine) *Parser {
	return &Parser{ocr: ocr}
}

// ExtractText extracts the full text of the document at path. The file
// type is decided by the original filename's extension.
func (p *Parser) ExtractText(filename, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return p.extractPDF(path)
	case ".html", ".htm":
		return extractHTMLFile(path)
	case ".txt", ".md", "":
		return extractPlainText(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
}

func (p *Parser) extractPDF(path string) (string, error) {
	text, err := p.extractPDFPages(path)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if fallback, ferr := extractPDFWithPdftotext(path); ferr == nil && strings.TrimSpace(fallback) != "" {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return "", fmt.Errorf("no text extracted from PDF")
}

// extractPDFPages walks the PDF page by page. Pages with no text layer go
// through OCR; a failed OCR pass leaves a placeholder marker so downstream
// consumers see the gap instead of silently losing the page.
func (p *Parser) extractPDFPages(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	totalPages := reader.NumPage()
	var pages []string
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		text = normalizeText(text)
		if text == "" && p.ocr != nil {
			ocrText, ocrErr := p.ocr.RecognizePage(path, i)
			if ocrErr != nil {
				slog.Warn("ocr page failed", "page", i, "error", ocrErr)
				text = fmt.Sprintf("[OCR failed for page %d: %v]", i, ocrErr)
			} else {
				text = normalizeText(ocrText)
			}
		}
		if text == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("--- Page %d ---\n%s", i, text))
	}
	return strings.Join(pages, "\n\n"), nil
}

// extractPDFWithPdftotext shells out to poppler's pdftotext, which handles
// some malformed PDFs the Go library cannot.
func extractPDFWithPdftotext(path string) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not found: %w", err)
	}
	cmd := exec.Command("pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return normalizeText(string(output)), nil
}

func extractHTMLFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return normalizeText(extractHTMLText(doc)), nil
}

func extractPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return normalizeText(string(data)), nil
}

func extractHTMLText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return buf.String()
}
