package bills

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DocumentFormat enumerates supported bill file formats.
type DocumentFormat string

const (
	FormatUnknown  DocumentFormat = ""
	FormatPDF      DocumentFormat = "pdf"
	FormatText     DocumentFormat = "text"
	FormatMarkdown DocumentFormat = "markdown"
)

// pageSeparator joins the text of consecutive PDF pages.
const pageSeparator = "\n\n"

// DetectFormat infers a document format from the path's extension.
func DetectFormat(path string) DocumentFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".txt":
		return FormatText
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatUnknown
	}
}

func extractText(path string) (string, error) {
	switch DetectFormat(path) {
	case FormatPDF:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read pdf: %w", err)
		}
		return extractPDF(data)
	case FormatText, FormatMarkdown:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read text: %w", err)
		}
		return normalizePlainText(string(data)), nil
	default:
		return "", fmt.Errorf("unsupported bill format: %s", filepath.Ext(path))
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		pages = append(pages, normalizePlainText(text))
	}

	return strings.Join(pages, pageSeparator), nil
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
