package poller

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ExtractionFailedPlaceholder is substituted for the document body when
// text extraction fails, so composition can still proceed with the
// structured fields.
const ExtractionFailedPlaceholder = "[extraction failed]"

// maxBodyRunes caps extracted document text before it reaches the composer.
const maxBodyRunes = 8000

// extractDocumentText turns a downloaded document body into plain text.
// FNet serves a mix of PDFs and XML/HTML payloads; anything unrecognized is
// treated as markup and tag-stripped.
func extractDocumentText(raw []byte) string {
	if len(raw) == 0 {
		return ExtractionFailedPlaceholder
	}

	var text string
	if isPDF(raw) {
		text = extractPDFText(raw)
	} else {
		text = stripTags(string(raw))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ExtractionFailedPlaceholder
	}

	runes := []rune(text)
	if len(runes) > maxBodyRunes {
		text = string(runes[:maxBodyRunes])
	}
	return text
}

func isPDF(raw []byte) bool {
	return len(raw) >= 4 && string(raw[:4]) == "%PDF"
}

// extractPDFText extracts text content using pdfcpu. pdfcpu works on files,
// so the body goes through a temp file and the per-page content dumps are
// concatenated in page order.
func extractPDFText(raw []byte) string {
	tempDir, err := os.MkdirTemp("", "fii-alerts-pdf")
	if err != nil {
		return ExtractionFailedPlaceholder
	}
	defer os.RemoveAll(tempDir)

	tempFile := filepath.Join(tempDir, "doc.pdf")
	if err := os.WriteFile(tempFile, raw, 0644); err != nil {
		return ExtractionFailedPlaceholder
	}

	outDir := filepath.Join(tempDir, "pages")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return ExtractionFailedPlaceholder
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return ExtractionFailedPlaceholder
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return ExtractionFailedPlaceholder
	}

	pages := make(map[int]string)
	var pageNums []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var pageNum int
		name := entry.Name()
		if _, err := fmt.Sscanf(name, "page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(name, "Content_page_%d", &pageNum); err != nil {
				continue
			}
		}
		content, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			continue
		}
		pages[pageNum] = string(content)
		pageNums = append(pageNums, pageNum)
	}

	sort.Ints(pageNums)
	var builder strings.Builder
	for _, n := range pageNums {
		builder.WriteString(pages[n])
		builder.WriteString("\n")
	}
	return builder.String()
}

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// stripTags removes XML/HTML tags and collapses whitespace.
func stripTags(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
