package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

// Media types the loader accepts.
var supportedMediaTypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"text/markdown":   true,
	"image/png":       true,
	"image/jpeg":      true,
}

// charsPerPage approximates one page of plain text.
const charsPerPage = 3000

// FileLoader validates documents on the local filesystem. Deterministic
// for the same document and side-effect-free beyond read I/O.
type FileLoader struct{}

// NewFileLoader creates a filesystem-backed document loader.
func NewFileLoader() *FileLoader { return &FileLoader{} }

// LoadAndValidate confirms the document exists, is non-empty, and carries
// a supported media type, and estimates its page count.
func (l *FileLoader) LoadAndValidate(_ context.Context, ref state.DocumentRef) (state.DocumentInfo, error) {
	if !supportedMediaTypes[ref.MediaType] {
		return state.DocumentInfo{}, fmt.Errorf("unsupported media type %q", ref.MediaType)
	}

	raw, err := os.ReadFile(ref.Location)
	if err != nil {
		return state.DocumentInfo{}, fmt.Errorf("read %s: %w", ref.Location, err)
	}
	if len(raw) == 0 {
		return state.DocumentInfo{}, fmt.Errorf("document %s is empty", ref.Location)
	}

	return state.DocumentInfo{
		PageCount:  estimatePages(ref.MediaType, raw),
		IsReadable: true,
	}, nil
}

// estimatePages counts PDF page objects, or falls back to a size-based
// estimate. Images count as one page.
func estimatePages(mediaType string, raw []byte) int {
	switch mediaType {
	case "application/pdf":
		n := bytes.Count(raw, []byte("/Type /Page")) - bytes.Count(raw, []byte("/Type /Pages"))
		if n < 1 {
			n = 1
		}
		return n
	case "image/png", "image/jpeg":
		return 1
	default:
		n := (len(raw) + charsPerPage - 1) / charsPerPage
		if n < 1 {
			n = 1
		}
		return n
	}
}

// readDocumentText returns the document's textual content for prompting.
// PDFs and images pass through as-is; real OCR lives outside this module,
// so binary formats degrade to whatever printable text they contain.
func readDocumentText(ref state.DocumentRef) (string, error) {
	raw, err := os.ReadFile(ref.Location)
	if err != nil {
		return "", err
	}
	text := string(raw)
	if ref.MediaType == "application/pdf" {
		text = printableRuns(text)
	}
	return text, nil
}

// printableRuns keeps runs of printable ASCII, dropping binary noise.
func printableRuns(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || (r >= ' ' && r < 127) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
