// Package extract turns ingestable files into plain text. Plain text formats pass through; office
// and PDF formats are parsed so their text can be chunked like any other document.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned for content that is neither a known format nor valid text.
var ErrUnsupportedFormat = errors.New("unsupported format")

type formatFunc func(content []byte) (string, error)

// Extractor extracts plain text from document files by extension.
type Extractor struct {
	formats map[string]formatFunc
}

// NewExtractor returns an Extractor with every built-in format registered.
func NewExtractor() *Extractor {
	return &Extractor{formats: map[string]formatFunc{
		".txt":  extractPlain,
		".md":   extractPlain,
		".rst":  extractPlain,
		".json": extractPlain,
		".yaml": extractPlain,
		".yml":  extractPlain,
		".pdf":  extractPDF,
		".xlsx": extractSheets,
		".docx": extractDOCX,
		".pptx": extractPPTX,
		".odt":  extractOpenDocument,
		".odp":  extractOpenDocument,
		".ods":  extractOpenDocument,
		".rtf":  extractRTF,
	}}
}

// Supports reports whether ext (with or without the leading dot, any case) has a dedicated parser.
func (e *Extractor) Supports(ext string) bool {
	_, ok := e.formats[normalizeExt(ext)]
	return ok
}

// Extensions returns the registered extensions, sorted.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.formats))
	for ext := range e.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the given extension. Unknown extensions are
// accepted as text when the content is valid UTF-8.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	ext = normalizeExt(ext)
	if fn, ok := e.formats[ext]; ok {
		text, err := fn(content)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		return text, nil
	}
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: %q is not text", ErrUnsupportedFormat, ext)
	}
	return string(content), nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// extractPlain returns content as a string, replacing invalid UTF-8 sequences.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�"), nil
	}
	return string(content), nil
}
