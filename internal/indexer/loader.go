package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ParsaBazrpash/MirrorAPI/internal/extract"
	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
)

// DefaultExtensions are the file types picked up by a folder scan when none are configured.
var DefaultExtensions = []string{".txt", ".md"}

// Loader reads source documents from folders and uploaded files.
type Loader struct {
	extractor  *extract.Extractor
	extensions []string
	logger     *zap.Logger // optional
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets a logger for skipped files and scan progress.
func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithExtensions restricts folder scans to the given extensions (with or without a leading dot).
func WithExtensions(exts []string) LoaderOption {
	return func(ld *Loader) {
		if len(exts) > 0 {
			ld.extensions = exts
		}
	}
}

// NewLoader creates a loader using extractor for format conversion.
func NewLoader(extractor *extract.Extractor, opts ...LoaderOption) *Loader {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	ld := &Loader{
		extractor:  extractor,
		extensions: DefaultExtensions,
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Extensions returns the extensions a folder scan accepts.
func (ld *Loader) Extensions() []string {
	return append([]string(nil), ld.extensions...)
}

// Accepts reports whether path has an extension the loader scans.
func (ld *Loader) Accepts(path string) bool {
	return extensionAllowed(filepath.Ext(path), ld.extensions)
}

// LoadFolder walks dir recursively and returns one document per matching regular file, ordered
// by relative path. Document IDs are slash-separated paths relative to dir. Files that cannot be
// read or extracted are logged and skipped. A missing folder yields no documents.
func (ld *Loader) LoadFolder(ctx context.Context, dir string) ([]models.SourceDocument, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !ld.Accepts(path) {
			return nil
		}
		// Resolve symlinks so only regular files are read.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absDir, err)
	}

	docs := make([]models.SourceDocument, 0, len(paths))
	for _, path := range paths {
		rel, err := filepath.Rel(absDir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		text, err := ld.extractor.Extract(path)
		if err != nil {
			if ld.logger != nil {
				ld.logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		docs = append(docs, models.SourceDocument{ID: filepath.ToSlash(rel), Text: text})
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	if ld.logger != nil {
		ld.logger.Debug("folder loaded", zap.String("dir", absDir), zap.Int("documents", len(docs)))
	}
	return docs, nil
}

// LoadBytes converts an uploaded file to a document. The extension of name selects the format;
// the document ID is the base name.
func (ld *Loader) LoadBytes(name string, content []byte) (models.SourceDocument, error) {
	id := filepath.Base(filepath.ToSlash(name))
	text, err := ld.extractor.ExtractBytes(content, filepath.Ext(name))
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("%s: %w", id, err)
	}
	return models.SourceDocument{ID: id, Text: text}, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
