// Package indexer turns source files into chunks: it scans folders, extracts text, and splits
// it into overlapping character windows.
package indexer

import (
	"fmt"
	"strings"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
)

const (
	// DefaultChunkSize is the window length in characters.
	DefaultChunkSize = 900
	// DefaultChunkOverlap is how many characters consecutive windows share.
	DefaultChunkOverlap = 150
)

// Chunker splits text into overlapping character windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker. A size <= 0 uses DefaultChunkSize and a negative overlap is
// treated as 0. When overlap >= size the window advances one character at a time.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split returns the trimmed, non-empty windows [i, i+size) for i = 0, step, 2*step, ... while
// i is inside the text. Offsets count characters (runes), not bytes.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if s := strings.TrimSpace(string(runes[i:end])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Chunk splits a source document into chunks with IDs "<sourceID>#<n>".
func (c *Chunker) Chunk(sourceID, text string) []models.Chunk {
	parts := c.Split(text)
	if len(parts) == 0 {
		return nil
	}
	chunks := make([]models.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = models.Chunk{ID: fmt.Sprintf("%s#%d", sourceID, i), Text: p}
	}
	return chunks
}

// ChunkAll chunks every document in order.
func (c *Chunker) ChunkAll(docs []models.SourceDocument) []models.Chunk {
	var all []models.Chunk
	for _, d := range docs {
		all = append(all, c.Chunk(d.ID, d.Text)...)
	}
	return all
}
