// Package cli provides output helpers for the MirrorAPI command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
	"github.com/ParsaBazrpash/MirrorAPI/internal/retrieval"
	"github.com/ParsaBazrpash/MirrorAPI/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	previewChars  = 200
	contextWords  = 25
	ruleSeparator = "─────────────────────────────────────────────────────────"
)

// hitsOutput is the JSON shape of a query result.
type hitsOutput struct {
	Query string       `json:"query"`
	Hits  []models.Hit `json:"hits"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteHits writes ranked retrieval hits for query.
func WriteHits(w io.Writer, query string, hits []models.Hit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []models.Hit{}
		}
		return writeJSON(w, hitsOutput{Query: query, Hits: hits})
	}
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintln(w, ruleSeparator)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, h.Score)
		fmt.Fprintf(w, "ID: %s\n", h.Chunk.ID)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(h.Chunk.Text, previewChars))
	}
	return nil
}

// WriteChat writes an answer followed by the contexts it cites.
func WriteChat(w io.Writer, resp models.ChatResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n", resp.Answer)
	if len(resp.Contexts) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nSources:")
	for i, c := range resp.Contexts {
		score := 0.0
		if i < len(resp.Scores) {
			score = resp.Scores[i]
		}
		fmt.Fprintf(w, "  [%d] %s (%.4f) %s\n", i+1, c.ID, score, TruncateWords(c.Text, contextWords))
	}
	return nil
}

// WriteExplain writes a schema change explanation and, when present, the model's reasoning.
func WriteExplain(w io.Writer, resp models.GenerateResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if resp.Reasoning != "" {
		fmt.Fprintf(w, "\nReasoning:\n%s\n", resp.Reasoning)
	}
	fmt.Fprintf(w, "\n%s\n", resp.Answer)
	if resp.Model != "" {
		fmt.Fprintf(w, "\n(model: %s)\n", resp.Model)
	}
	return nil
}

// WriteDiff writes a schema diff report.
func WriteDiff(w io.Writer, report models.DiffReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	if len(report.Changes) == 0 {
		fmt.Fprintln(w, "No changes.")
		return nil
	}
	for _, c := range report.Changes {
		switch c.Kind {
		case models.ChangeRemoved:
			fmt.Fprintf(w, "- %-14s %s (%s)\n", c.Kind, c.Path, c.OldType)
		case models.ChangeAdded:
			fmt.Fprintf(w, "+ %-14s %s (%s)\n", c.Kind, c.Path, c.NewType)
		default:
			fmt.Fprintf(w, "~ %-14s %s (%s -> %s)\n", c.Kind, c.Path, c.OldType, c.NewType)
		}
	}
	s := report.Summary
	fmt.Fprintf(w, "\n%d added, %d removed, %d risky\n", s.Added, s.Removed, s.Risky)
	return nil
}

// WriteIngest writes the outcome of an ingest.
func WriteIngest(w io.Writer, result models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	if !result.OK {
		fmt.Fprintln(w, result.Message)
		return nil
	}
	fmt.Fprintf(w, "Indexed %d chunks from %d sources\n", result.Chunks, result.Sources)
	return nil
}

// WriteStatus writes index statistics and the latest ingest run.
func WriteStatus(w io.Writer, st retrieval.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	idx := st.Index
	if !idx.Loaded {
		fmt.Fprintln(w, "Index: not loaded")
	} else {
		fmt.Fprintf(w, "Index: %d chunks, %d dimensions (%s)\n", idx.Chunks, idx.Dimensions, idx.IndexType)
		if idx.BuildID != "" {
			fmt.Fprintf(w, "Build: %s\n", idx.BuildID)
		}
	}
	if st.Strategy != "" {
		fmt.Fprintf(w, "Embedding strategy: %s\n", st.Strategy)
	}
	if run := st.LastIngest; run != nil {
		fmt.Fprintf(w, "Last ingest: %s at %s (%d sources, %d chunks)\n",
			run.Status, run.FinishedAt.Format("2006-01-02 15:04:05"), run.Sources, run.Chunks)
		if run.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", run.Error)
		}
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
