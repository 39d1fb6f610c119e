// Package models defines the data structures shared across ingestion, retrieval, and the API.
package models

// SourceDocument is one unit of ingest input. For folder ingests ID is the path relative to the
// folder; for uploads it is the file name.
type SourceDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Chunk is a contiguous window of a source document. ID has the form "<source_id>#<n>" where n
// counts only the windows that survived trimming. Chunks are immutable once built.
type Chunk struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
