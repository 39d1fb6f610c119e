package models

import "time"

// Hit is a ranked retrieval result.
type Hit struct {
	Score float64 `json:"score"`
	Chunk Chunk   `json:"chunk"`
}

// IngestResult reports the outcome of an ingest. OK is false with a message when the input
// produced no chunks; that is a normal outcome, not an error.
type IngestResult struct {
	OK      bool   `json:"ok"`
	Chunks  int    `json:"chunks,omitempty"`
	Sources int    `json:"sources,omitempty"`
	Message string `json:"msg,omitempty"`
}

// IngestStatus values recorded in the ingest history.
const (
	IngestStatusOK     = "ok"
	IngestStatusEmpty  = "empty"
	IngestStatusFailed = "failed"
)

// IngestRun is one row of the ingest audit log.
type IngestRun struct {
	ID         string    `json:"id" db:"id"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
	Sources    int       `json:"sources" db:"sources"`
	Chunks     int       `json:"chunks" db:"chunks"`
	Dimensions int       `json:"dimensions" db:"dimensions"`
	Strategy   string    `json:"strategy" db:"strategy"`
	Status     string    `json:"status" db:"status"`
	Error      string    `json:"error,omitempty" db:"error"`
}
