package models

// ChangeKind classifies a schema change.
type ChangeKind string

const (
	ChangeRemoved     ChangeKind = "REMOVED_FIELD"
	ChangeAdded       ChangeKind = "ADDED_FIELD"
	ChangeTypeChanged ChangeKind = "TYPE_CHANGED"
)

// Change is a single difference between two JSON schemas (or sample payloads) at a field path.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	Path    string     `json:"path"`
	OldType string     `json:"oldType,omitempty"`
	NewType string     `json:"newType,omitempty"`
}

// DiffSummary counts changes. Risky counts every change that is not an addition.
type DiffSummary struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Risky   int `json:"risky"`
}

// DiffReport is the result of comparing two JSON documents.
type DiffReport struct {
	Changes []Change    `json:"changes"`
	Summary DiffSummary `json:"summary"`
}
