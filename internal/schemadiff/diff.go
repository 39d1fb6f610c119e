// Package schemadiff compares JSON payloads field by field and renders the prompts used to
// explain the resulting changes.
package schemadiff

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
)

// ErrInvalidJSON is returned by DiffJSON when either side does not decode.
var ErrInvalidJSON = errors.New("invalid JSON document")

// JSON type names recorded for each path.
const (
	TypeNull    = "null"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// shape is the ordered path -> type map of one document.
type shape struct {
	order []string
	types map[string]string
}

func newShape() *shape {
	return &shape{types: make(map[string]string)}
}

func (s *shape) record(path, typ string) {
	if _, ok := s.types[path]; !ok {
		s.order = append(s.order, path)
	}
	s.types[path] = typ
}

// Diff compares two decoded JSON documents. Every non-root path is typed; objects are walked
// key by key in sorted order and an array whose first element is an object is walked as
// "path[]". Removals and type changes are reported in the old document's walk order, followed by
// additions in the new document's walk order.
func Diff(oldDoc, newDoc any) models.DiffReport {
	a, b := newShape(), newShape()
	walk(oldDoc, "", a)
	walk(newDoc, "", b)

	report := models.DiffReport{Changes: []models.Change{}}
	for _, p := range a.order {
		oldType := a.types[p]
		newType, ok := b.types[p]
		switch {
		case !ok:
			report.Changes = append(report.Changes, models.Change{Kind: models.ChangeRemoved, Path: p, OldType: oldType})
		case oldType != newType:
			report.Changes = append(report.Changes, models.Change{Kind: models.ChangeTypeChanged, Path: p, OldType: oldType, NewType: newType})
		}
	}
	for _, p := range b.order {
		if _, ok := a.types[p]; !ok {
			report.Changes = append(report.Changes, models.Change{Kind: models.ChangeAdded, Path: p, NewType: b.types[p]})
		}
	}
	report.Summary = Summarize(report.Changes)
	return report
}

// DiffJSON decodes both documents and diffs them.
func DiffJSON(oldRaw, newRaw []byte) (models.DiffReport, error) {
	var oldDoc, newDoc any
	if err := json.Unmarshal(oldRaw, &oldDoc); err != nil {
		return models.DiffReport{}, fmt.Errorf("%w: old: %v", ErrInvalidJSON, err)
	}
	if err := json.Unmarshal(newRaw, &newDoc); err != nil {
		return models.DiffReport{}, fmt.Errorf("%w: new: %v", ErrInvalidJSON, err)
	}
	return Diff(oldDoc, newDoc), nil
}

// Summarize counts changes by kind. Risky is everything that is not an addition.
func Summarize(changes []models.Change) models.DiffSummary {
	var s models.DiffSummary
	for _, c := range changes {
		switch c.Kind {
		case models.ChangeAdded:
			s.Added++
		case models.ChangeRemoved:
			s.Removed++
		}
		if c.Kind != models.ChangeAdded {
			s.Risky++
		}
	}
	return s
}

func walk(v any, base string, out *shape) {
	typ := TypeOf(v)
	if base != "" {
		out.record(base, typ)
	}
	switch typ {
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if base != "" {
				child = base + "." + k
			}
			walk(obj[k], child, out)
		}
	case TypeArray:
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			return
		}
		// A null first element counts as an object element here, matching how browsers type it.
		switch arr[0].(type) {
		case map[string]any, nil:
			walk(arr[0], base+"[]", out)
		}
	}
}

// TypeOf names the JSON type of a decoded value.
func TypeOf(v any) string {
	switch v.(type) {
	case nil:
		return TypeNull
	case map[string]any:
		return TypeObject
	case []any:
		return TypeArray
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case float64, float32, int, int64, int32, json.Number:
		return TypeNumber
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	default:
		return TypeObject
	}
}
