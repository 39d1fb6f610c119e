package schemadiff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestDiff(t *testing.T) {
	oldDoc := decode(t, `{"id": 1, "name": "Ada", "tags": ["a"], "address": {"city": "X", "zip": "1"}}`)
	newDoc := decode(t, `{"id": "u-1", "name": "Ada", "tags": ["a"], "address": {"city": "X"}, "email": "a@x"}`)

	report := Diff(oldDoc, newDoc)

	want := []models.Change{
		{Kind: models.ChangeRemoved, Path: "address.zip", OldType: "string"},
		{Kind: models.ChangeTypeChanged, Path: "id", OldType: "number", NewType: "string"},
		{Kind: models.ChangeAdded, Path: "email", NewType: "string"},
	}
	assert.Equal(t, want, report.Changes)
	assert.Equal(t, models.DiffSummary{Added: 1, Removed: 1, Risky: 2}, report.Summary)
}

func TestDiff_ArrayOfObjects(t *testing.T) {
	oldDoc := decode(t, `{"items": [{"sku": "a", "qty": 1}]}`)
	newDoc := decode(t, `{"items": [{"sku": "a", "qty": "1", "price": 2.5}]}`)

	report := Diff(oldDoc, newDoc)

	want := []models.Change{
		{Kind: models.ChangeTypeChanged, Path: "items[].qty", OldType: "number", NewType: "string"},
		{Kind: models.ChangeAdded, Path: "items[].price", NewType: "number"},
	}
	assert.Equal(t, want, report.Changes)
}

func TestDiff_ContainerTypeChange(t *testing.T) {
	report := Diff(decode(t, `{"owner": "bob"}`), decode(t, `{"owner": {"name": "bob"}}`))

	want := []models.Change{
		{Kind: models.ChangeTypeChanged, Path: "owner", OldType: "string", NewType: "object"},
		{Kind: models.ChangeAdded, Path: "owner.name", NewType: "string"},
	}
	assert.Equal(t, want, report.Changes)
	assert.Equal(t, 1, report.Summary.Risky)
}

func TestDiff_Identical(t *testing.T) {
	doc := decode(t, `{"a": {"b": [1, 2]}, "c": null}`)
	report := Diff(doc, doc)
	assert.NotNil(t, report.Changes)
	assert.Empty(t, report.Changes)
	assert.Equal(t, models.DiffSummary{}, report.Summary)
}

func TestDiff_ScalarsOnlyHaveNoPaths(t *testing.T) {
	report := Diff(decode(t, `1`), decode(t, `"one"`))
	assert.Empty(t, report.Changes)
}

func TestDiff_NullFirstElement(t *testing.T) {
	report := Diff(decode(t, `{"xs": [null]}`), decode(t, `{"xs": []}`))
	assert.Equal(t, []models.Change{{Kind: models.ChangeRemoved, Path: "xs[]", OldType: "null"}}, report.Changes)
}

func TestDiffJSON(t *testing.T) {
	report, err := DiffJSON([]byte(`{"a":1}`), []byte(`{"a":1,"b":true}`))
	require.NoError(t, err)
	assert.Equal(t, []models.Change{{Kind: models.ChangeAdded, Path: "b", NewType: "boolean"}}, report.Changes)

	_, err = DiffJSON([]byte(`{`), []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, TypeNull, TypeOf(nil))
	assert.Equal(t, TypeNumber, TypeOf(3))
	assert.Equal(t, TypeNumber, TypeOf(json.Number("3")))
	assert.Equal(t, TypeArray, TypeOf([]string{"a"}))
	assert.Equal(t, TypeBoolean, TypeOf(false))
	assert.Equal(t, TypeObject, TypeOf(map[string]any{}))
}
