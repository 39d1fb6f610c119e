package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskUsage(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	write(t, filepath.Join(data, "index.bin"), "12345")
	write(t, filepath.Join(data, "meta.json"), "abc")
	db := filepath.Join(data, "history.db")
	write(t, db, "xy")
	external := filepath.Join(dir, "elsewhere.db")
	write(t, external, "zzzz")

	tests := []struct {
		name  string
		paths []string
		total int64
	}{
		{"single file", []string{external}, 4},
		{"directory", []string{data}, 10},
		{"nested path counted once", []string{data, db}, 10},
		{"disjoint paths add up", []string{data, external}, 14},
		{"missing and empty skipped", []string{"", filepath.Join(dir, "nope"), external}, 4},
		{"duplicates counted once", []string{external, external + string(filepath.Separator)}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := DiskUsage(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if u.Total != tt.total {
				t.Errorf("Total = %d, want %d (paths %v)", u.Total, tt.total, u.Paths)
			}
		})
	}
}

func TestDiskUsage_breakdown(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	db := filepath.Join(data, "history.db")
	write(t, db, "xyz")

	u, err := DiskUsage(data, db)
	if err != nil {
		t.Fatal(err)
	}
	if u.Paths[data] != 3 {
		t.Errorf("data dir = %d, want 3", u.Paths[data])
	}
	if n, ok := u.Paths[db]; !ok || n != 0 {
		t.Errorf("nested db should be listed with 0, got %d (present %v)", n, ok)
	}
}
