package vector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// checkFlatIndex runs the behavior every VectorIndex backend must share.
func checkFlatIndex(t *testing.T, typ IndexType) {
	t.Helper()
	ctx := context.Background()

	t.Run("ranks by inner product with ties in insertion order", func(t *testing.T) {
		idx, err := typ.NewIndex(2)
		if err != nil {
			t.Fatal(err)
		}
		defer idx.Close()
		vecs := [][]float32{{0.6, 0.8}, {1, 0}, {0.6, 0.8}, {0, 1}}
		if err := idx.Add(ctx, []string{"a#0", "a#1", "b#0", "b#1"}, vecs); err != nil {
			t.Fatal(err)
		}
		got, err := idx.Search(ctx, []float32{0.6, 0.8}, 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d results, want 3", len(got))
		}
		if got[0].Position != 0 || got[1].Position != 2 || got[2].Position != 3 {
			t.Errorf("order: %d %d %d, want 0 2 3", got[0].Position, got[1].Position, got[2].Position)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Score > got[i-1].Score {
				t.Errorf("scores not descending at %d", i)
			}
		}
	})

	t.Run("k larger than size returns everything", func(t *testing.T) {
		idx, _ := typ.NewIndex(2)
		defer idx.Close()
		_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
		got, err := idx.Search(ctx, []float32{1, 0}, 50)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Errorf("got %d results, want 1", len(got))
		}
	})

	t.Run("empty index yields no hits", func(t *testing.T) {
		idx, _ := typ.NewIndex(2)
		defer idx.Close()
		got, err := idx.Search(ctx, []float32{1, 0}, 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("got %d results", len(got))
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		if _, err := typ.NewIndex(0); err == nil {
			t.Error("zero dimension accepted")
		}
		idx, _ := typ.NewIndex(3)
		defer idx.Close()
		if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}); err == nil {
			t.Error("short vector accepted")
		}
		if err := idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}}); err == nil {
			t.Error("ids/vectors length mismatch accepted")
		}
		_ = idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}})
		if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
			t.Error("short query accepted")
		}
	})

	t.Run("save then load keeps positions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", typ.BlobFileName())
		idx, _ := typ.NewIndex(3)
		defer idx.Close()
		if err := idx.Add(ctx, []string{"p#0", "p#1", "p#2"}, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}); err != nil {
			t.Fatal(err)
		}
		if err := idx.Save(path); err != nil {
			t.Fatalf("Save: %v", err)
		}

		restored, _ := typ.NewIndex(3)
		defer restored.Close()
		if err := restored.Load(path); err != nil {
			t.Fatalf("Load: %v", err)
		}
		if restored.Size() != 3 {
			t.Errorf("size after load = %d", restored.Size())
		}
		got, err := restored.Search(ctx, []float32{0, 1, 0}, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Position != 1 {
			t.Errorf("search after load: %+v", got)
		}
	})

	t.Run("missing blob wraps ErrNotExist", func(t *testing.T) {
		idx, _ := typ.NewIndex(2)
		defer idx.Close()
		err := idx.Load(filepath.Join(t.TempDir(), typ.BlobFileName()))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v", err)
		}
		if idx.Size() != 0 {
			t.Errorf("failed load changed size to %d", idx.Size())
		}
	})
}

func TestMemoryIndex_flatBehavior(t *testing.T) {
	checkFlatIndex(t, IndexTypeMemory)
}
