package vector

import (
	"context"
	"errors"
	"testing"
)

func TestParseIndexType(t *testing.T) {
	tests := []struct {
		in      string
		want    IndexType
		wantErr bool
	}{
		{"", IndexTypeMemory, false},
		{"memory", IndexTypeMemory, false},
		{" FAISS ", IndexTypeFAISS, false},
		{"hnsw", "", true},
	}
	for _, tt := range tests {
		got, err := ParseIndexType(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownIndexType) {
				t.Errorf("ParseIndexType(%q): want ErrUnknownIndexType, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseIndexType(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestResolveIndexType(t *testing.T) {
	got, downgraded, err := ResolveIndexType("faiss")
	if err != nil {
		t.Fatal(err)
	}
	if IsFAISSAvailable() {
		if got != IndexTypeFAISS || downgraded {
			t.Errorf("with faiss compiled in: got %q downgraded=%v", got, downgraded)
		}
	} else if got != IndexTypeMemory || !downgraded {
		t.Errorf("without faiss: got %q downgraded=%v", got, downgraded)
	}

	if got, downgraded, _ := ResolveIndexType("memory"); got != IndexTypeMemory || downgraded {
		t.Errorf("memory: got %q downgraded=%v", got, downgraded)
	}
	if _, _, err := ResolveIndexType("annoy"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestIndexType_BlobFileName(t *testing.T) {
	for typ, want := range map[IndexType]string{
		IndexTypeMemory: "index.bin",
		"":              "index.bin",
		IndexTypeFAISS:  "index.faiss",
	} {
		if got := typ.BlobFileName(); got != want {
			t.Errorf("%q.BlobFileName() = %q, want %q", typ, got, want)
		}
	}
}

func TestIndexType_NewIndex(t *testing.T) {
	idx, err := IndexTypeMemory.NewIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if err := idx.Add(context.Background(), []string{"doc.md#0"}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 || idx.Dimensions() != 3 || idx.Type() != "memory" {
		t.Errorf("size=%d dim=%d type=%q", idx.Size(), idx.Dimensions(), idx.Type())
	}

	if _, err := IndexTypeMemory.NewIndex(0); err == nil {
		t.Error("expected error for zero dimension")
	}
	if _, err := IndexType("ivf").NewIndex(3); !errors.Is(err, ErrUnknownIndexType) {
		t.Errorf("unknown type: got %v", err)
	}
}

func TestIndexType_NewIndex_faissMatchesAvailability(t *testing.T) {
	idx, err := IndexTypeFAISS.NewIndex(3)
	if !IsFAISSAvailable() {
		if err == nil {
			t.Error("faiss index created without faiss support")
		}
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	idx.Close()
}
