package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ParsaBazrpash/MirrorAPI/internal/config"
	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
	"github.com/ParsaBazrpash/MirrorAPI/internal/retrieval"
)

// offlineConfig writes a config that never reaches the network.
func offlineConfig(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	content := `
storage:
  data_dir: "./data"
ingest:
  folder: "./docs"
chunking:
  chunk_size: 10
  chunk_overlap: 3
embedding:
  fallback_dimensions: 64
  remote:
    provider: "none"
generation:
  disabled: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"email"}, "email"},
		{"multiple words", []string{"why", "was", "email", "removed"}, "why was email removed"},
		{"single quoted phrase", []string{"email removed"}, "email removed"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_explicitPath(t *testing.T) {
	dir, path := offlineConfig(t)
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != path {
		t.Errorf("resolved = %s, want %s", resolved, path)
	}
	if cfg.Storage.DataDir != filepath.Join(dir, "data") {
		t.Errorf("data_dir = %s", cfg.Storage.DataDir)
	}
	if !cfg.Generation.Disabled || cfg.Embedding.Remote.Provider != config.ProviderNone {
		t.Errorf("offline settings not loaded: %+v", cfg.Generation)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestNewRootCmd_subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"serve", "ingest", "query", "chat", "explain", "diff", "status", "init", "version"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"config", "env", "debug", "json"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag %q", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version", "--env", filepath.Join(t.TempDir(), ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "mirrorapi version "+version) {
		t.Errorf("got %q", out)
	}
}

func TestDiffCmd(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "v1.json")
	newPath := filepath.Join(dir, "v2.json")
	if err := os.WriteFile(oldPath, []byte(`{"id":1,"user":{"name":"a"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newPath, []byte(`{"id":"1","user":{"email":"x"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "diff", oldPath, newPath, "--json", "--env", filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatal(err)
	}
	var report models.DiffReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if report.Summary.Added != 1 || report.Summary.Removed != 1 || report.Summary.Risky != 2 {
		t.Errorf("summary: %+v", report.Summary)
	}
}

func TestDiffCmd_invalidJSON(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "v1.json")
	newPath := filepath.Join(dir, "v2.json")
	_ = os.WriteFile(oldPath, []byte(`{`), 0600)
	_ = os.WriteFile(newPath, []byte(`{}`), 0600)
	if _, err := run(t, "diff", oldPath, newPath, "--env", filepath.Join(dir, ".env")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "config.yaml")
	if _, err := run(t, "init", "--config", path, "--env", filepath.Join(dir, ".env")); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8000 || cfg.Retrieval.TopK != 5 {
		t.Errorf("written config: port=%d top_k=%d", cfg.Server.Port, cfg.Retrieval.TopK)
	}
	if _, err := run(t, "init", "--config", path, "--env", filepath.Join(dir, ".env")); err == nil {
		t.Error("init should refuse to overwrite an existing config")
	}
}

func TestIngestQueryStatus(t *testing.T) {
	dir, path := offlineConfig(t)
	env := filepath.Join(dir, ".env")
	docs := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docs, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "pets.md"), []byte("the cat sat. the dog ran."), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "query", "cat", "--config", path, "--env", env); err == nil || !strings.Contains(err.Error(), retrieval.IndexNotFoundMessage) {
		t.Errorf("query before ingest: got %v", err)
	}

	out, err := run(t, "ingest", "--config", path, "--env", env, "--json")
	if err != nil {
		t.Fatal(err)
	}
	var res models.IngestResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("ingest output: %v\n%s", err, out)
	}
	if !res.OK || res.Chunks != 4 || res.Sources != 1 {
		t.Errorf("ingest result: %+v", res)
	}

	out, err = run(t, "query", "cat", "-k", "2", "--config", path, "--env", env)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `Found 2 results for "cat"`) {
		t.Errorf("query output:\n%s", out)
	}

	out, err = run(t, "status", "--config", path, "--env", env)
	if err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"Index: 4 chunks, 64 dimensions (memory)", "Last ingest: ok"} {
		if !strings.Contains(out, sub) {
			t.Errorf("status output missing %q:\n%s", sub, out)
		}
	}
}

func TestChatCmd_templateAnswer(t *testing.T) {
	dir, path := offlineConfig(t)
	env := filepath.Join(dir, ".env")
	file := filepath.Join(dir, "changes.txt")
	if err := os.WriteFile(file, []byte(`REMOVED_FIELD "user.name"`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "ingest", file, "--config", path, "--env", env); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "chat", "what", "changed", "--config", path, "--env", env, "--json")
	if err != nil {
		t.Fatal(err)
	}
	var resp models.ChatResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("chat output: %v\n%s", err, out)
	}
	if !resp.OK || resp.Answer == "" || len(resp.Contexts) == 0 {
		t.Errorf("chat response: %+v", resp)
	}
}
