package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ParsaBazrpash/MirrorAPI/internal/cli"
	"github.com/ParsaBazrpash/MirrorAPI/internal/config"
	"github.com/ParsaBazrpash/MirrorAPI/internal/models"
	"github.com/ParsaBazrpash/MirrorAPI/internal/retrieval"
	"github.com/ParsaBazrpash/MirrorAPI/internal/schemadiff"
	"github.com/ParsaBazrpash/MirrorAPI/internal/server"
	"github.com/ParsaBazrpash/MirrorAPI/internal/vector"
	"github.com/ParsaBazrpash/MirrorAPI/internal/watcher"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watch, _ := cmd.Flags().GetBool("watch")
			if watch || cfg.Ingest.Watch {
				w, err := startWatcher(ctx, cfg, components.Service, logger)
				if err != nil {
					return fmt.Errorf("failed to start watcher: %w", err)
				}
				defer w.Stop()
			}

			srv := server.NewServer(components.Service, cfg, logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().Bool("watch", false, "re-ingest the ingest folder whenever it changes")
	return cmd
}

// startWatcher re-ingests the configured folder after each settled burst of file changes.
func startWatcher(ctx context.Context, cfg *config.Config, svc *retrieval.Service, logger *zap.Logger) (*watcher.Watcher, error) {
	folder := cfg.Ingest.Folder
	w := watcher.NewWatcher(
		folder,
		cfg.Ingest.Extensions,
		cfg.Ingest.RecursiveOrDefault(),
		func(ctx context.Context) {
			res, err := svc.IngestFolder(ctx, folder)
			if err != nil {
				logger.Warn("watch re-ingest failed", zap.String("folder", folder), zap.Error(err))
				return
			}
			logger.Info("watch re-ingest",
				zap.String("folder", folder),
				zap.Bool("ok", res.OK),
				zap.Int("chunks", res.Chunks),
			)
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Ingest.Debounce()),
	)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	logger.Info("watching ingest folder", zap.String("folder", folder))
	return w, nil
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [folder | files...]",
		Short: "Chunk and index a folder or a set of files",
		Long: `Rebuilds the index from a folder (default: the configured ingest folder) or from
the given files. Every ingest replaces the whole index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx := cmd.Context()
			var res models.IngestResult
			switch {
			case len(args) == 0:
				res, err = components.Service.IngestFolder(ctx, cfg.Ingest.Folder)
			case len(args) == 1 && isDir(args[0]):
				res, err = components.Service.IngestFolder(ctx, args[0])
			default:
				uploads, readErr := readUploads(args)
				if readErr != nil {
					return readErr
				}
				res, err = components.Service.IngestUploads(ctx, uploads)
			}
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
			return cli.WriteIngest(cmd.OutOrStdout(), res, outputFormat(cmd))
		},
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func readUploads(paths []string) ([]retrieval.Upload, error) {
	uploads := make([]retrieval.Upload, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		uploads = append(uploads, retrieval.Upload{Name: p, Content: content})
	}
	return uploads, nil
}

// buildQuery joins all positional args with spaces so multi-word queries work the same with or
// without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Show the chunks nearest to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := buildQuery(args)
			if q == "" {
				return models.ErrEmptyQuery
			}
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			topK, _ := cmd.Flags().GetInt("top-k")
			hits, err := components.Service.Query(cmd.Context(), q, topK)
			if err != nil {
				return indexError(err)
			}
			return cli.WriteHits(cmd.OutOrStdout(), q, hits, outputFormat(cmd))
		},
	}
	cmd.Flags().IntP("top-k", "k", 0, "number of chunks (default: retrieval.top_k)")
	return cmd
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			req := models.ChatRequest{Query: buildQuery(args)}
			req.TopK, _ = cmd.Flags().GetInt("top-k")
			req.MaxNewTokens, _ = cmd.Flags().GetInt("max-new-tokens")
			if cmd.Flags().Changed("temperature") {
				t, _ := cmd.Flags().GetFloat64("temperature")
				req.Temperature = &t
			}
			resp, err := components.Service.Chat(cmd.Context(), req)
			if err != nil {
				return indexError(err)
			}
			return cli.WriteChat(cmd.OutOrStdout(), resp, outputFormat(cmd))
		},
	}
	cmd.Flags().IntP("top-k", "k", 0, "number of context chunks (default: retrieval.top_k)")
	cmd.Flags().Int("max-new-tokens", 0, "generation budget (default: generation.max_new_tokens)")
	cmd.Flags().Float64("temperature", 0, "sampling temperature (default: generation.temperature)")
	return cmd
}

// indexError turns a missing index into the message the HTTP API returns.
func indexError(err error) error {
	if errors.Is(err, retrieval.ErrIndexNotFound) {
		return errors.New(retrieval.IndexNotFoundMessage)
	}
	return err
}

func readSchemas(oldPath, newPath string) (oldRaw, newRaw []byte, err error) {
	if oldRaw, err = os.ReadFile(oldPath); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", oldPath, err)
	}
	if newRaw, err = os.ReadFile(newPath); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", newPath, err)
	}
	return oldRaw, newRaw, nil
}

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "List field changes between two JSON documents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldRaw, newRaw, err := readSchemas(args[0], args[1])
			if err != nil {
				return err
			}
			report, err := schemadiff.DiffJSON(oldRaw, newRaw)
			if err != nil {
				return err
			}
			return cli.WriteDiff(cmd.OutOrStdout(), report, outputFormat(cmd))
		},
	}
}

func newExplainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <old.json> <new.json>",
		Short: "Diff two JSON documents and ask the model why the API changed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldRaw, newRaw, err := readSchemas(args[0], args[1])
			if err != nil {
				return err
			}
			report, err := schemadiff.DiffJSON(oldRaw, newRaw)
			if err != nil {
				return err
			}
			req := models.GenerateRequest{Changes: report.Changes}
			req.Query, _ = cmd.Flags().GetString("question")
			// Value lookups only work on object documents.
			if m, ok := decodeObject(oldRaw); ok {
				req.OldSchema = m
			}
			if m, ok := decodeObject(newRaw); ok {
				req.NewSchema = m
			}

			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			resp, err := components.Service.Explain(cmd.Context(), req)
			if err != nil {
				return err
			}
			return cli.WriteExplain(cmd.OutOrStdout(), resp, outputFormat(cmd))
		},
	}
	cmd.Flags().StringP("question", "q", "", "question to ask about the change set")
	return cmd
}

func decodeObject(raw []byte) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index and ingest history status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			if err := components.Store.Load(); err != nil && !errors.Is(err, vector.ErrIndexNotFound) {
				logger.Warn("index on disk could not be loaded", zap.Error(err))
			}
			return cli.WriteStatus(cmd.OutOrStdout(), components.Service.Status(cmd.Context()), outputFormat(cmd))
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the built-in defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config already exists: %s", configPath)
			}
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			if err := config.Save(configPath, cfg); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", absPath(configPath))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mirrorapi version %s\n", version)
		},
	}
}
