// Package main is the MirrorAPI CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ParsaBazrpash/MirrorAPI/internal/cli"
	"github.com/ParsaBazrpash/MirrorAPI/internal/config"
	"github.com/ParsaBazrpash/MirrorAPI/internal/embedding"
	"github.com/ParsaBazrpash/MirrorAPI/internal/extract"
	"github.com/ParsaBazrpash/MirrorAPI/internal/generation"
	"github.com/ParsaBazrpash/MirrorAPI/internal/indexer"
	"github.com/ParsaBazrpash/MirrorAPI/internal/retrieval"
	"github.com/ParsaBazrpash/MirrorAPI/internal/storage"
	"github.com/ParsaBazrpash/MirrorAPI/internal/vector"
	"github.com/ParsaBazrpash/MirrorAPI/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "config.yaml"
	defaultEnvPath    = ".env"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mirrorapi",
		Short: "MirrorAPI - retrieval-augmented answers about API schema changes",
		Long: `mirrorapi ingests documents into a flat vector index, answers questions about
API schema changes from the retrieved chunks, and explains schema diffs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envPath, _ := cmd.Flags().GetString("env")
			return config.LoadDotEnv(envPath)
		},
	}

	rootCmd.PersistentFlags().String("config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().String("env", defaultEnvPath, "dotenv file loaded before the config")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newQueryCmd(),
		newChatCmd(),
		newExplainCmd(),
		newDiffCmd(),
		newStatusCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig loads config from path. When path is the default and no such file exists, the
// built-in defaults are used with paths relative to the working directory.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, "", err
			}
			cfg, err := config.Default(cwd)
			if err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// outputFormat reads the persistent --json flag.
func outputFormat(cmd *cobra.Command) cli.OutputFormat {
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return cli.OutputJSON
	}
	return cli.OutputText
}

// setup loads config and a logger for a command.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug, _ := cmd.Flags().GetBool("debug")
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode),
	)
	return cfg, logger, nil
}

// Components are the long-lived pieces a command works with.
type Components struct {
	History  storage.Storage
	Embedder embedding.Embedder
	Store    *vector.Store
	Loader   *indexer.Loader
	Service  *retrieval.Service
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.History != nil {
		_ = c.History.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	history, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ingest history: %w", err)
	}

	embedder := buildEmbedder(cfg, logger)

	indexType, downgraded, err := vector.ResolveIndexType(cfg.Retrieval.IndexType)
	if err != nil {
		_ = history.Close()
		return nil, err
	}
	if downgraded {
		logger.Warn("faiss index not available, falling back to memory",
			zap.String("requested_type", cfg.Retrieval.IndexType))
	}
	store := vector.NewStore(embedder, cfg.Storage.DataDir,
		vector.WithLogger(logger),
		vector.WithIndexType(indexType),
	)
	logger.Debug("vector store initialized",
		zap.String("type", string(indexType)),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	loader := indexer.NewLoader(extract.NewExtractor(),
		indexer.WithLogger(logger),
		indexer.WithExtensions(cfg.Ingest.Extensions),
	)
	chat, insight := buildGenerators(cfg, logger)

	svc := retrieval.NewService(store,
		retrieval.WithLogger(logger),
		retrieval.WithChunker(indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap())),
		retrieval.WithLoader(loader),
		retrieval.WithChatGenerator(chat),
		retrieval.WithInsightGenerator(insight),
		retrieval.WithHistory(history),
		retrieval.WithStrategyReporter(embedder),
		retrieval.WithDefaults(retrieval.Defaults{
			TopK:         cfg.Retrieval.TopK,
			MaxNewTokens: cfg.Generation.MaxNewTokens,
			Temperature:  cfg.Generation.Temperature,
			InsightModel: cfg.Generation.InsightModel,
		}),
	)

	return &Components{
		History:  history,
		Embedder: embedder,
		Store:    store,
		Loader:   loader,
		Service:  svc,
	}, nil
}

// buildEmbedder assembles the local, remote, and hash strategies in that order. Strategies that
// are not configured are left out of the chain.
func buildEmbedder(cfg *config.Config, logger *zap.Logger) *embedding.FallbackEmbedder {
	var links []embedding.Link

	local := cfg.Embedding.Local
	if local.ModelPath != "" {
		links = append(links, embedding.Link{
			Name: embedding.StrategyLocal,
			Embedder: embedding.NewLocalEmbedder(embedding.ONNXConfig{
				ModelPath:   local.ModelPath,
				LibraryPath: local.LibraryPath,
				Dimensions:  local.Dimensions,
				MaxTokens:   local.MaxTokens,
				CacheSize:   local.CacheSize,
				OutputName:  local.OutputName,
			}, local.VocabPath, logger),
		})
	}

	remote := cfg.Embedding.Remote
	switch remote.Provider {
	case config.ProviderHuggingFace:
		links = append(links, embedding.Link{
			Name: embedding.StrategyRemote,
			Embedder: embedding.NewCachedEmbedder(embedding.NewRemoteEmbedder(embedding.RemoteConfig{
				URL:     remote.URL,
				Model:   cfg.Embedding.Model,
				Token:   remote.Token(),
				Timeout: remote.Timeout(),
			}), remote.CacheSize),
		})
	case config.ProviderOpenAI:
		links = append(links, embedding.Link{
			Name: embedding.StrategyRemote,
			Embedder: embedding.NewCachedEmbedder(embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
				BaseURL: remote.BaseURL,
				APIKey:  remote.Token(),
				Model:   cfg.Embedding.Model,
				Timeout: remote.Timeout(),
			}), remote.CacheSize),
		})
	}

	links = append(links, embedding.Link{
		Name:     embedding.StrategyHash,
		Embedder: embedding.NewHashEmbedder(cfg.Embedding.FallbackDimensions),
	})

	names := make([]string, len(links))
	for i, l := range links {
		names[i] = string(l.Name)
	}
	logger.Debug("embedding chain", zap.Strings("strategies", names))

	return embedding.NewFallbackEmbedder(links,
		embedding.WithLogger(logger),
		embedding.WithCooldown(time.Duration(cfg.Embedding.HealthCooldownSecs)*time.Second),
	)
}

// buildGenerators returns the chat backend (remote with the offline template behind it) and the
// insight backend. With generation disabled, chat is template-only and insight is nil so Explain
// uses the chat backend.
func buildGenerators(cfg *config.Config, logger *zap.Logger) (chat, insight generation.Generator) {
	gen := cfg.Generation
	if gen.Disabled {
		logger.Debug("remote generation disabled, using template answers")
		return generation.NewTemplateGenerator(), nil
	}
	remote := generation.NewOpenAIGenerator(generation.OpenAIConfig{
		BaseURL: gen.BaseURL,
		APIKey:  gen.APIKey(),
		Model:   gen.Model,
		Timeout: gen.Timeout(),
	})
	chat = generation.NewFallbackGenerator(remote, generation.NewTemplateGenerator(),
		generation.WithLogger(logger))
	return chat, remote
}

// absPath resolves p against the working directory for log and output messages.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
