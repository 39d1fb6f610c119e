package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Ingest.Folder == "" {
		cfg.Ingest.Folder = "./data/docs"
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".txt", ".md"}
	}
	if cfg.Ingest.DebounceMS == 0 {
		cfg.Ingest.DebounceMS = 400
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 900
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.IndexType == "" {
		cfg.Retrieval.IndexType = "memory"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embedding.FallbackDimensions == 0 {
		cfg.Embedding.FallbackDimensions = 384
	}
	if cfg.Embedding.Local.Dimensions == 0 {
		cfg.Embedding.Local.Dimensions = 384
	}
	if cfg.Embedding.Local.MaxTokens == 0 {
		cfg.Embedding.Local.MaxTokens = 256
	}
	if cfg.Embedding.Local.CacheSize == 0 {
		cfg.Embedding.Local.CacheSize = 10000
	}
	if cfg.Embedding.Remote.Provider == "" {
		cfg.Embedding.Remote.Provider = ProviderHuggingFace
	}
	if cfg.Embedding.Remote.TokenEnv == "" {
		cfg.Embedding.Remote.TokenEnv = "HF_TOKEN"
	}
	if cfg.Embedding.Remote.TimeoutSecs == 0 {
		cfg.Embedding.Remote.TimeoutSecs = 30
	}
	if cfg.Embedding.Remote.CacheSize == 0 {
		cfg.Embedding.Remote.CacheSize = 2000
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://integrate.api.nvidia.com/v1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "nvidia/nvidia-nemotron-nano-9b-v2"
	}
	if cfg.Generation.InsightModel == "" {
		cfg.Generation.InsightModel = "nvidia/llama-3.1-nemotron-nano-8b-v1"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "NVIDIA_API_KEY"
	}
	if cfg.Generation.MaxNewTokens == 0 {
		cfg.Generation.MaxNewTokens = 512
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.3
	}
	if cfg.Generation.TimeoutSecs == 0 {
		cfg.Generation.TimeoutSecs = 120
	}
}
