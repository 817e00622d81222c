package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/articles"
	"github.com/Nephrolytics-ai/quizpipe/pkg/dedup"
	"github.com/Nephrolytics-ai/quizpipe/pkg/llms"
	"github.com/Nephrolytics-ai/quizpipe/pkg/pipeline"
	"github.com/Nephrolytics-ai/quizpipe/pkg/quiz"
	"github.com/Nephrolytics-ai/quizpipe/pkg/store"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Articles   ArticlesConfig `yaml:"articles"`
	Generation ProviderConfig `yaml:"generation"`
	Embedding  ProviderConfig `yaml:"embedding"`
	Dedup      DedupConfig    `yaml:"dedup"`
	Store      StoreConfig    `yaml:"store"`
	Pipeline   PipelineConfig `yaml:"pipeline"`
	Logging    LoggingConfig  `yaml:"logging"`
}

type ArticlesConfig struct {
	Dir     string `yaml:"dir"`
	Pattern string `yaml:"pattern"`
}

// ProviderConfig selects an LLM provider for either generation or embedding.
// Temperature, MaxTokens and ReasoningLevel only apply to generation, and
// Dimensions only to embedding.
type ProviderConfig struct {
	Provider       string   `yaml:"provider"`
	Model          string   `yaml:"model"`
	APIKey         string   `yaml:"api_key"`
	BaseURL        string   `yaml:"base_url"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	ReasoningLevel string   `yaml:"reasoning_level"`
	Dimensions     int      `yaml:"dimensions"`
}

type DedupConfig struct {
	Threshold float64 `yaml:"threshold"`
	Strategy  string  `yaml:"strategy"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	QuizDir    string `yaml:"quiz_dir"`
	ErrorDir   string `yaml:"error_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

type PipelineConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Regenerate     bool          `yaml:"regenerate"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SearchPaths lists the files tried, in order, when no config path is given.
func SearchPaths() []string {
	locations := []string{"quizpipe.yaml", "config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "quizpipe", "config.yaml"))
	}
	return locations
}

// LoadConfig reads path, or the first existing file from SearchPaths when
// path is empty. A missing default file is not an error. Values from .env
// and the process environment override the file, then defaults fill the
// rest.
func LoadConfig(path string) (*Config, error) {
	err := loadDotEnv(".env")
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	if path == "" {
		for _, loc := range SearchPaths() {
			if _, statErr := os.Stat(loc); statErr == nil {
				path = loc
				break
			}
		}
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, utils.WrapIfNotNil(err, "read config")
		}
		err = yaml.Unmarshal(data, cfg)
		if err != nil {
			return nil, utils.WrapIfNotNil(err, "parse config "+path)
		}
	}

	mergeWithEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func loadDotEnv(path string) error {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return godotenv.Load(path)
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Articles.Dir == "" {
		cfg.Articles.Dir = "."
	}
	if cfg.Articles.Pattern == "" {
		cfg.Articles.Pattern = articles.DefaultPattern
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = string(llms.DefaultProvider)
	}
	if cfg.Generation.Temperature == nil {
		temperature := quiz.DefaultTemperature
		cfg.Generation.Temperature = &temperature
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = cfg.Generation.Provider
	}
	if cfg.Embedding.APIKey == "" && strings.EqualFold(cfg.Embedding.Provider, cfg.Generation.Provider) {
		cfg.Embedding.APIKey = cfg.Generation.APIKey
	}
	if cfg.Embedding.BaseURL == "" && strings.EqualFold(cfg.Embedding.Provider, cfg.Generation.Provider) {
		cfg.Embedding.BaseURL = cfg.Generation.BaseURL
	}

	if cfg.Dedup.Threshold == 0 {
		cfg.Dedup.Threshold = dedup.DefaultThreshold
	}
	if cfg.Dedup.Strategy == "" {
		cfg.Dedup.Strategy = string(dedup.DefaultStrategy)
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = store.DriverJSON
	}
	if cfg.Store.QuizDir == "" {
		cfg.Store.QuizDir = store.DefaultQuizDir
	}
	if cfg.Store.ErrorDir == "" {
		cfg.Store.ErrorDir = store.DefaultErrorDir
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = store.DefaultSQLitePath
	}

	if cfg.Pipeline.RequestTimeout == 0 {
		cfg.Pipeline.RequestTimeout = pipeline.DefaultRequestTimeout
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// apiKeyEnv maps a provider to the variables that carry its key, in
// precedence order. Bedrock reads the AWS credential chain itself.
var apiKeyEnv = map[llms.Provider][]string{
	llms.ProviderGemini: {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	llms.ProviderOpenAI: {"OPENAI_API_KEY"},
}

func mergeWithEnv(cfg *Config) {
	if provider := strings.TrimSpace(os.Getenv("QUIZPIPE_PROVIDER")); provider != "" {
		cfg.Generation.Provider = provider
	}
	if driver := strings.TrimSpace(os.Getenv("QUIZPIPE_STORE")); driver != "" {
		cfg.Store.Driver = driver
	}

	mergeProviderEnv(&cfg.Generation, llms.Provider(strings.ToLower(cfg.Generation.Provider)))
	embeddingProvider := cfg.Embedding.Provider
	if embeddingProvider == "" {
		embeddingProvider = cfg.Generation.Provider
	}
	mergeProviderEnv(&cfg.Embedding, llms.Provider(strings.ToLower(embeddingProvider)))
}

func mergeProviderEnv(pc *ProviderConfig, provider llms.Provider) {
	for _, name := range apiKeyEnv[provider] {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			pc.APIKey = key
			break
		}
	}
	if provider == llms.ProviderOllama {
		if baseURL := strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL")); baseURL != "" {
			pc.BaseURL = baseURL
		}
	}
}
