package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.T().Chdir(s.dir)
	s.T().Setenv("HOME", s.dir)
	for _, name := range []string{
		"QUIZPIPE_PROVIDER", "QUIZPIPE_STORE", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"OPENAI_API_KEY", "OLLAMA_BASE_URL",
	} {
		s.T().Setenv(name, "")
	}
}

func (s *ConfigSuite) write(name, content string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o755))
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (s *ConfigSuite) TestDefaultsWithoutFile() {
	cfg, err := LoadConfig("")
	s.Require().NoError(err)

	s.Equal("article_*.md", cfg.Articles.Pattern)
	s.Equal("gemini", cfg.Generation.Provider)
	s.Equal("gemini", cfg.Embedding.Provider)
	s.Require().NotNil(cfg.Generation.Temperature)
	s.InDelta(0.1, *cfg.Generation.Temperature, 1e-9)
	s.InDelta(0.85, cfg.Dedup.Threshold, 1e-9)
	s.Equal("best", cfg.Dedup.Strategy)
	s.Equal("json", cfg.Store.Driver)
	s.Equal("Quiz", cfg.Store.QuizDir)
	s.Equal("QuizErrors", cfg.Store.ErrorDir)
	s.Equal(2*time.Minute, cfg.Pipeline.RequestTimeout)
	s.Empty(cfg.Validate())
}

func (s *ConfigSuite) TestLoadFile() {
	path := s.write("custom.yaml", `
articles:
  dir: ./articles
generation:
  provider: openai
  model: gpt-5-mini
  temperature: 0
  reasoning_level: low
embedding:
  provider: ollama
  model: nomic-embed-text
  base_url: http://ollama:11434
dedup:
  threshold: 0.9
  strategy: first
store:
  driver: sqlite
  sqlite_path: quiz.db
pipeline:
  request_timeout: 30s
  regenerate: true
logging:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(path)
	s.Require().NoError(err)

	s.Equal("./articles", cfg.Articles.Dir)
	s.Equal("openai", cfg.Generation.Provider)
	s.Equal("gpt-5-mini", cfg.Generation.Model)
	s.Require().NotNil(cfg.Generation.Temperature)
	s.Zero(*cfg.Generation.Temperature)
	s.Equal("ollama", cfg.Embedding.Provider)
	s.Equal("http://ollama:11434", cfg.Embedding.BaseURL)
	s.InDelta(0.9, cfg.Dedup.Threshold, 1e-9)
	s.Equal("first", cfg.Dedup.Strategy)
	s.Equal("sqlite", cfg.Store.Driver)
	s.Equal("quiz.db", cfg.Store.SQLitePath)
	s.Equal(30*time.Second, cfg.Pipeline.RequestTimeout)
	s.True(cfg.Pipeline.Regenerate)
	s.Empty(cfg.Validate())
}

func (s *ConfigSuite) TestSearchPathOrder() {
	s.write(filepath.Join(".config", "quizpipe", "config.yaml"), "dedup:\n  threshold: 0.7\n")
	cfg, err := LoadConfig("")
	s.Require().NoError(err)
	s.InDelta(0.7, cfg.Dedup.Threshold, 1e-9)

	s.write("config.yaml", "dedup:\n  threshold: 0.8\n")
	cfg, err = LoadConfig("")
	s.Require().NoError(err)
	s.InDelta(0.8, cfg.Dedup.Threshold, 1e-9)

	s.write("quizpipe.yaml", "dedup:\n  threshold: 0.95\n")
	cfg, err = LoadConfig("")
	s.Require().NoError(err)
	s.InDelta(0.95, cfg.Dedup.Threshold, 1e-9)
}

func (s *ConfigSuite) TestEnvironmentOverridesFile() {
	path := s.write("quizpipe.yaml", "generation:\n  provider: gemini\n  api_key: from-file\nstore:\n  driver: json\n")
	s.T().Setenv("GEMINI_API_KEY", "from-env")
	s.T().Setenv("QUIZPIPE_STORE", "sqlite")

	cfg, err := LoadConfig(path)
	s.Require().NoError(err)
	s.Equal("from-env", cfg.Generation.APIKey)
	s.Equal("from-env", cfg.Embedding.APIKey)
	s.Equal("sqlite", cfg.Store.Driver)

	s.T().Setenv("QUIZPIPE_PROVIDER", "ollama")
	s.T().Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
	cfg, err = LoadConfig(path)
	s.Require().NoError(err)
	s.Equal("ollama", cfg.Generation.Provider)
	s.Equal("http://gpu-box:11434", cfg.Generation.BaseURL)
	s.Equal("ollama", cfg.Embedding.Provider)
}

func (s *ConfigSuite) TestDotEnvIsLoaded() {
	s.write(".env", "OPENAI_API_KEY=dotenv-key\nQUIZPIPE_PROVIDER=openai\n")
	s.T().Setenv("OPENAI_API_KEY", "")
	s.T().Setenv("QUIZPIPE_PROVIDER", "")
	s.Require().NoError(os.Unsetenv("OPENAI_API_KEY"))
	s.Require().NoError(os.Unsetenv("QUIZPIPE_PROVIDER"))

	cfg, err := LoadConfig("")
	s.Require().NoError(err)
	s.Equal("openai", cfg.Generation.Provider)
	s.Equal("dotenv-key", cfg.Generation.APIKey)
}

func (s *ConfigSuite) TestMalformedFile() {
	path := s.write("bad.yaml", "dedup: [unclosed\n")
	_, err := LoadConfig(path)
	s.Error(err)

	_, err = LoadConfig(filepath.Join(s.dir, "missing.yaml"))
	s.Error(err)
}

func (s *ConfigSuite) TestValidate() {
	cfg := Default()
	cfg.Generation.Provider = "anthropic"
	cfg.Embedding.BaseURL = "not a url"
	cfg.Dedup.Threshold = 1.5
	cfg.Dedup.Strategy = "random"
	cfg.Store.Driver = "postgres"
	cfg.Pipeline.RequestTimeout = -time.Second
	cfg.Logging.Level = "loud"
	cfg.Generation.ReasoningLevel = "extreme"

	fields := map[string]bool{}
	for _, e := range cfg.Validate() {
		fields[e.Field] = true
		s.NotEmpty(e.Error())
	}

	for _, field := range []string{
		"generation.provider",
		"embedding.base_url",
		"dedup.threshold",
		"dedup.strategy",
		"store.driver",
		"pipeline.request_timeout",
		"logging.level",
		"generation.reasoning_level",
	} {
		s.True(fields[field], field)
	}
}

func (s *ConfigSuite) TestProviderOptions() {
	temperature := 0.3
	pc := ProviderConfig{
		Model:          "gpt-5-mini",
		APIKey:         "key",
		BaseURL:        "http://proxy",
		Temperature:    &temperature,
		MaxTokens:      512,
		ReasoningLevel: "low",
		Dimensions:     256,
	}

	gen := model.ResolveGeneratorOpts(pc.GenerationOptions()...)
	s.True(gen.IgnoreInvalidGeneratorOptions)
	s.Equal("gpt-5-mini", model.ResolveModelName(gen, "fallback"))
	s.Equal("key", gen.AuthToken)
	s.Equal("http://proxy", gen.URL)
	s.Require().NotNil(gen.Temperature)
	s.InDelta(0.3, *gen.Temperature, 1e-9)
	s.Require().NotNil(gen.MaxTokens)
	s.Equal(512, *gen.MaxTokens)
	s.Require().NotNil(gen.ReasoningLevel)
	s.Equal(model.ReasoningLevelLow, *gen.ReasoningLevel)
	s.Nil(gen.EmbeddingDimensions)

	emb := model.ResolveGeneratorOpts(pc.EmbeddingOptions()...)
	s.Require().NotNil(emb.EmbeddingDimensions)
	s.Equal(256, *emb.EmbeddingDimensions)
	s.Nil(emb.Temperature)
	s.False(emb.IgnoreInvalidGeneratorOptions)

	s.Empty(ProviderConfig{}.EmbeddingOptions())
}
