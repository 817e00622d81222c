package llms

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/articles"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/quiz"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/suite"
)

type ExternalDependenciesSuite struct {
	suite.Suite
	settingsFile string
}

func (s *ExternalDependenciesSuite) SetupSuite() {
	settingsFromEnv := strings.TrimSpace(os.Getenv("SETTINGS_FILE"))
	settingsFile := settingsFromEnv
	if settingsFile == "" {
		homeDir, err := os.UserHomeDir()
		s.Require().NoError(err)
		settingsFile = filepath.Join(homeDir, ".env")
	}
	s.settingsFile = settingsFile

	_, err := os.Stat(settingsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && settingsFromEnv == "" {
			return
		}
		s.Require().NoError(err)
		return
	}

	s.Require().NoError(godotenv.Overload(settingsFile))
}

// QuizIntegrationSuite runs one live quiz generation and embedding per
// provider whose credentials are present.
type QuizIntegrationSuite struct {
	ExternalDependenciesSuite
}

func TestQuizIntegrationSuite(t *testing.T) {
	suite.Run(t, new(QuizIntegrationSuite))
}

const integrationArticle = `The mitochondrion is the organelle that produces most of the chemical
energy needed to power a cell's biochemical reactions. This energy is stored in
a molecule called adenosine triphosphate (ATP).`

func (s *QuizIntegrationSuite) credentialsFor(p Provider) bool {
	switch p {
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != ""
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY") != ""
	case ProviderOllama:
		return os.Getenv("OLLAMA_BASE_URL") != ""
	case ProviderBedrock:
		return os.Getenv("AWS_ACCESS_KEY_ID") != "" || os.Getenv("AWS_PROFILE") != ""
	}
	return false
}

func (s *QuizIntegrationSuite) TestGenerateAndEmbed() {
	ran := 0
	for _, p := range Providers() {
		if !s.credentialsFor(p) {
			continue
		}
		ran++

		s.Run(string(p), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
			defer cancel()

			factory, err := StructuredGeneratorFactory[quiz.Candidate](p)
			s.Require().NoError(err)
			generator, err := quiz.NewGenerator(factory, model.WithIgnoreInvalidGeneratorOptions(true))
			s.Require().NoError(err)

			candidate, meta, err := generator.Generate(ctx, articles.Article{ID: "article_1", Text: integrationArticle})
			s.Require().NoError(err)
			s.Equal(string(p), providerLabel(meta[model.MetadataKeyProvider]))
			s.NotEmpty(meta[model.MetadataKeyLatencyMs])
			s.Len(candidate.Options, quiz.OptionCount)
			s.Contains(candidate.Options, candidate.CorrectAnswer)

			embeddingGenerator, err := NewEmbeddingGenerator(p)
			s.Require().NoError(err)
			embedder, err := quiz.NewEmbedder(embeddingGenerator)
			s.Require().NoError(err)

			vector, _, err := embedder.Embed(ctx, candidate.Question)
			s.Require().NoError(err)
			s.NotEmpty(vector)
		})
	}

	if ran == 0 {
		s.T().Skip("no provider credentials set; skipping external dependency integration test")
	}
}

func providerLabel(metadataProvider string) string {
	if metadataProvider == "openai_response" {
		return string(ProviderOpenAI)
	}
	return metadataProvider
}
