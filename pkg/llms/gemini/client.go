package gemini

import (
	"context"
	"os"
	"strings"

	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	"google.golang.org/genai"
)

const (
	providerName               = "gemini"
	defaultGenerationModelName = "gemini-2.5-flash"
	defaultEmbeddingModelName  = "gemini-embedding-001"
)

var apiKeyEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_KEY"}

func resolveAPIKey(cfg model.GeneratorConfig) string {
	if token := strings.TrimSpace(cfg.AuthToken); token != "" {
		return token
	}
	for _, name := range apiKeyEnvVars {
		if token := strings.TrimSpace(os.Getenv(name)); token != "" {
			return token
		}
	}
	return ""
}

func newAPIClient(ctx context.Context, cfg model.GeneratorConfig) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  resolveAPIKey(cfg),
	}

	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{
			BaseURL: baseURL,
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return client, nil
}
