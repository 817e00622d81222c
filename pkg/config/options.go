package config

import (
	"strings"

	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
)

// GenerationOptions converts the section into generator options. Options a
// model rejects are dropped with a warning rather than failing the run.
func (pc ProviderConfig) GenerationOptions() []model.GeneratorOption {
	opts := append(pc.commonOptions(), model.WithIgnoreInvalidGeneratorOptions(true))
	if pc.Temperature != nil {
		opts = append(opts, model.WithTemperature(*pc.Temperature))
	}
	if pc.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(pc.MaxTokens))
	}
	if level, ok := model.ParseReasoningLevel(pc.ReasoningLevel); ok {
		opts = append(opts, model.WithReasoningLevel(level))
	}
	return opts
}

func (pc ProviderConfig) EmbeddingOptions() []model.GeneratorOption {
	opts := pc.commonOptions()
	if pc.Dimensions > 0 {
		opts = append(opts, model.WithEmbeddingDimensions(pc.Dimensions))
	}
	return opts
}

func (pc ProviderConfig) commonOptions() []model.GeneratorOption {
	var opts []model.GeneratorOption
	if m := strings.TrimSpace(pc.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	if key := strings.TrimSpace(pc.APIKey); key != "" {
		opts = append(opts, model.WithAuthToken(key))
	}
	if baseURL := strings.TrimSpace(pc.BaseURL); baseURL != "" {
		opts = append(opts, model.WithURL(baseURL))
	}
	return opts
}
