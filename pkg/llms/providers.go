// Package llms selects a provider adapter by name.
package llms

import (
	"fmt"
	"strings"

	"github.com/Nephrolytics-ai/quizpipe/pkg/llms/bedrock"
	"github.com/Nephrolytics-ai/quizpipe/pkg/llms/gemini"
	"github.com/Nephrolytics-ai/quizpipe/pkg/llms/ollama"
	"github.com/Nephrolytics-ai/quizpipe/pkg/llms/openai_response"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
)

type Provider string

const (
	ProviderGemini  Provider = "gemini"
	ProviderOpenAI  Provider = "openai"
	ProviderOllama  Provider = "ollama"
	ProviderBedrock Provider = "bedrock"
)

const DefaultProvider = ProviderGemini

func Providers() []Provider {
	return []Provider{ProviderGemini, ProviderOpenAI, ProviderOllama, ProviderBedrock}
}

// ParseProvider accepts a provider name case-insensitively. An empty value
// selects DefaultProvider.
func ParseProvider(value string) (Provider, error) {
	normalized := Provider(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return DefaultProvider, nil
	}
	for _, p := range Providers() {
		if p == normalized {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", value)
}

func StructuredGeneratorFactory[T any](p Provider) (model.NewStructureContentGeneratorFunc[T], error) {
	switch p {
	case ProviderGemini:
		return gemini.NewStructureContentGenerator[T], nil
	case ProviderOpenAI:
		return openai_response.NewStructureContentGenerator[T], nil
	case ProviderOllama:
		return ollama.NewStructureContentGenerator[T], nil
	case ProviderBedrock:
		return bedrock.NewStructureContentGenerator[T], nil
	default:
		return nil, utils.WrapIfNotNil(fmt.Errorf("unknown provider %q", p))
	}
}

func EmbeddingGeneratorFactory(p Provider) (model.NewEmbeddingGeneratorFunc, error) {
	switch p {
	case ProviderGemini:
		return gemini.NewEmbeddingGenerator, nil
	case ProviderOpenAI:
		return openai_response.NewEmbeddingGenerator, nil
	case ProviderOllama:
		return ollama.NewEmbeddingGenerator, nil
	case ProviderBedrock:
		return bedrock.NewEmbeddingGenerator, nil
	default:
		return nil, utils.WrapIfNotNil(fmt.Errorf("unknown provider %q", p))
	}
}

func NewEmbeddingGenerator(p Provider, opts ...model.GeneratorOption) (model.EmbeddingGenerator, error) {
	factory, err := EmbeddingGeneratorFactory(p)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	generator, err := factory(opts...)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return generator, nil
}
