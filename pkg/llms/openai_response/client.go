package openai_response

import (
	"fmt"
	"strings"

	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	providerName              = "openai_response"
	defaultModelName          = "gpt-5-mini"
	defaultEmbeddingModelName = "text-embedding-3-small"
)

type client struct {
	apiClient openai.Client
}

// newClient builds an SDK client. Without an explicit token the SDK falls
// back to OPENAI_API_KEY.
func newClient(cfg model.GeneratorConfig) *client {
	requestOpts := make([]option.RequestOption, 0, 2)
	if cfg.URL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.URL))
	}
	if cfg.AuthToken != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(cfg.AuthToken))
	}

	return &client{apiClient: openai.NewClient(requestOpts...)}
}

// normalizeGeneratorOptionsForModel drops or rejects options the model family
// does not accept. Reasoning models take no temperature; other models take no
// reasoning effort.
func normalizeGeneratorOptionsForModel(
	modelName string,
	cfg model.GeneratorConfig,
	log logging.Logger,
) (model.GeneratorConfig, error) {
	reasoningModel := isReasoningModel(modelName)

	if cfg.Temperature != nil && reasoningModel {
		if !cfg.IgnoreInvalidGeneratorOptions {
			return cfg, utils.WrapIfNotNil(
				fmt.Errorf("temperature is not supported for reasoning model %q", modelName),
			)
		}
		if log != nil {
			log.Warnf("ignoring temperature for reasoning model %q", modelName)
		}
		cfg.Temperature = nil
	}

	if cfg.ReasoningLevel != nil && !reasoningModel {
		if !cfg.IgnoreInvalidGeneratorOptions {
			return cfg, utils.WrapIfNotNil(
				fmt.Errorf("reasoning effort is not supported for non-reasoning model %q", modelName),
			)
		}
		if log != nil {
			log.Warnf("ignoring reasoning effort for non-reasoning model %q", modelName)
		}
		cfg.ReasoningLevel = nil
	}

	return cfg, nil
}

func isReasoningModel(modelName string) bool {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return false
	}

	return strings.HasPrefix(name, "o1") ||
		strings.HasPrefix(name, "o3") ||
		strings.HasPrefix(name, "o4") ||
		strings.HasPrefix(name, "gpt-5")
}

func mapReasoningLevel(level model.ReasoningLevel) shared.ReasoningEffort {
	switch level {
	case model.ReasoningLevelNone:
		return shared.ReasoningEffortNone
	case model.ReasoningLevelLow:
		return shared.ReasoningEffortLow
	case model.ReasoningLevelMed:
		return shared.ReasoningEffortMedium
	case model.ReasoningLevelHigh:
		return shared.ReasoningEffortHigh
	default:
		return shared.ReasoningEffortMedium
	}
}
