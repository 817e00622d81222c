package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	"google.golang.org/genai"
)

const thinkingUnsupportedMessage = "Thinking level is not supported for this model"

type structuredGenerator[T any] struct {
	model.PromptContextSet

	prompt string
	cfg    model.GeneratorConfig
}

// NewStructureContentGenerator returns a generator that requests JSON output
// constrained by T's schema.
func NewStructureContentGenerator[T any](prompt string, opts ...model.GeneratorOption) (model.ContentGenerator[T], error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, utils.WrapIfNotNil(errors.New("prompt is required"))
	}

	return &structuredGenerator[T]{
		prompt: prompt,
		cfg:    model.ResolveGeneratorOpts(opts...),
	}, nil
}

func (g *structuredGenerator[T]) Generate(ctx context.Context) (T, model.GenerationMetadata, error) {
	var zero T
	start := time.Now()
	modelName := model.ResolveModelName(g.cfg, defaultGenerationModelName)
	meta := model.NewGenerationMetadata(providerName, modelName)
	defer model.SetLatency(meta, start)

	log := logging.NewLogger(ctx)
	schema, err := model.GenerateJSONSchema[T]()
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}

	systemInstruction, contents := buildContents(g.prompt, g.PromptContexts())
	config := buildGenerateContentConfig(g.cfg, systemInstruction)
	config.ResponseMIMEType = "application/json"
	config.ResponseJsonSchema = map[string]any(schema)

	client, err := newAPIClient(ctx, g.cfg)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}

	log.Infof(
		"structured_request model=%q contents=%d temperature=%v max_tokens=%v reasoning=%v",
		modelName,
		len(contents),
		g.cfg.Temperature,
		g.cfg.MaxTokens,
		g.cfg.ReasoningLevel,
	)

	response, err := generateWithThinkingFallback(ctx, client, modelName, contents, config)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}
	applyGenerateMetadata(meta, response)

	text := strings.TrimSpace(response.Text())
	if text == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}

	var out T
	err = json.Unmarshal([]byte(utils.ExtractJSONPayload(text)), &out)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}
	return out, meta, nil
}

// buildContents folds system contexts into one system instruction and keeps
// the remaining contexts as turns ahead of the prompt.
func buildContents(prompt string, contexts []*model.PromptContext) (*genai.Content, []*genai.Content) {
	contents := make([]*genai.Content, 0, len(contexts)+1)
	for _, contextItem := range contexts {
		switch contextItem.MessageType {
		case model.ContextMessageTypeSystem:
			continue
		case model.ContextMessageTypeAssistant:
			contents = append(contents, genai.NewContentFromText(contextItem.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(contextItem.Content, genai.RoleUser))
		}
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	system := model.SystemText(contexts)
	if system == "" {
		return nil, contents
	}
	return genai.NewContentFromText(system, genai.RoleUser), contents
}

func buildGenerateContentConfig(cfg model.GeneratorConfig, systemInstruction *genai.Content) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if systemInstruction != nil {
		config.SystemInstruction = systemInstruction
	}
	if cfg.Temperature != nil {
		temp := float32(*cfg.Temperature)
		config.Temperature = &temp
	}
	if cfg.MaxTokens != nil {
		config.MaxOutputTokens = int32(*cfg.MaxTokens)
	}
	if cfg.ReasoningLevel != nil {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingLevel: mapReasoningLevel(*cfg.ReasoningLevel),
		}
	}
	return config
}

func mapReasoningLevel(level model.ReasoningLevel) genai.ThinkingLevel {
	switch level {
	case model.ReasoningLevelNone:
		return genai.ThinkingLevelMinimal
	case model.ReasoningLevelLow:
		return genai.ThinkingLevelLow
	case model.ReasoningLevelMed:
		return genai.ThinkingLevelMedium
	case model.ReasoningLevelHigh:
		return genai.ThinkingLevelHigh
	default:
		return genai.ThinkingLevelMedium
	}
}

// generateWithThinkingFallback retries once without a thinking config when
// the model rejects it.
func generateWithThinkingFallback(
	ctx context.Context,
	client *genai.Client,
	modelName string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	response, err := client.Models.GenerateContent(ctx, modelName, contents, config)
	if err == nil {
		return response, nil
	}

	if config == nil || config.ThinkingConfig == nil || !utils.ContainsErrorSubstring(err, thinkingUnsupportedMessage) {
		return nil, utils.WrapIfNotNil(err)
	}

	logging.NewLogger(ctx).Warnf("thinking level unsupported for model %q; retrying without thinking config", modelName)

	fallback := *config
	fallback.ThinkingConfig = nil

	response, err = client.Models.GenerateContent(ctx, modelName, contents, &fallback)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return response, nil
}

func applyGenerateMetadata(meta model.GenerationMetadata, response *genai.GenerateContentResponse) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	if usage := response.UsageMetadata; usage != nil {
		model.SetTokenUsage(
			meta,
			int64(usage.PromptTokenCount),
			int64(usage.CandidatesTokenCount),
			int64(usage.TotalTokenCount),
		)
		meta[model.MetadataKeyCachedInputTokens] = strconv.FormatInt(int64(usage.CachedContentTokenCount), 10)
		meta[model.MetadataKeyReasoningTokens] = strconv.FormatInt(int64(usage.ThoughtsTokenCount), 10)
	}
	if strings.TrimSpace(response.ResponseID) != "" {
		meta[model.MetadataKeyResponseID] = response.ResponseID
	}
	if len(response.Candidates) > 0 && response.Candidates[0] != nil {
		meta[model.MetadataKeyResponseStatus] = string(response.Candidates[0].FinishReason)
	}
}
