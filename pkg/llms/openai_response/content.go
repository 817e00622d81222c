package openai_response

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
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

type structuredGenerator[T any] struct {
	model.PromptContextSet

	client *client
	prompt string
	cfg    model.GeneratorConfig
}

// NewStructureContentGenerator returns a generator that asks the Responses API
// for strict JSON matching T's schema.
func NewStructureContentGenerator[T any](prompt string, opts ...model.GeneratorOption) (model.ContentGenerator[T], error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, utils.WrapIfNotNil(errors.New("prompt is required"))
	}

	cfg := model.ResolveGeneratorOpts(opts...)
	return &structuredGenerator[T]{client: newClient(cfg), prompt: prompt, cfg: cfg}, nil
}

func (g *structuredGenerator[T]) Generate(ctx context.Context) (T, model.GenerationMetadata, error) {
	var zero T
	start := time.Now()
	modelName := model.ResolveModelName(g.cfg, defaultModelName)
	meta := model.NewGenerationMetadata(providerName, modelName)
	defer model.SetLatency(meta, start)

	log := logging.NewLogger(ctx)
	schema, err := model.GenerateJSONSchema[T]()
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}

	params, err := buildParams(g.prompt, g.PromptContexts(), modelName, g.cfg, schema, log)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}

	log.Infof(
		"structured_request model=%q input_items=%d temperature=%v max_tokens=%v reasoning=%v",
		modelName,
		len(params.Input.OfInputItemList),
		g.cfg.Temperature,
		g.cfg.MaxTokens,
		g.cfg.ReasoningLevel,
	)

	response, err := g.client.apiClient.Responses.New(ctx, params)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}
	if response == nil {
		err = errors.New("responses API returned nil response")
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}
	applyResponseMetadata(meta, response)

	output := strings.TrimSpace(response.OutputText())
	if output == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}

	var result T
	err = json.Unmarshal([]byte(output), &result)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}
	return result, meta, nil
}

func buildParams(
	prompt string,
	contexts []*model.PromptContext,
	modelName string,
	cfg model.GeneratorConfig,
	schema model.JSONSchema,
	log logging.Logger,
) (responses.ResponseNewParams, error) {
	cfg, err := normalizeGeneratorOptionsForModel(modelName, cfg, log)
	if err != nil {
		return responses.ResponseNewParams{}, utils.WrapIfNotNil(err)
	}

	params := responses.ResponseNewParams{
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: buildInputItems(prompt, contexts),
		},
		Model: shared.ResponsesModel(modelName),
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   "structured_output",
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}
	if cfg.Temperature != nil {
		params.Temperature = openai.Float(*cfg.Temperature)
	}
	if cfg.MaxTokens != nil {
		params.MaxOutputTokens = openai.Int(int64(*cfg.MaxTokens))
	}
	if cfg.ReasoningLevel != nil {
		params.Reasoning = shared.ReasoningParam{
			Effort: mapReasoningLevel(*cfg.ReasoningLevel),
		}
	}
	return params, nil
}

func buildInputItems(prompt string, contexts []*model.PromptContext) responses.ResponseInputParam {
	items := make(responses.ResponseInputParam, 0, len(contexts)+1)
	for _, contextItem := range contexts {
		items = append(items, responses.ResponseInputItemParamOfMessage(
			contextItem.Content,
			mapContextMessageRole(contextItem.MessageType),
		))
	}
	return append(items, responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser))
}

func mapContextMessageRole(messageType model.ContextMessageType) responses.EasyInputMessageRole {
	switch messageType {
	case model.ContextMessageTypeSystem:
		return responses.EasyInputMessageRoleSystem
	case model.ContextMessageTypeAssistant:
		return responses.EasyInputMessageRoleAssistant
	default:
		return responses.EasyInputMessageRoleUser
	}
}

func applyResponseMetadata(meta model.GenerationMetadata, response *responses.Response) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	model.SetTokenUsage(meta, response.Usage.InputTokens, response.Usage.OutputTokens, response.Usage.TotalTokens)
	meta[model.MetadataKeyCachedInputTokens] = strconv.FormatInt(response.Usage.InputTokensDetails.CachedTokens, 10)
	meta[model.MetadataKeyReasoningTokens] = strconv.FormatInt(response.Usage.OutputTokensDetails.ReasoningTokens, 10)
	if response.ID != "" {
		meta[model.MetadataKeyResponseID] = response.ID
	}
	if response.Status != "" {
		meta[model.MetadataKeyResponseStatus] = string(response.Status)
	}
}
