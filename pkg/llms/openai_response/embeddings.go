package openai_response

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	openai "github.com/openai/openai-go/v3"
)

type embeddingGenerator struct {
	client *client
	cfg    model.GeneratorConfig
}

func NewEmbeddingGenerator(opts ...model.GeneratorOption) (model.EmbeddingGenerator, error) {
	cfg := model.ResolveGeneratorOpts(opts...)
	if cfg.EmbeddingDimensions != nil && *cfg.EmbeddingDimensions <= 0 {
		return nil, utils.WrapIfNotNil(errors.New("embedding dimensions must be greater than zero"))
	}
	return &embeddingGenerator{client: newClient(cfg), cfg: cfg}, nil
}

func (g *embeddingGenerator) Generate(ctx context.Context, input string) (model.EmbeddingVector, model.GenerationMetadata, error) {
	vectors, meta, err := g.GenerateBatch(ctx, []string{input})
	if err != nil {
		return nil, meta, utils.WrapIfNotNil(err)
	}
	if len(vectors) != 1 {
		return nil, meta, utils.WrapIfNotNil(fmt.Errorf("expected exactly 1 embedding vector, got %d", len(vectors)))
	}
	return vectors[0], meta, nil
}

func (g *embeddingGenerator) GenerateBatch(ctx context.Context, inputs []string) (model.EmbeddingVectors, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := model.ResolveModelName(g.cfg, defaultEmbeddingModelName)
	meta := model.NewGenerationMetadata(providerName, modelName)
	defer model.SetLatency(meta, start)

	log := logging.NewLogger(ctx)
	err := validateEmbeddingInputs(inputs)
	if err != nil {
		log.Errorf("error: %v", err)
		return nil, meta, utils.WrapIfNotNil(err)
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: append([]string(nil), inputs...),
		},
		Model: openai.EmbeddingModel(modelName),
	}
	if g.cfg.EmbeddingDimensions != nil {
		params.Dimensions = openai.Int(int64(*g.cfg.EmbeddingDimensions))
	}

	log.Infof("embedding_request inputs=%d model=%q dimensions=%v", len(inputs), modelName, g.cfg.EmbeddingDimensions)

	response, err := g.client.apiClient.Embeddings.New(ctx, params)
	if err != nil {
		log.Errorf("error: %v", err)
		return nil, meta, utils.WrapIfNotNil(err)
	}

	vectors, err := convertEmbeddingResponse(response, len(inputs))
	if err != nil {
		log.Errorf("error: %v", err)
		return nil, meta, utils.WrapIfNotNil(err)
	}

	model.SetEmbeddingMetadata(meta, vectors)
	if strings.TrimSpace(response.Model) != "" {
		meta[model.MetadataKeyModel] = response.Model
	}
	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(response.Usage.PromptTokens, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(response.Usage.TotalTokens, 10)
	return vectors, meta, nil
}

func validateEmbeddingInputs(inputs []string) error {
	if len(inputs) == 0 {
		return utils.WrapIfNotNil(errors.New("at least one input is required"))
	}
	for i, input := range inputs {
		if strings.TrimSpace(input) == "" {
			return utils.WrapIfNotNil(fmt.Errorf("input at index %d is empty", i))
		}
	}
	return nil
}

// convertEmbeddingResponse orders vectors by their response index and checks
// that every input got exactly one.
func convertEmbeddingResponse(response *openai.CreateEmbeddingResponse, expected int) (model.EmbeddingVectors, error) {
	if response == nil {
		return nil, utils.WrapIfNotNil(errors.New("nil embedding response"))
	}
	if len(response.Data) == 0 {
		return nil, utils.WrapIfNotNil(errors.New("embedding response has no data"))
	}
	if expected > 0 && len(response.Data) != expected {
		return nil, utils.WrapIfNotNil(
			fmt.Errorf("embedding response size mismatch: expected %d, got %d", expected, len(response.Data)),
		)
	}

	vectors := make(model.EmbeddingVectors, len(response.Data))
	for _, item := range response.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(vectors) {
			return nil, utils.WrapIfNotNil(fmt.Errorf("embedding index out of range: %d", item.Index))
		}
		if vectors[idx] != nil {
			return nil, utils.WrapIfNotNil(fmt.Errorf("duplicate embedding index: %d", item.Index))
		}
		vectors[idx] = append(model.EmbeddingVector{}, item.Embedding...)
	}

	for i, vector := range vectors {
		if vector == nil {
			return nil, utils.WrapIfNotNil(fmt.Errorf("missing embedding vector for index %d", i))
		}
	}
	return vectors, nil
}
