package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type embeddingGenerator struct {
	cfg       model.GeneratorConfig
	newClient clientFactory
}

// NewEmbeddingGenerator embeds through InvokeModel using the Titan text
// embedding request format.
func NewEmbeddingGenerator(opts ...model.GeneratorOption) (model.EmbeddingGenerator, error) {
	cfg := model.ResolveGeneratorOpts(opts...)
	if cfg.EmbeddingDimensions != nil && *cfg.EmbeddingDimensions <= 0 {
		return nil, utils.WrapIfNotNil(errors.New("embedding dimensions must be greater than zero"))
	}
	return &embeddingGenerator{cfg: cfg, newClient: newClient}, nil
}

type titanEmbeddingRequest struct {
	InputText  string `json:"inputText"`
	Dimensions *int   `json:"dimensions,omitempty"`
}

type titanEmbeddingResponse struct {
	Embedding           []float64 `json:"embedding"`
	InputTextTokenCount int64     `json:"inputTextTokenCount"`
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

// GenerateBatch issues one InvokeModel call per input; Titan takes a single
// text per request.
func (g *embeddingGenerator) GenerateBatch(ctx context.Context, inputs []string) (model.EmbeddingVectors, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := model.ResolveModelName(g.cfg, defaultEmbeddingModelName)
	meta := model.NewGenerationMetadata(providerName, modelName)
	defer model.SetLatency(meta, start)

	log := logging.NewLogger(ctx)
	if len(inputs) == 0 {
		err := errors.New("at least one input is required")
		log.Errorf("error: %v", err)
		return nil, meta, utils.WrapIfNotNil(err)
	}
	for i, input := range inputs {
		if strings.TrimSpace(input) == "" {
			err := fmt.Errorf("input at index %d is empty", i)
			log.Errorf("error: %v", err)
			return nil, meta, utils.WrapIfNotNil(err)
		}
	}

	client, err := g.newClient(ctx, g.cfg)
	if err != nil {
		log.Errorf("error: %v", err)
		return nil, meta, utils.WrapIfNotNil(err)
	}

	log.Infof("embedding_request inputs=%d model=%q dimensions=%v", len(inputs), modelName, g.cfg.EmbeddingDimensions)

	vectors := make(model.EmbeddingVectors, 0, len(inputs))
	var inputTokens int64
	for _, input := range inputs {
		body, err := json.Marshal(titanEmbeddingRequest{InputText: input, Dimensions: g.cfg.EmbeddingDimensions})
		if err != nil {
			return nil, meta, utils.WrapIfNotNil(err)
		}

		output, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(modelName),
			Body:        body,
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
		})
		if err != nil {
			log.Errorf("error: %v", err)
			return nil, meta, utils.WrapIfNotNil(err)
		}

		var resp titanEmbeddingResponse
		err = json.Unmarshal(output.Body, &resp)
		if err != nil {
			log.Errorf("error: %v", err)
			return nil, meta, utils.WrapIfNotNil(err)
		}
		if len(resp.Embedding) == 0 {
			err = errors.New("embedding response has no data")
			log.Errorf("error: %v", err)
			return nil, meta, utils.WrapIfNotNil(err)
		}
		vectors = append(vectors, resp.Embedding)
		inputTokens += resp.InputTextTokenCount
	}

	model.SetEmbeddingMetadata(meta, vectors)
	meta[model.MetadataKeyAPICalls] = strconv.Itoa(len(inputs))
	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(inputTokens, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(inputTokens, 10)
	return vectors, meta, nil
}
