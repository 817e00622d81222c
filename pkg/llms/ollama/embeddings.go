package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
)

type embeddingGenerator struct {
	client *client
	cfg    model.GeneratorConfig
}

func NewEmbeddingGenerator(opts ...model.GeneratorOption) (model.EmbeddingGenerator, error) {
	cfg := model.ResolveGeneratorOpts(opts...)
	return &embeddingGenerator{
		client: newClient(cfg),
		cfg:    cfg,
	}, nil
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

	log.Infof("embedding_request inputs=%d model=%q base_url=%q", len(inputs), modelName, g.client.baseURL)

	vectors, err := g.client.embed(ctx, modelName, inputs)
	if err != nil {
		log.Errorf("error: %v", err)
		return nil, meta, utils.WrapIfNotNil(err)
	}

	model.SetEmbeddingMetadata(meta, vectors)
	return vectors, meta, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type legacyEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type legacyEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// embed calls /api/embed and falls back to the older single-input
// /api/embeddings endpoint when the server does not know the new one.
func (c *client) embed(ctx context.Context, modelName string, inputs []string) (model.EmbeddingVectors, error) {
	var resp embedResponse
	err := c.postJSON(ctx, "/api/embed", embeddingTimeout, embedRequest{Model: modelName, Input: inputs}, &resp)
	if err == nil {
		if len(resp.Embeddings) != len(inputs) {
			return nil, utils.WrapIfNotNil(
				fmt.Errorf("embedding response size mismatch: expected %d, got %d", len(inputs), len(resp.Embeddings)),
			)
		}
		vectors := make(model.EmbeddingVectors, len(resp.Embeddings))
		for i, vec := range resp.Embeddings {
			vectors[i] = append(model.EmbeddingVector(nil), vec...)
		}
		return vectors, nil
	}

	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound || len(inputs) != 1 {
		return nil, utils.WrapIfNotNil(err)
	}

	var legacy legacyEmbeddingResponse
	err = c.postJSON(ctx, "/api/embeddings", embeddingTimeout, legacyEmbeddingRequest{Model: modelName, Prompt: inputs[0]}, &legacy)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if len(legacy.Embedding) == 0 {
		return nil, utils.WrapIfNotNil(errors.New("embedding response has no data"))
	}
	return model.EmbeddingVectors{append(model.EmbeddingVector(nil), legacy.Embedding...)}, nil
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
