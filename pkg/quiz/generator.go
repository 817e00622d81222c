package quiz

import (
	"context"
	"errors"
	"strings"

	"github.com/Nephrolytics-ai/quizpipe/pkg/articles"
	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
)

const DefaultTemperature = 0.1

// Generator asks a structured-output LLM for one quiz candidate per article.
type Generator struct {
	factory model.NewStructureContentGeneratorFunc[Candidate]
	opts    []model.GeneratorOption
}

func NewGenerator(factory model.NewStructureContentGeneratorFunc[Candidate], opts ...model.GeneratorOption) (*Generator, error) {
	if factory == nil {
		return nil, utils.WrapIfNotNil(errors.New("content generator factory is required"))
	}

	resolved := make([]model.GeneratorOption, 0, len(opts)+1)
	resolved = append(resolved, model.WithTemperature(DefaultTemperature))
	resolved = append(resolved, opts...)
	return &Generator{
		factory: factory,
		opts:    resolved,
	}, nil
}

// Generate returns a validated candidate, or a *GenerationError.
func (g *Generator) Generate(ctx context.Context, article articles.Article) (Candidate, model.GenerationMetadata, error) {
	log := logging.NewLogger(ctx)

	if strings.TrimSpace(article.Text) == "" {
		return Candidate{}, nil, g.fail(article, errors.New("article text is empty"))
	}

	generator, err := g.factory(BuildPrompt(article.Text), g.opts...)
	if err != nil {
		return Candidate{}, nil, g.fail(article, utils.WrapIfNotNil(err))
	}
	generator.AddPromptContext(ctx, model.ContextMessageTypeSystem, systemPrompt)

	candidate, meta, err := generator.Generate(ctx)
	if err != nil {
		return Candidate{}, meta, g.fail(article, utils.WrapIfNotNil(err))
	}

	err = candidate.Validate()
	if err != nil {
		return Candidate{}, meta, g.fail(article, utils.WrapIfNotNil(err, "invalid candidate"))
	}

	log.Debugf(
		"quiz_generated article=%s model=%q total_tokens=%s latency_ms=%s",
		article.ID,
		meta[model.MetadataKeyModel],
		meta[model.MetadataKeyTotalTokens],
		meta[model.MetadataKeyLatencyMs],
	)
	return candidate, meta, nil
}

func (g *Generator) fail(article articles.Article, err error) error {
	return &GenerationError{ArticleID: article.ID, Err: err}
}

// Embedder produces the vector for a question's text.
type Embedder struct {
	generator model.EmbeddingGenerator
}

func NewEmbedder(generator model.EmbeddingGenerator) (*Embedder, error) {
	if generator == nil {
		return nil, utils.WrapIfNotNil(errors.New("embedding generator is required"))
	}
	return &Embedder{generator: generator}, nil
}

// Embed returns a non-empty vector for text, or an *EmbeddingError.
func (e *Embedder) Embed(ctx context.Context, text string) (model.EmbeddingVector, model.GenerationMetadata, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, &EmbeddingError{Err: errors.New("text to embed is empty")}
	}

	vector, meta, err := e.generator.Generate(ctx, text)
	if err != nil {
		return nil, meta, &EmbeddingError{Err: utils.WrapIfNotNil(err)}
	}
	if len(vector) == 0 {
		return nil, meta, &EmbeddingError{Err: errors.New("embedding vector is empty")}
	}
	return vector, meta, nil
}
