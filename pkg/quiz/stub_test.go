package quiz

import (
	"context"
	"errors"

	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
)

type stubContentGenerator struct {
	prompt   string
	cfg      model.GeneratorConfig
	contexts []*model.PromptContext
	out      Candidate
	err      error
}

func (g *stubContentGenerator) Generate(context.Context) (Candidate, model.GenerationMetadata, error) {
	meta := model.NewGenerationMetadata("stub", model.ResolveModelName(g.cfg, "stub-model"))
	return g.out, meta, g.err
}

func (g *stubContentGenerator) AddPromptContext(_ context.Context, messageType model.ContextMessageType, content string) {
	g.contexts = append(g.contexts, &model.PromptContext{MessageType: messageType, Content: content})
}

func stubFactory(out Candidate, err error, captured **stubContentGenerator) model.NewStructureContentGeneratorFunc[Candidate] {
	return func(prompt string, opts ...model.GeneratorOption) (model.ContentGenerator[Candidate], error) {
		g := &stubContentGenerator{
			prompt: prompt,
			cfg:    model.ResolveGeneratorOpts(opts...),
			out:    out,
			err:    err,
		}
		if captured != nil {
			*captured = g
		}
		return g, nil
	}
}

type stubEmbeddingGenerator struct {
	vector model.EmbeddingVector
	err    error
	inputs []string
}

func (g *stubEmbeddingGenerator) Generate(_ context.Context, input string) (model.EmbeddingVector, model.GenerationMetadata, error) {
	g.inputs = append(g.inputs, input)
	return g.vector, model.GenerationMetadata{}, g.err
}

func (g *stubEmbeddingGenerator) GenerateBatch(context.Context, []string) (model.EmbeddingVectors, model.GenerationMetadata, error) {
	return nil, nil, errors.New("not implemented")
}
