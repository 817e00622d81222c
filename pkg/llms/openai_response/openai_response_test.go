package openai_response

import (
	"context"
	"testing"

	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"github.com/stretchr/testify/suite"
)

type GeneratorOptionValidationSuite struct {
	suite.Suite
}

func TestGeneratorOptionValidationSuite(t *testing.T) {
	suite.Run(t, new(GeneratorOptionValidationSuite))
}

func (s *GeneratorOptionValidationSuite) TestTemperatureOnReasoningModelReturnsErrorWhenStrict() {
	cfg := model.ResolveGeneratorOpts(model.WithTemperature(0.2))

	_, err := normalizeGeneratorOptionsForModel("gpt-5-mini", cfg, nil)

	s.Require().Error(err)
	s.Contains(err.Error(), "temperature is not supported for reasoning model")
}

func (s *GeneratorOptionValidationSuite) TestReasoningOnNonReasoningModelReturnsErrorWhenStrict() {
	cfg := model.ResolveGeneratorOpts(model.WithReasoningLevel(model.ReasoningLevelLow))

	_, err := normalizeGeneratorOptionsForModel("gpt-4.1-mini", cfg, nil)

	s.Require().Error(err)
	s.Contains(err.Error(), "reasoning effort is not supported for non-reasoning model")
}

func (s *GeneratorOptionValidationSuite) TestInvalidOptionsAreDroppedWhenConfigured() {
	cfg := model.ResolveGeneratorOpts(
		model.WithIgnoreInvalidGeneratorOptions(true),
		model.WithTemperature(0.1),
		model.WithReasoningLevel(model.ReasoningLevelLow),
	)

	normalized, err := normalizeGeneratorOptionsForModel("gpt-5-mini", cfg, nil)
	s.Require().NoError(err)
	s.Nil(normalized.Temperature)
	s.NotNil(normalized.ReasoningLevel)

	normalized, err = normalizeGeneratorOptionsForModel("gpt-4.1-mini", cfg, nil)
	s.Require().NoError(err)
	s.NotNil(normalized.Temperature)
	s.Nil(normalized.ReasoningLevel)
}

func (s *GeneratorOptionValidationSuite) TestBuildParamsCarriesSchemaAndContexts() {
	cfg := model.ResolveGeneratorOpts(model.WithTemperature(0.1), model.WithMaxTokens(300))
	schema := model.JSONSchema{"type": "object"}
	contexts := []*model.PromptContext{{MessageType: model.ContextMessageTypeSystem, Content: "persona"}}

	params, err := buildParams("prompt", contexts, "gpt-4.1-mini", cfg, schema, nil)
	s.Require().NoError(err)
	s.Len(params.Input.OfInputItemList, 2)
	s.Equal(shared.ResponsesModel("gpt-4.1-mini"), params.Model)
	s.Require().NotNil(params.Text.Format.OfJSONSchema)
	s.Equal("structured_output", params.Text.Format.OfJSONSchema.Name)
	s.Equal(map[string]any(schema), params.Text.Format.OfJSONSchema.Schema)
	s.Equal(int64(300), params.MaxOutputTokens.Value)
}

func (s *GeneratorOptionValidationSuite) TestNewStructureContentGeneratorRequiresPrompt() {
	_, err := NewStructureContentGenerator[struct{}]("  ")
	s.Error(err)
}

func (s *GeneratorOptionValidationSuite) TestAddPromptContextIsRecorded() {
	g, err := NewStructureContentGenerator[struct{}]("prompt", model.WithAuthToken("test"))
	s.Require().NoError(err)
	g.AddPromptContext(context.Background(), model.ContextMessageTypeSystem, "be concise")

	contexts := g.(*structuredGenerator[struct{}]).PromptContexts()
	s.Require().Len(contexts, 1)
	s.Equal("be concise", contexts[0].Content)
}

type EmbeddingGeneratorSuite struct {
	suite.Suite
}

func TestEmbeddingGeneratorSuite(t *testing.T) {
	suite.Run(t, new(EmbeddingGeneratorSuite))
}

func (s *EmbeddingGeneratorSuite) TestInvalidDimensionsReturnError() {
	generator, err := NewEmbeddingGenerator(model.WithEmbeddingDimensions(0))
	s.Require().Error(err)
	s.Nil(generator)
}

func (s *EmbeddingGeneratorSuite) TestEmptyInputReturnsError() {
	generator, err := NewEmbeddingGenerator(model.WithAuthToken("test"))
	s.Require().NoError(err)

	_, _, err = generator.Generate(context.Background(), "   ")
	s.Error(err)
}

func (s *EmbeddingGeneratorSuite) TestConvertEmbeddingResponseOrdersByIndex() {
	response := &openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{
			{Index: 1, Embedding: []float64{1.5, 2.5}},
			{Index: 0, Embedding: []float64{3.5, 4.5}},
		},
	}

	vectors, err := convertEmbeddingResponse(response, 2)
	s.Require().NoError(err)
	s.Equal(model.EmbeddingVectors{{3.5, 4.5}, {1.5, 2.5}}, vectors)
}

func (s *EmbeddingGeneratorSuite) TestConvertEmbeddingResponseRejectsBadShapes() {
	_, err := convertEmbeddingResponse(&openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{{Index: 0, Embedding: []float64{1.5}}},
	}, 2)
	s.Require().Error(err)
	s.Contains(err.Error(), "embedding response size mismatch")

	_, err = convertEmbeddingResponse(&openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{
			{Index: 0, Embedding: []float64{1}},
			{Index: 0, Embedding: []float64{2}},
		},
	}, 2)
	s.Require().Error(err)
	s.Contains(err.Error(), "duplicate embedding index")
}
