package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ModelSuite struct {
	suite.Suite
}

func TestModelSuite(t *testing.T) {
	suite.Run(t, new(ModelSuite))
}

type schemaSample struct {
	Name  string   `json:"name" jsonschema:"description=Display name"`
	Tags  []string `json:"tags" jsonschema:"minItems=2,maxItems=2"`
	Score float64  `json:"score" jsonschema:"minimum=0,maximum=1"`
}

func (s *ModelSuite) TestResolveGeneratorOpts() {
	cfg := ResolveGeneratorOpts(
		WithModel("m1"),
		WithTemperature(0.1),
		WithMaxTokens(256),
		WithEmbeddingDimensions(768),
		WithReasoningLevel(ReasoningLevelLow),
		WithURL("http://localhost"),
		WithAuthToken("token"),
		nil,
	)

	s.Require().NotNil(cfg.Model)
	s.Equal("m1", *cfg.Model)
	s.InDelta(0.1, *cfg.Temperature, 1e-9)
	s.Equal(256, *cfg.MaxTokens)
	s.Equal(768, *cfg.EmbeddingDimensions)
	s.Equal(ReasoningLevelLow, *cfg.ReasoningLevel)
	s.Equal("http://localhost", cfg.URL)
	s.Equal("token", cfg.AuthToken)
}

func (s *ModelSuite) TestResolveModelName() {
	s.Equal("fallback", ResolveModelName(GeneratorConfig{}, "fallback"))
	s.Equal("fallback", ResolveModelName(ResolveGeneratorOpts(WithModel("  ")), "fallback"))
	s.Equal("custom", ResolveModelName(ResolveGeneratorOpts(WithModel(" custom ")), "fallback"))
}

func (s *ModelSuite) TestParseReasoningLevel() {
	level, ok := ParseReasoningLevel("high")
	s.True(ok)
	s.Equal(ReasoningLevelHigh, level)

	_, ok = ParseReasoningLevel("")
	s.False(ok)
	_, ok = ParseReasoningLevel("extreme")
	s.False(ok)
}

func (s *ModelSuite) TestGenerateJSONSchema() {
	schema, err := GenerateJSONSchema[schemaSample]()
	s.Require().NoError(err)

	s.Equal("object", schema["type"])
	s.Equal(false, schema["additionalProperties"])
	s.NotContains(schema, "$schema")

	props, ok := schema["properties"].(map[string]any)
	s.Require().True(ok)
	s.Contains(props, "name")
	tags := props["tags"].(map[string]any)
	s.EqualValues(2, tags["minItems"])
	score := props["score"].(map[string]any)
	s.EqualValues(1, score["maximum"])
	s.ElementsMatch([]any{"name", "tags", "score"}, schema["required"])
}

func (s *ModelSuite) TestGenerateJSONSchemaText() {
	text, err := GenerateJSONSchemaText[schemaSample]()
	s.Require().NoError(err)
	s.Contains(text, `"additionalProperties": false`)
}

func (s *ModelSuite) TestPromptContextSet() {
	set := &PromptContextSet{}
	ctx := context.Background()
	set.AddPromptContext(ctx, ContextMessageTypeSystem, "  persona  ")
	set.AddPromptContext(ctx, ContextMessageTypeHuman, "   ")
	set.AddPromptContext(ctx, ContextMessageTypeSystem, "rules")

	contexts := set.PromptContexts()
	s.Require().Len(contexts, 2)
	s.Equal("persona", contexts[0].Content)
	s.Equal("persona\n\nrules", SystemText(contexts))
}

func (s *ModelSuite) TestMetadataHelpers() {
	meta := NewGenerationMetadata("gemini", "")
	s.Equal("unknown", meta[MetadataKeyModel])

	SetLatency(meta, time.Now().Add(-5*time.Millisecond))
	s.NotEmpty(meta[MetadataKeyLatencyMs])

	SetTokenUsage(meta, 3, 4, 7)
	s.Equal("7", meta[MetadataKeyTotalTokens])

	SetEmbeddingMetadata(meta, EmbeddingVectors{{1, 2, 3}})
	s.Equal("1", meta[MetadataKeyEmbeddingCount])
	s.Equal("3", meta[MetadataKeyEmbeddingDims])

	SetLatency(nil, time.Now())
}
