package bedrock

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
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type structuredGenerator[T any] struct {
	model.PromptContextSet

	prompt    string
	cfg       model.GeneratorConfig
	newClient clientFactory
}

// NewStructureContentGenerator returns a Converse-based generator. Converse
// has no schema-constrained mode, so the schema travels in the prompt.
func NewStructureContentGenerator[T any](prompt string, opts ...model.GeneratorOption) (model.ContentGenerator[T], error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, utils.WrapIfNotNil(errors.New("prompt is required"))
	}

	return &structuredGenerator[T]{
		prompt:    prompt,
		cfg:       model.ResolveGeneratorOpts(opts...),
		newClient: newClient,
	}, nil
}

func (g *structuredGenerator[T]) Generate(ctx context.Context) (T, model.GenerationMetadata, error) {
	var zero T
	start := time.Now()
	modelName := model.ResolveModelName(g.cfg, defaultModelName)
	meta := model.NewGenerationMetadata(providerName, modelName)
	defer model.SetLatency(meta, start)

	log := logging.NewLogger(ctx)
	schemaText, err := model.GenerateJSONSchemaText[T]()
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}

	prompt := g.prompt + "\n\nReturn ONLY valid JSON that matches this schema:\n" + schemaText
	system, messages := buildMessages(prompt, g.PromptContexts())

	client, err := g.newClient(ctx, g.cfg)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}

	log.Infof(
		"structured_request model=%q messages=%d temperature=%v max_tokens=%v",
		modelName,
		len(messages),
		g.cfg.Temperature,
		g.cfg.MaxTokens,
	)

	output, err := client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelName),
		Messages:        messages,
		System:          system,
		InferenceConfig: buildInferenceConfig(g.cfg),
	})
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}
	applyConverseMetadata(meta, output)

	message, err := extractOutputMessage(output.Output)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}

	text := extractTextFromMessage(message)
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

func buildMessages(prompt string, contexts []*model.PromptContext) ([]bedrocktypes.SystemContentBlock, []bedrocktypes.Message) {
	system := make([]bedrocktypes.SystemContentBlock, 0)
	messages := make([]bedrocktypes.Message, 0, len(contexts)+1)

	for _, contextItem := range contexts {
		switch contextItem.MessageType {
		case model.ContextMessageTypeSystem:
			system = append(system, &bedrocktypes.SystemContentBlockMemberText{Value: contextItem.Content})
		case model.ContextMessageTypeAssistant:
			messages = append(messages, textMessage(bedrocktypes.ConversationRoleAssistant, contextItem.Content))
		default:
			messages = append(messages, textMessage(bedrocktypes.ConversationRoleUser, contextItem.Content))
		}
	}

	messages = append(messages, textMessage(bedrocktypes.ConversationRoleUser, prompt))
	return system, messages
}

func textMessage(role bedrocktypes.ConversationRole, text string) bedrocktypes.Message {
	return bedrocktypes.Message{
		Role: role,
		Content: []bedrocktypes.ContentBlock{
			&bedrocktypes.ContentBlockMemberText{Value: text},
		},
	}
}

func buildInferenceConfig(cfg model.GeneratorConfig) *bedrocktypes.InferenceConfiguration {
	if cfg.MaxTokens == nil && cfg.Temperature == nil {
		return nil
	}

	inference := &bedrocktypes.InferenceConfiguration{}
	if cfg.MaxTokens != nil {
		inference.MaxTokens = aws.Int32(int32(*cfg.MaxTokens))
	}
	if cfg.Temperature != nil {
		inference.Temperature = aws.Float32(float32(*cfg.Temperature))
	}
	return inference
}

func applyConverseMetadata(meta model.GenerationMetadata, output *bedrockruntime.ConverseOutput) {
	if meta == nil || output == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	if output.Usage != nil {
		model.SetTokenUsage(
			meta,
			int64(aws.ToInt32(output.Usage.InputTokens)),
			int64(aws.ToInt32(output.Usage.OutputTokens)),
			int64(aws.ToInt32(output.Usage.TotalTokens)),
		)
		meta[model.MetadataKeyCachedInputTokens] = strconv.FormatInt(int64(aws.ToInt32(output.Usage.CacheReadInputTokens)), 10)
	}
	if output.StopReason != "" {
		meta[model.MetadataKeyResponseStatus] = string(output.StopReason)
	}
}

func extractOutputMessage(output bedrocktypes.ConverseOutput) (bedrocktypes.Message, error) {
	if output == nil {
		return bedrocktypes.Message{}, utils.WrapIfNotNil(errors.New("converse output is nil"))
	}

	messageOutput, ok := output.(*bedrocktypes.ConverseOutputMemberMessage)
	if !ok || messageOutput == nil {
		return bedrocktypes.Message{}, utils.WrapIfNotNil(errors.New("converse output is not a message"))
	}
	return messageOutput.Value, nil
}

func extractTextFromMessage(message bedrocktypes.Message) string {
	parts := make([]string, 0)
	for _, block := range message.Content {
		textBlock, ok := block.(*bedrocktypes.ContentBlockMemberText)
		if !ok || textBlock == nil {
			continue
		}
		value := strings.TrimSpace(textBlock.Value)
		if value == "" {
			continue
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, "\n")
}
