package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	ollamasdk "github.com/rozoomcool/go-ollama-sdk"
)

type structuredGenerator[T any] struct {
	model.PromptContextSet

	client *client
	prompt string
	cfg    model.GeneratorConfig
}

// NewStructureContentGenerator returns a generator that constrains the chat
// response with Ollama's format field and, if the output still fails to
// parse, asks the model once to reformat it.
func NewStructureContentGenerator[T any](prompt string, opts ...model.GeneratorOption) (model.ContentGenerator[T], error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, utils.WrapIfNotNil(errors.New("prompt is required"))
	}

	cfg := model.ResolveGeneratorOpts(opts...)
	return &structuredGenerator[T]{
		client: newClient(cfg),
		prompt: prompt,
		cfg:    cfg,
	}, nil
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   map[string]any `json:"format,omitempty"`
	Options  *chatOptions   `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int64       `json:"prompt_eval_count,omitempty"`
	EvalCount       int64       `json:"eval_count,omitempty"`
	Error           string      `json:"error,omitempty"`
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
	instruction, err := buildStructuredOutputInstruction(schema)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}

	messages := buildMessages(g.prompt, g.PromptContexts())
	messages = append(messages, chatMessage{Role: "user", Content: instruction})

	log.Infof("structured_request model=%q messages=%d base_url=%q", modelName, len(messages), g.client.baseURL)

	var response chatResponse
	err = g.client.postJSON(ctx, "/api/chat", chatTimeout, chatRequest{
		Model:    modelName,
		Messages: messages,
		Stream:   false,
		Format:   schema,
		Options:  buildChatOptions(g.cfg),
	}, &response)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}
	if response.Error != "" {
		err = errors.New(response.Error)
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}
	applyChatMetadata(meta, response)

	text := strings.TrimSpace(response.Message.Content)
	var out T
	err = json.Unmarshal([]byte(utils.ExtractJSONPayload(text)), &out)
	if err == nil {
		return out, meta, nil
	}

	log.Warnf("structured output parse failed, attempting repair: %v", err)
	meta[model.MetadataKeyRepairRounds] = "1"
	repaired, repairErr := g.repairStructuredJSON(modelName, schema, text)
	if repairErr != nil {
		log.Errorf("error: %v", repairErr)
		return zero, meta, utils.WrapIfNotNil(errors.Join(err, repairErr))
	}

	err = json.Unmarshal([]byte(utils.ExtractJSONPayload(repaired)), &out)
	if err != nil {
		log.Errorf("error: %v", err)
		return zero, meta, utils.WrapIfNotNil(err)
	}
	return out, meta, nil
}

func buildMessages(prompt string, contexts []*model.PromptContext) []chatMessage {
	messages := make([]chatMessage, 0, len(contexts)+2)
	for _, contextItem := range contexts {
		role := "user"
		switch contextItem.MessageType {
		case model.ContextMessageTypeSystem:
			role = "system"
		case model.ContextMessageTypeAssistant:
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: contextItem.Content})
	}
	return append(messages, chatMessage{Role: "user", Content: prompt})
}

func buildChatOptions(cfg model.GeneratorConfig) *chatOptions {
	if cfg.Temperature == nil && cfg.MaxTokens == nil {
		return nil
	}
	return &chatOptions{
		Temperature: cfg.Temperature,
		NumPredict:  cfg.MaxTokens,
	}
}

func buildStructuredOutputInstruction(schema model.JSONSchema) (string, error) {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	return "Return ONLY valid JSON matching this schema. Do not include markdown fences.\n" + string(schemaBytes), nil
}

func applyChatMetadata(meta model.GenerationMetadata, response chatResponse) {
	meta[model.MetadataKeyAPICalls] = "1"
	model.SetTokenUsage(meta, response.PromptEvalCount, response.EvalCount, response.PromptEvalCount+response.EvalCount)
	if response.Done {
		meta[model.MetadataKeyResponseStatus] = "done"
	}
	if strings.TrimSpace(response.Model) != "" {
		meta[model.MetadataKeyModel] = response.Model
	}
}

func (g *structuredGenerator[T]) repairStructuredJSON(modelName string, schema model.JSONSchema, rawOutput string) (string, error) {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	messages := []ollamasdk.ChatMessage{
		{
			Role:    "system",
			Content: "You are a strict JSON formatter.",
		},
		{
			Role: "user",
			Content: "Reformat the following output into valid JSON matching this schema. Return only JSON.\n\n" +
				"Schema:\n" + string(schemaBytes) + "\n\n" +
				"Output:\n" + rawOutput,
		},
	}

	text, err := g.client.apiClient.Chat(modelName, messages)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	return strings.TrimSpace(text), nil
}
