package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
	ollamasdk "github.com/rozoomcool/go-ollama-sdk"
)

const (
	providerName               = "ollama"
	defaultGenerationModelName = "llama3.1"
	defaultEmbeddingModelName  = "nomic-embed-text"
	defaultBaseURL             = "http://localhost:11434"

	chatTimeout      = 180 * time.Second
	embeddingTimeout = 120 * time.Second
)

type client struct {
	apiClient *ollamasdk.OllamaClient
	baseURL   string
}

func newClient(cfg model.GeneratorConfig) *client {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL"))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &client{
		apiClient: ollamasdk.NewClient(baseURL),
		baseURL:   baseURL,
	}
}

type httpStatusError struct {
	StatusCode int
	Message    string
}

func (e *httpStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ollama request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ollama request failed with status %d", e.StatusCode)
}

// postJSON sends body to path and decodes a 2xx response into out. Non-2xx
// responses come back as *httpStatusError.
func (c *client) postJSON(ctx context.Context, path string, timeout time.Duration, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	httpClient := &http.Client{Timeout: timeout}
	response, err := httpClient.Do(request)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	defer response.Body.Close()

	rawBody, err := io.ReadAll(response.Body)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(rawBody, &errBody)
		return &httpStatusError{StatusCode: response.StatusCode, Message: strings.TrimSpace(errBody.Error)}
	}

	err = json.Unmarshal(rawBody, out)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	return nil
}
