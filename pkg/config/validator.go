package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Nephrolytics-ai/quizpipe/pkg/dedup"
	"github.com/Nephrolytics-ai/quizpipe/pkg/llms"
	"github.com/Nephrolytics-ai/quizpipe/pkg/model"
	"github.com/Nephrolytics-ai/quizpipe/pkg/store"
	"github.com/sirupsen/logrus"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(c.Articles.Dir) == "" {
		errs = append(errs, ValidationError{Field: "articles.dir", Message: "articles directory is required"})
	}

	errs = append(errs, validateProvider("generation", c.Generation)...)
	errs = append(errs, validateProvider("embedding", c.Embedding)...)

	if c.Generation.Temperature != nil && (*c.Generation.Temperature < 0 || *c.Generation.Temperature > 2) {
		errs = append(errs, ValidationError{Field: "generation.temperature", Message: "temperature must be between 0 and 2"})
	}
	if c.Generation.MaxTokens < 0 {
		errs = append(errs, ValidationError{Field: "generation.max_tokens", Message: "max_tokens must not be negative"})
	}
	if c.Generation.ReasoningLevel != "" {
		if _, ok := model.ParseReasoningLevel(c.Generation.ReasoningLevel); !ok {
			errs = append(errs, ValidationError{
				Field:   "generation.reasoning_level",
				Message: fmt.Sprintf("unknown reasoning level %q", c.Generation.ReasoningLevel),
			})
		}
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, ValidationError{Field: "embedding.dimensions", Message: "dimensions must not be negative"})
	}

	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		errs = append(errs, ValidationError{Field: "dedup.threshold", Message: "threshold must be in (0, 1]"})
	}
	if _, err := dedup.ParseStrategy(c.Dedup.Strategy); err != nil {
		errs = append(errs, ValidationError{Field: "dedup.strategy", Message: err.Error()})
	}

	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case store.DriverJSON:
		if c.Store.QuizDir == "" || c.Store.ErrorDir == "" {
			errs = append(errs, ValidationError{Field: "store", Message: "quiz_dir and error_dir are required for the json driver"})
		}
	case store.DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, ValidationError{Field: "store.sqlite_path", Message: "sqlite_path is required for the sqlite driver"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "store.driver",
			Message: fmt.Sprintf("unknown store driver %q", c.Store.Driver),
		})
	}

	if c.Pipeline.RequestTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "pipeline.request_timeout", Message: "request_timeout must be positive"})
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{Field: "logging.level", Message: err.Error()})
	}
	if format := strings.ToLower(c.Logging.Format); format != "text" && format != "json" {
		errs = append(errs, ValidationError{Field: "logging.format", Message: "format must be text or json"})
	}

	return errs
}

func validateProvider(section string, pc ProviderConfig) []ValidationError {
	var errs []ValidationError
	if _, err := llms.ParseProvider(pc.Provider); err != nil {
		errs = append(errs, ValidationError{Field: section + ".provider", Message: err.Error()})
	}
	if pc.BaseURL != "" {
		if u, err := url.Parse(pc.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{Field: section + ".base_url", Message: "invalid base URL"})
		}
	}
	return errs
}
