package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nephrolytics-ai/quizpipe/pkg/dedup"
	"github.com/Nephrolytics-ai/quizpipe/pkg/quiz"
	"github.com/Nephrolytics-ai/quizpipe/pkg/utils"
)

// RecordStore persists quiz and error records keyed by article ID.
type RecordStore interface {
	// LoadIndex rebuilds the embedding index from every stored quiz record.
	// Unreadable records are logged and skipped.
	LoadIndex(ctx context.Context) (*dedup.Index, error)
	// SaveQuiz writes the quiz for articleID and returns the source reference
	// other records use to point at it.
	SaveQuiz(ctx context.Context, articleID string, record quiz.QuizRecord) (string, error)
	SaveError(ctx context.Context, articleID string, record quiz.ErrorRecord) error
	HasRecord(ctx context.Context, articleID string) (bool, error)
	Close() error
}

const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

type Config struct {
	Driver     string
	QuizDir    string
	ErrorDir   string
	SQLitePath string
}

// Open returns the store selected by cfg.Driver.
func Open(cfg Config) (RecordStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverJSON:
		s, err := NewFileStore(cfg.QuizDir, cfg.ErrorDir)
		if err != nil {
			return nil, utils.WrapIfNotNil(err)
		}
		return s, nil
	case DriverSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, utils.WrapIfNotNil(err)
		}
		return s, nil
	default:
		return nil, utils.WrapIfNotNil(fmt.Errorf("unknown store driver %q", cfg.Driver))
	}
}

// MalformedRecordError describes a stored quiz record that cannot take part
// in duplicate detection.
type MalformedRecordError struct {
	Source string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed record %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed record %s: %s", e.Source, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// checkIndexable reports why a decoded record cannot be indexed, if it cannot.
func checkIndexable(source string, record quiz.QuizRecord) error {
	if len(record.Embedding) == 0 {
		return &MalformedRecordError{Source: source, Reason: "missing embedding"}
	}
	if !dedup.IsFinite(record.Embedding) {
		return &MalformedRecordError{Source: source, Reason: "non-finite embedding"}
	}
	if dedup.Norm(record.Embedding) == 0 {
		return &MalformedRecordError{Source: source, Reason: "zero-norm embedding"}
	}
	return nil
}
