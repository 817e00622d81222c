package quiz

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	OptionCount = 4

	ErrorStatus           = "error"
	ReasonSimilarQuestion = "Similar question detected"
)

// Candidate is a generated question before it has been embedded.
type Candidate struct {
	Question        string   `json:"question" jsonschema:"description=The quiz question. Must be answerable from the article alone."`
	Options         []string `json:"options" jsonschema:"description=Exactly four distinct answer options,minItems=4,maxItems=4"`
	CorrectAnswer   string   `json:"correct_answer" jsonschema:"description=The correct option. Must match one of the options exactly."`
	ConfidenceScore float64  `json:"confidence_score" jsonschema:"description=Confidence that the question is correct and well formed,minimum=0,maximum=1"`
}

// Validate checks the candidate shape and returns every problem found.
func (c Candidate) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Question) == "" {
		errs = append(errs, errors.New("question is empty"))
	}

	if len(c.Options) != OptionCount {
		errs = append(errs, fmt.Errorf("expected %d options, got %d", OptionCount, len(c.Options)))
	}
	seen := make(map[string]struct{}, len(c.Options))
	for i, option := range c.Options {
		key := strings.TrimSpace(option)
		if key == "" {
			errs = append(errs, fmt.Errorf("option %d is empty", i))
			continue
		}
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("option %q is repeated", key))
		}
		seen[key] = struct{}{}
	}

	if strings.TrimSpace(c.CorrectAnswer) == "" {
		errs = append(errs, errors.New("correct_answer is empty"))
	} else if !c.hasOption(c.CorrectAnswer) {
		errs = append(errs, fmt.Errorf("correct_answer %q is not one of the options", c.CorrectAnswer))
	}

	if math.IsNaN(c.ConfidenceScore) || c.ConfidenceScore < 0 || c.ConfidenceScore > 1 {
		errs = append(errs, fmt.Errorf("confidence_score %v is outside [0, 1]", c.ConfidenceScore))
	}

	return errors.Join(errs...)
}

func (c Candidate) hasOption(answer string) bool {
	for _, option := range c.Options {
		if option == answer {
			return true
		}
	}
	return false
}

// QuizRecord is an accepted question together with its embedding.
type QuizRecord struct {
	Question        string    `json:"question"`
	Options         []string  `json:"options"`
	CorrectAnswer   string    `json:"correct_answer"`
	ConfidenceScore float64   `json:"confidence_score"`
	Embedding       []float64 `json:"embedding"`
}

func NewQuizRecord(candidate Candidate, embedding []float64) QuizRecord {
	return QuizRecord{
		Question:        candidate.Question,
		Options:         append([]string(nil), candidate.Options...),
		CorrectAnswer:   candidate.CorrectAnswer,
		ConfidenceScore: candidate.ConfidenceScore,
		Embedding:       append([]float64(nil), embedding...),
	}
}

// ErrorRecord is written instead of a quiz when the question is too close to
// one already accepted.
type ErrorRecord struct {
	Status           string  `json:"status"`
	Reason           string  `json:"reason"`
	SimilarityScore  float64 `json:"similarity_score"`
	NewQuestion      string  `json:"new_question"`
	ExistingQuestion string  `json:"existing_question"`
	MatchedWith      string  `json:"matched_with"`
}

func NewDuplicateRecord(newQuestion, existingQuestion, matchedWith string, similarity float64) ErrorRecord {
	return ErrorRecord{
		Status:           ErrorStatus,
		Reason:           ReasonSimilarQuestion,
		SimilarityScore:  similarity,
		NewQuestion:      newQuestion,
		ExistingQuestion: existingQuestion,
		MatchedWith:      matchedWith,
	}
}
