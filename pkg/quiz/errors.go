package quiz

import "fmt"

// GenerationError reports that no valid candidate could be produced for an
// article.
type GenerationError struct {
	ArticleID string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("quiz generation failed for %s: %v", e.ArticleID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// EmbeddingError reports that the question text could not be embedded.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("question embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
