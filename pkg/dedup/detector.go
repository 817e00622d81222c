package dedup

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultThreshold is the similarity at or above which two questions are
// duplicates.
const DefaultThreshold = 0.85

// Strategy picks which match Check reports when several entries qualify.
type Strategy string

const (
	// StrategyFirst reports the first entry at or above the threshold.
	StrategyFirst Strategy = "first"
	// StrategyBest scans every entry and reports the most similar one.
	StrategyBest Strategy = "best"
)

// DefaultStrategy is used when no strategy is configured.
const DefaultStrategy = StrategyBest

// ParseStrategy accepts a strategy name case-insensitively. An empty value
// selects DefaultStrategy.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return DefaultStrategy, nil
	case StrategyFirst:
		return StrategyFirst, nil
	case StrategyBest:
		return StrategyBest, nil
	default:
		return "", fmt.Errorf("unknown dedup strategy %q", value)
	}
}

// Result is the outcome of Check. Match and Similarity are set only for a
// duplicate.
type Result struct {
	Duplicate  bool
	Match      *Entry
	Similarity float64
}

// Detector decides whether a vector duplicates an index entry. Exclude names
// an article whose own entry is skipped, used when regenerating it.
type Detector struct {
	Threshold float64
	Strategy  Strategy
	Exclude   string
}

// NewDetector fills a zero threshold or empty strategy with the defaults.
func NewDetector(threshold float64, strategy Strategy) Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if strategy == "" {
		strategy = DefaultStrategy
	}
	return Detector{Threshold: threshold, Strategy: strategy}
}

// Check compares vector against every entry in idx. A similarity at or above
// the threshold is a duplicate.
func (d Detector) Check(vector []float64, idx *Index) (Result, error) {
	if !IsFinite(vector) || Norm(vector) == 0 {
		return Result{}, &DegenerateVectorError{Source: "candidate"}
	}

	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var best Result
	for _, entry := range idx.Entries() {
		if d.Exclude != "" && entry.ArticleID == d.Exclude {
			continue
		}

		sim, err := CosineSimilarity(vector, entry.Embedding)
		if err != nil {
			var degenerate *DegenerateVectorError
			if errors.As(err, &degenerate) {
				degenerate.Source = entry.Source
			}
			return Result{}, err
		}
		if sim < threshold {
			continue
		}

		match := entry
		if d.Strategy == StrategyFirst {
			return Result{Duplicate: true, Match: &match, Similarity: sim}, nil
		}
		if !best.Duplicate || sim > best.Similarity {
			best = Result{Duplicate: true, Match: &match, Similarity: sim}
		}
	}
	return best, nil
}
