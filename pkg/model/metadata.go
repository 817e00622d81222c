package model

import (
	"strconv"
	"strings"
	"time"
)

func NewGenerationMetadata(provider string, modelName string) GenerationMetadata {
	if strings.TrimSpace(modelName) == "" {
		modelName = "unknown"
	}

	return GenerationMetadata{
		MetadataKeyProvider: provider,
		MetadataKeyModel:    modelName,
	}
}

// SetLatency records the time elapsed since start. Meant to be deferred.
func SetLatency(meta GenerationMetadata, start time.Time) {
	if meta == nil {
		return
	}
	meta[MetadataKeyLatencyMs] = strconv.FormatInt(time.Since(start).Milliseconds(), 10)
}

func SetTokenUsage(meta GenerationMetadata, input, output, total int64) {
	if meta == nil {
		return
	}
	meta[MetadataKeyInputTokens] = strconv.FormatInt(input, 10)
	meta[MetadataKeyOutputTokens] = strconv.FormatInt(output, 10)
	meta[MetadataKeyTotalTokens] = strconv.FormatInt(total, 10)
}

func SetEmbeddingMetadata(meta GenerationMetadata, vectors EmbeddingVectors) {
	if meta == nil {
		return
	}

	meta[MetadataKeyEmbeddingCount] = strconv.Itoa(len(vectors))
	if len(vectors) > 0 {
		meta[MetadataKeyEmbeddingDims] = strconv.Itoa(len(vectors[0]))
	}
	meta[MetadataKeyOutputTokens] = "0"
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}
