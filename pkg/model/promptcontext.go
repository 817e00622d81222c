package model

import (
	"context"
	"strings"
	"sync"

	"github.com/Nephrolytics-ai/quizpipe/pkg/logging"
)

// PromptContextSet collects prompt contexts for a generator. Providers embed
// it to satisfy the AddPromptContext half of ContentGenerator.
type PromptContextSet struct {
	mu       sync.RWMutex
	contexts []*PromptContext
}

func (s *PromptContextSet) AddPromptContext(ctx context.Context, messageType ContextMessageType, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contexts = append(s.contexts, &PromptContext{
		MessageType: messageType,
		Content:     content,
	})
	logging.NewLogger(ctx).Debugf("AddPromptContext type=%s total_contexts=%d", messageType, len(s.contexts))
}

// PromptContexts returns a copy of the non-empty contexts in insertion order.
func (s *PromptContextSet) PromptContexts() []*PromptContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*PromptContext, 0, len(s.contexts))
	for _, item := range s.contexts {
		if item == nil || strings.TrimSpace(item.Content) == "" {
			continue
		}
		out = append(out, &PromptContext{
			MessageType: item.MessageType,
			Content:     strings.TrimSpace(item.Content),
		})
	}
	return out
}

// SystemText joins all system contexts, for providers that take a single
// system instruction.
func SystemText(contexts []*PromptContext) string {
	parts := make([]string, 0)
	for _, item := range contexts {
		if item.MessageType == ContextMessageTypeSystem {
			parts = append(parts, item.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
