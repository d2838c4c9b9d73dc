// Package mock provides a test double for the llm package interface.
package mock

import (
	"context"
	"sync"

	"github.com/vaanilabs/vaani/pkg/provider/llm"
)

// ClassifyCall records a single invocation of Classifier.Classify.
type ClassifyCall struct {
	SystemPrompt string
	Transcript   string
}

// Classifier is a mock implementation of llm.Classifier. Thread-safe.
type Classifier struct {
	mu sync.Mutex

	// Reply is returned from every Classify call.
	Reply string

	// Err, if non-nil, is returned from every Classify call, exercising the
	// lexicon fallback path.
	Err error

	// ClassifyCalls records every call to Classify.
	ClassifyCalls []ClassifyCall
}

// Compile-time assertion that Classifier implements llm.Classifier.
var _ llm.Classifier = (*Classifier)(nil)

// Classify records the call and returns Reply, Err.
func (c *Classifier) Classify(_ context.Context, systemPrompt, transcript string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ClassifyCalls = append(c.ClassifyCalls, ClassifyCall{SystemPrompt: systemPrompt, Transcript: transcript})
	if c.Err != nil {
		return "", c.Err
	}
	return c.Reply, nil
}

// Name identifies the mock in logs.
func (c *Classifier) Name() string { return "mock-llm" }
