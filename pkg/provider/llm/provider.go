// Package llm defines the constrained-classifier capability used by the
// intent stage.
//
// This is deliberately not a general chat interface. The engine asks the
// model exactly one kind of question (classify a short caller reply into a
// closed label set) and reads back a single word. Anything richer belongs in
// a different capability.
package llm

import "context"

// Classifier asks a language model to label a transcript.
type Classifier interface {
	// Classify sends the system prompt and the caller transcript and returns
	// the model's raw completion text, trimmed. The caller validates the
	// label; an unparseable completion is not an error here.
	Classify(ctx context.Context, systemPrompt, transcript string) (string, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}
