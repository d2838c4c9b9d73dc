package intent

import (
	"context"
	"errors"
	"testing"

	llmmock "github.com/vaanilabs/vaani/pkg/provider/llm/mock"
)

func TestLexicon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		want       Intent
	}{
		{"english yes", "Yes please", Affirmative},
		{"english no", "No, not now", Negative},
		{"romanized hindi yes", "haan ji bilkul", Affirmative},
		{"romanized hindi no", "nahi chahiye", Negative},
		{"devanagari yes", "हाँ जी", Affirmative},
		{"devanagari no", "नहीं चाहिए", Negative},
		{"tamil yes", "ஆமாம் சரி", Affirmative},
		{"telugu no", "వద్దు", Negative},
		{"negation outranks affirmation", "no haan nahi", Negative},
		{"filler", "umm well you know", Unclear},
		{"empty", "", Unclear},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Lexicon(tc.transcript); got != tc.want {
				t.Errorf("Lexicon(%q) = %v, want %v", tc.transcript, got, tc.want)
			}
		})
	}
}

func TestClassifierUsesLLM(t *testing.T) {
	t.Parallel()

	llm := &llmmock.Classifier{Reply: "negative"}
	c := NewClassifier(llm, nil, nil)

	// The lexicon alone would call this affirmative ("sure"); the LLM's
	// verdict wins.
	got := c.Classify(context.Background(), "sure but some other day maybe")
	if got != Negative {
		t.Errorf("Classify = %v, want Negative from LLM", got)
	}
	if len(llm.ClassifyCalls) != 1 {
		t.Errorf("llm called %d times, want 1", len(llm.ClassifyCalls))
	}
}

func TestClassifierFallsBackOnLLMError(t *testing.T) {
	t.Parallel()

	llm := &llmmock.Classifier{Err: errors.New("boom")}
	c := NewClassifier(llm, nil, nil)

	if got := c.Classify(context.Background(), "haan ji"); got != Affirmative {
		t.Errorf("Classify = %v, want Affirmative from lexicon", got)
	}
}

func TestClassifierFallsBackOnUnparseableReply(t *testing.T) {
	t.Parallel()

	llm := &llmmock.Classifier{Reply: "the caller seems interested"}
	c := NewClassifier(llm, nil, nil)

	if got := c.Classify(context.Background(), "yes connect me"); got != Affirmative {
		t.Errorf("Classify = %v, want Affirmative from lexicon", got)
	}
}

func TestClassifierNilLLM(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil, nil, nil)
	if got := c.Classify(context.Background(), "no thanks"); got != Negative {
		t.Errorf("Classify = %v, want Negative", got)
	}
}

func TestParseLabelTolerance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reply string
		want  Intent
		ok    bool
	}{
		{"affirmative", Affirmative, true},
		{"Affirmative.", Affirmative, true},
		{" NEGATIVE ", Negative, true},
		{"unclear", Unclear, true},
		{"yes", Unclear, false},
		{"", Unclear, false},
	}
	for _, tc := range tests {
		got, ok := parseLabel(tc.reply)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parseLabel(%q) = %v, %v; want %v, %v", tc.reply, got, ok, tc.want, tc.ok)
		}
	}
}
