// Package intent classifies short caller replies as affirmative, negative,
// or unclear.
//
// Two classifiers live here. [Lexicon] is deterministic token matching over
// English, romanized Hindi, and the major Indic scripts; the confirmation
// stage uses it directly. [Classifier] fronts the lexicon with a constrained
// LLM call and is consulted only for the agent-connect reply, where phrasing
// is more varied ("sure why not", "not right now"); any LLM failure falls
// back to the lexicon.
package intent

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/vaanilabs/vaani/internal/ratelimit"
	"github.com/vaanilabs/vaani/pkg/provider/llm"
)

// Intent is the classification result.
type Intent string

const (
	Affirmative Intent = "affirmative"
	Negative    Intent = "negative"
	Unclear     Intent = "unclear"
)

// systemPrompt pins the model to a one-word closed label set.
const systemPrompt = `You classify a phone caller's short reply to the question "Would you like me to connect you with an agent?". The reply may be in English, Hindi, or another Indian language, possibly romanized. Answer with exactly one word: affirmative, negative, or unclear. No punctuation, no explanation.`

// Negation words are checked before affirmation: "no haan nahi bolo" should
// not read as a yes, and Hindi negatives often embed "haan" sounds.
var negativeTokens = map[string]struct{}{}
var affirmativeTokens = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"no", "nope", "nah", "not", "dont", "don't", "never", "cancel", "stop",
		"nahi", "nahin", "nako", "venda", "beda", "vaddu", "illa", "illai",
		"नहीं", "नही", "मत", "না", "இல்லை", "வேண்டாம்", "వద్దు", "బేడ",
		"ನಿಲ್ಲ", "ಬೇಡ", "വേണ്ട", "ના", "ਨਹੀਂ", "ନାହିଁ",
	} {
		negativeTokens[w] = struct{}{}
	}
	for _, w := range []string{
		"yes", "yeah", "yep", "sure", "okay", "ok", "fine", "right", "correct",
		"connect", "please", "definitely", "absolutely",
		"haan", "han", "ji", "ha", "theek", "thik", "acha", "accha", "bilkul",
		"sari", "seri", "aama", "avunu", "houdu", "athe", "ho",
		"हाँ", "हां", "जी", "ठीक", "बिल्कुल", "अच्छा", "হ্যাঁ", "ঠিক",
		"ஆமாம்", "சரி", "అవును", "సరే", "ಹೌದು", "ಸರಿ", "അതെ", "ശരി",
		"હા", "ਹਾਂ", "ਠੀਕ", "ହଁ", "ठीक", "हो",
	} {
		affirmativeTokens[w] = struct{}{}
	}
}

// Lexicon classifies a transcript by token lookup alone. Negation wins over
// affirmation when both appear; no match at all is [Unclear].
func Lexicon(transcript string) Intent {
	tokens := tokenize(transcript)
	var sawAffirmative bool
	for _, tok := range tokens {
		if _, ok := negativeTokens[tok]; ok {
			return Negative
		}
		if _, ok := affirmativeTokens[tok]; ok {
			sawAffirmative = true
		}
	}
	if sawAffirmative {
		return Affirmative
	}
	return Unclear
}

// Classifier is the LLM-primary classifier for the agent-connect reply.
type Classifier struct {
	llm     llm.Classifier
	limiter *ratelimit.Limiter
	log     *slog.Logger
}

// NewClassifier creates a Classifier. llmc may be nil, in which case only
// the lexicon runs; limiter may be nil to disable limiting.
func NewClassifier(llmc llm.Classifier, limiter *ratelimit.Limiter, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{llm: llmc, limiter: limiter, log: log}
}

// Classify determines the caller's intent. The LLM is consulted first; on
// limiter denial, LLM error, or an unparseable completion the lexicon
// decides. Never returns an error: an unclassifiable reply is [Unclear].
func (c *Classifier) Classify(ctx context.Context, transcript string) Intent {
	if c.llm != nil && (c.limiter == nil || c.limiter.Allow()) {
		reply, err := c.llm.Classify(ctx, systemPrompt, transcript)
		if err != nil {
			c.log.Warn("intent llm failed, using lexicon", "error", err)
		} else if in, ok := parseLabel(reply); ok {
			return in
		} else {
			c.log.Warn("intent llm returned unparseable label, using lexicon", "reply", reply)
		}
	}
	return Lexicon(transcript)
}

// parseLabel maps a model completion onto the closed label set.
func parseLabel(reply string) (Intent, bool) {
	switch strings.ToLower(strings.TrimSpace(strings.Trim(reply, ".!\"' "))) {
	case "affirmative":
		return Affirmative, true
	case "negative":
		return Negative, true
	case "unclear":
		return Unclear, true
	}
	return Unclear, false
}

// tokenize lower-cases and splits on anything that is not a letter, digit,
// or combining mark. Indic scripts write vowel signs as combining marks, so
// splitting on them would shred words like "हाँ" mid-syllable.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.M, r)
	})
}
