// Package langid resolves which language a call should be conducted in.
//
// Two entry points:
//
//   - [FromState] maps an Indian state name to the initial call language.
//   - [Classify] detects the language of an ASR transcript.
//
// Classification is deterministic and rule-based. Script detection is
// authoritative: a single Devanagari or Tamil rune outweighs any amount of
// Latin text, because ASR output for code-mixed speech usually carries at
// least one native-script word. Romanized Hindi is caught by phrase and token
// lexicons with fuzzy matching to absorb ASR spelling drift ("teek" for
// "theek"). English requires a supermajority of recognized English tokens.
package langid

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Language is a BCP 47 style tag for the eleven supported call languages.
type Language string

const (
	English   Language = "en-IN"
	Hindi     Language = "hi-IN"
	Tamil     Language = "ta-IN"
	Telugu    Language = "te-IN"
	Kannada   Language = "kn-IN"
	Malayalam Language = "ml-IN"
	Gujarati  Language = "gu-IN"
	Marathi   Language = "mr-IN"
	Bengali   Language = "bn-IN"
	Punjabi   Language = "pa-IN"
	Odia      Language = "or-IN"
)

// Supported reports whether tag names one of the eleven call languages.
func Supported(tag Language) bool {
	switch tag {
	case English, Hindi, Tamil, Telugu, Kannada, Malayalam,
		Gujarati, Marathi, Bengali, Punjabi, Odia:
		return true
	}
	return false
}

// englishThreshold is the fraction of recognized English tokens (length ≥ 3)
// required before a Latin-script transcript is classified as English.
const englishThreshold = 0.7

// DefaultStateMap is the built-in state → language table. Keys are
// lower-cased full state names. Config may override or extend it.
var DefaultStateMap = map[string]Language{
	"uttar pradesh":    Hindi,
	"bihar":            Hindi,
	"madhya pradesh":   Hindi,
	"rajasthan":        Hindi,
	"haryana":          Hindi,
	"jharkhand":        Hindi,
	"chhattisgarh":     Hindi,
	"uttarakhand":      Hindi,
	"himachal pradesh": Hindi,
	"delhi":            Hindi,
	"tamil nadu":       Tamil,
	"telangana":        Telugu,
	"andhra pradesh":   Telugu,
	"karnataka":        Kannada,
	"kerala":           Malayalam,
	"gujarat":          Gujarati,
	"maharashtra":      Marathi,
	"west bengal":      Bengali,
	"tripura":          Bengali,
	"punjab":           Punjabi,
	"odisha":           Odia,
}

// scriptOrder fixes the script probe order; a mixed-script transcript
// resolves to the first script that matches any rune, probing in this order
// per rune.
var scriptOrder = []struct {
	table *unicode.RangeTable
	lang  Language
}{
	{unicode.Devanagari, Hindi},
	{unicode.Tamil, Tamil},
	{unicode.Telugu, Telugu},
	{unicode.Kannada, Kannada},
	{unicode.Malayalam, Malayalam},
	{unicode.Bengali, Bengali},
	{unicode.Gujarati, Gujarati},
	{unicode.Gurmukhi, Punjabi},
	{unicode.Oriya, Odia},
}

// hindiPhrases are romanized multi-word phrases that identify Hindi on their
// own. Matched as substrings of the normalized transcript.
var hindiPhrases = []string{
	"ji haan", "haan ji", "ji nahi", "nahi ji",
	"theek hai", "thik hai", "acha ji", "accha ji",
	"bilkul sahi", "haan bilkul", "kya baat",
	"sun rahe", "bol raha", "bol rahi",
}

// hindiTokens are single romanized Hindi words. One fuzzy match (edit
// distance ≤ 1 for words of 4+ letters) classifies the transcript as Hindi.
var hindiTokens = []string{
	"ji", "haan", "han", "nahi", "nahin", "acha", "accha", "achha",
	"theek", "thik", "bilkul", "kyun", "kya", "kaun", "kab",
	"matlab", "samajh", "bolo", "suno", "ruko", "karo",
	"paisa", "paise", "rupay", "rupaye", "zaroor", "shayad",
}

// englishWords is the recognition lexicon for the English supermajority
// check. Small on purpose: common conversational words plus the domain terms
// callers actually say on a collections call.
var englishWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "and", "yes", "yeah", "yep", "okay", "sure", "fine", "right",
		"not", "now", "later", "please", "thanks", "thank", "you", "your",
		"this", "that", "what", "when", "where", "who", "why", "how",
		"can", "could", "will", "would", "should", "have", "has", "had",
		"pay", "paid", "payment", "money", "amount", "loan", "due", "date",
		"call", "back", "again", "agent", "speak", "talk", "connect",
		"know", "need", "want", "time", "today", "tomorrow", "month",
		"wait", "hold", "sorry", "hello", "busy", "already", "done",
		"wrong", "number", "interested", "remind", "reminder",
	} {
		englishWords[w] = struct{}{}
	}
}

// FromState maps a state name to the initial call language using stateMap,
// falling back to [DefaultStateMap] when stateMap is nil. Matching is
// case-insensitive on the full name; unknown states default to English.
func FromState(state string, stateMap map[string]Language) Language {
	if stateMap == nil {
		stateMap = DefaultStateMap
	}
	if lang, ok := stateMap[strings.ToLower(strings.TrimSpace(state))]; ok {
		return lang
	}
	return English
}

// Classify determines the language of a transcript. Priority: Indic script
// detection, romanized Hindi phrases, romanized Hindi tokens, English
// supermajority, then English as the default. An empty transcript returns
// English.
func Classify(transcript string) Language {
	if lang, ok := detectScript(transcript); ok {
		return lang
	}

	norm := normalize(transcript)
	if norm == "" {
		return English
	}

	for _, phrase := range hindiPhrases {
		if strings.Contains(norm, phrase) {
			return Hindi
		}
	}

	tokens := strings.Fields(norm)
	for _, tok := range tokens {
		if isHindiToken(tok) {
			return Hindi
		}
	}

	// English supermajority over tokens of length ≥ 3.
	var total, hits int
	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		total++
		if _, ok := englishWords[tok]; ok {
			hits++
		}
	}
	if total > 0 && float64(hits)/float64(total) >= englishThreshold {
		return English
	}

	return English
}

// detectScript returns the language of the first rune belonging to a
// supported Indic script.
func detectScript(s string) (Language, bool) {
	for _, r := range s {
		for _, sc := range scriptOrder {
			if unicode.Is(sc.table, r) {
				return sc.lang, true
			}
		}
	}
	return "", false
}

// isHindiToken matches tok against the Hindi token lexicon. Tokens of 4+
// letters tolerate one edit so ASR spelling drift still matches.
func isHindiToken(tok string) bool {
	for _, h := range hindiTokens {
		if tok == h {
			return true
		}
		if len(tok) >= 4 && len(h) >= 4 && matchr.DamerauLevenshtein(tok, h) <= 1 {
			return true
		}
	}
	return false
}

// normalize lower-cases and strips punctuation, keeping letters, digits, and
// spaces so tokenization is stable across ASR providers.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
