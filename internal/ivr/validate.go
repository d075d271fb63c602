package ivr

import (
	"strings"
	"unicode"
)

// Validation reason codes. Stored with the conversation step so the audit
// trail explains why an input was rejected.
const (
	ReasonValid           = "valid"
	ReasonTooShort        = "too_short"
	ReasonNonOrderWords   = "contains_non_order_words"
	ReasonTooManyLetters  = "too_many_letters"
	ReasonNoNumberPattern = "no_numbers_or_patterns"
)

// nonOrderWords are phrases speech recognition tends to produce instead of an
// order number. Both supported languages share one list.
var nonOrderWords = []string{
	// entertainment and street names
	"dry", "season", "episode", "movie", "film", "series", "show",
	"lexington", "drive", "street", "avenue", "road", "boulevard",
	"trocken", "saison", "serie",
	"straße", "weg", "allee", "platz", "gasse", "hof",
	"lane", "court",

	// greetings and responses
	"hello", "hi", "yes", "no", "okay", "ok", "sure", "maybe",
	"hallo", "ja", "nein", "sicher", "vielleicht",

	// service words
	"help", "support", "service", "information", "question",
	"hilfe", "frage",

	// filler words
	"the", "and", "or", "but", "with", "from", "to", "for",
	"der", "die", "das", "und", "oder", "aber", "mit", "von", "zu", "für",
}

// ValidateOrderNumber decides whether raw keypad (or fallback speech) input
// plausibly is an order or invoice number. It is deliberately permissive:
// rejecting a real number only costs the caller a re-entry, while accepting a
// misrecognition wastes one lookup.
func ValidateOrderNumber(text, language string) (bool, string) {
	_ = language // reserved for language-scoped denylists

	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 {
		return false, ReasonTooShort
	}
	lower := strings.ToLower(trimmed)

	hasDigit := strings.ContainsFunc(lower, unicode.IsDigit)
	for _, word := range nonOrderWords {
		if !strings.Contains(lower, word) {
			continue
		}
		// A match covering half the input is the input.
		if len(word)*2 >= len(lower) {
			return false, ReasonNonOrderWords
		}
		if !hasDigit && !strings.ContainsAny(lower, "-_.") {
			return false, ReasonNonOrderWords
		}
	}

	if len([]rune(lower)) > 10 && isAllLetters(lower) {
		return false, ReasonTooManyLetters
	}

	if !hasDigit && !strings.ContainsAny(lower, "-_. ") {
		return false, ReasonNoNumberPattern
	}

	return true, ReasonValid
}

func isAllLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return len(s) > 0
}
