package diagnosis

import (
	"strings"
	"unicode"
)

// ConfirmPolicy decides how a reply that neither affirms nor denies the
// identified species is handled.
type ConfirmPolicy string

const (
	// ConfirmStrict treats anything that is not an affirmation as a denial.
	ConfirmStrict ConfirmPolicy = "strict"
	// ConfirmClarify asks again when the reply is neither yes nor no.
	ConfirmClarify ConfirmPolicy = "clarify"
)

func ParseConfirmPolicy(s string) ConfirmPolicy {
	if ConfirmPolicy(strings.ToLower(strings.TrimSpace(s))) == ConfirmClarify {
		return ConfirmClarify
	}
	return ConfirmStrict
}

type confirmation int

const (
	confirmDeny confirmation = iota
	confirmAffirm
	confirmUnclear
)

// Both word sets match whole words only, so "look" does not read as "ok" and
// "know" does not read as "no".
var affirmations = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "yup": true, "correct": true, "right": true,
	"sure": true, "ok": true, "okay": true, "true": true, "exactly": true, "confirm": true,
	"confirmed": true,
}

var denials = map[string]bool{
	"no": true, "nope": true, "nah": true, "not": true, "wrong": true, "incorrect": true, "false": true,
}

// classifyConfirmation checks denials before affirmations under both
// policies: a reply containing any denial word denies.
func classifyConfirmation(text string, policy ConfirmPolicy) confirmation {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	for _, w := range words {
		if denials[w] {
			return confirmDeny
		}
	}
	for _, w := range words {
		if affirmations[w] {
			return confirmAffirm
		}
	}

	if policy == ConfirmClarify {
		return confirmUnclear
	}
	return confirmDeny
}
