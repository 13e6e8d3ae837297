package diagnosis

import (
	"strings"
	"unicode"
)

// maxLabelTokens bounds a species label; longer replies are explanations.
const maxLabelTokens = 3

// denialPhrases mark an identification reply in which the model declined.
// They match on word boundaries, so "Oregano plant" does not contain "no plant".
var denialPhrases = []string{
	"cannot identify",
	"can't identify",
	"can not identify",
	"unable to identify",
	"not able to identify",
	"cannot determine",
	"unable to determine",
	"unknown",
	"not sure",
	"unclear",
	"not a plant",
	"no plant",
	"sorry",
}

// Identification is the outcome of classifying a raw identification reply.
type Identification struct {
	Recognized bool
	Name       string
}

// Classify decides whether raw is a usable species label. It is unrecognized
// when empty after trimming, when it contains a denial phrase as whole words,
// or when it has more than three whitespace-separated tokens.
func Classify(raw string) Identification {
	label := strings.TrimSpace(raw)
	if label == "" {
		return Identification{}
	}

	words := " " + strings.Join(strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}), " ") + " "
	for _, phrase := range denialPhrases {
		if strings.Contains(words, " "+phrase+" ") {
			return Identification{}
		}
	}

	if len(strings.Fields(label)) > maxLabelTokens {
		return Identification{}
	}

	return Identification{Recognized: true, Name: strings.Join(strings.Fields(label), " ")}
}
