package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Identification
	}{
		{name: "empty", raw: "", expected: Identification{}},
		{name: "whitespace", raw: " \n\t", expected: Identification{}},
		{name: "single word", raw: "Rose", expected: Identification{Recognized: true, Name: "Rose"}},
		{name: "trimmed", raw: "  Tomato\n", expected: Identification{Recognized: true, Name: "Tomato"}},
		{name: "three tokens", raw: "Swiss cheese plant", expected: Identification{Recognized: true, Name: "Swiss cheese plant"}},
		{name: "inner whitespace collapsed", raw: "Snake \t plant", expected: Identification{Recognized: true, Name: "Snake plant"}},
		{name: "denial phrase", raw: "I cannot identify this plant clearly", expected: Identification{}},
		{name: "denial short", raw: "cannot identify", expected: Identification{}},
		{name: "denial case-insensitive", raw: "Unknown species", expected: Identification{}},
		{name: "ends in plant", raw: "Oregano plant", expected: Identification{Recognized: true, Name: "Oregano plant"}},
		{name: "denial words inside name", raw: "Jalapeno plant", expected: Identification{Recognized: true, Name: "Jalapeno plant"}},
		{name: "apology", raw: "Sorry, no plant", expected: Identification{}},
		{name: "not a plant", raw: "Not a plant", expected: Identification{}},
		{name: "four tokens", raw: "A B C D", expected: Identification{}},
		{name: "hedged explanation", raw: "This looks like a Monstera deliciosa", expected: Identification{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.raw))
		})
	}
}
