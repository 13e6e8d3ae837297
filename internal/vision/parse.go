package vision

import (
	"errors"
	"fmt"
	"strings"
)

const (
	AnalysisTag  = "[ANALYSIS]:"
	QuestionsTag = "[QUESTIONS]:"
)

// ErrParseFailure is returned when a tagged reply lacks a required tag.
var ErrParseFailure = errors.New("malformed tagged reply")

// TaggedReply is the structured content of a triage reply.
type TaggedReply struct {
	Analysis  string
	Questions []string
}

// ParseTaggedReply extracts the analysis and the "|"-delimited question list
// from a reply of the form:
//
//	[ANALYSIS]: free text, possibly multi-line
//	[QUESTIONS]: q1 | q2 | q3
//
// Each segment runs to the next tag or the end of the text. Text before the
// first tag is ignored. Both tags are required and at least one question must
// be present.
func ParseTaggedReply(text string) (TaggedReply, error) {
	ai := strings.Index(text, AnalysisTag)
	qi := strings.Index(text, QuestionsTag)

	var missing []string
	if ai < 0 {
		missing = append(missing, AnalysisTag)
	}
	if qi < 0 {
		missing = append(missing, QuestionsTag)
	}
	if len(missing) > 0 {
		return TaggedReply{}, fmt.Errorf("%w: missing %s", ErrParseFailure, strings.Join(missing, " and "))
	}

	analysis := segment(text, ai+len(AnalysisTag), qi)
	rawQuestions := segment(text, qi+len(QuestionsTag), ai)

	questions := make([]string, 0, 4)
	for _, q := range strings.Split(rawQuestions, "|") {
		q = strings.TrimSpace(q)
		if q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return TaggedReply{}, fmt.Errorf("%w: no questions after %s", ErrParseFailure, QuestionsTag)
	}

	return TaggedReply{Analysis: analysis, Questions: questions}, nil
}

// segment returns the trimmed text from start up to other when other lies
// after start, or to the end of text otherwise.
func segment(text string, start, other int) string {
	end := len(text)
	if other > start {
		end = other
	}
	return strings.TrimSpace(text[start:end])
}

// FormatTaggedReply renders r in the tagged format ParseTaggedReply accepts.
func FormatTaggedReply(r TaggedReply) string {
	return AnalysisTag + " " + r.Analysis + "\n" + QuestionsTag + " " + strings.Join(r.Questions, " | ")
}
