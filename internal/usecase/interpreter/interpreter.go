// Package interpreter turns raw completion text into the next agent move:
// either a tool call or a final answer.
package interpreter

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	ThoughtMarker     = "Thought:"
	ActionMarker      = "Action:"
	InputMarker       = "Action Input:"
	ObservationMarker = "Observation:"
	FinalAnswerMarker = "Final Answer:"

	// StopSequence keeps the model from inventing its own observations.
	StopSequence = "\n" + ObservationMarker
)

var (
	actionPattern      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyPattern  = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)`)
	actionInputPattern = regexp.MustCompile(`(?s)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
)

type Kind int

const (
	KindAction Kind = iota + 1
	KindFinalAnswer
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindFinalAnswer:
		return "final_answer"
	default:
		return "unknown"
	}
}

// Decision is the interpreted model output. Tool and Input are set for
// actions, Text for final answers.
type Decision struct {
	Kind  Kind
	Tool  string
	Input string
	Text  string
}

func Action(tool, input string) Decision {
	return Decision{Kind: KindAction, Tool: tool, Input: input}
}

func FinalAnswer(text string) Decision {
	return Decision{Kind: KindFinalAnswer, Text: text}
}

func (d Decision) IsFinal() bool {
	return d.Kind == KindFinalAnswer
}

type ParseReason string

const (
	ReasonAnswerAndAction    ParseReason = "final answer and parse-able action"
	ReasonMissingAction      ParseReason = "missing action"
	ReasonMissingActionInput ParseReason = "missing action input"
	ReasonUnparseable        ParseReason = "unparseable"
)

// ParseError reports why raw model text did not match the grammar. It is
// consumed by Recover and never shown to the user verbatim.
type ParseError struct {
	Reason ParseReason
	Text   string
}

func (e *ParseError) Error() string {
	switch e.Reason {
	case ReasonAnswerAndAction:
		return "parsing LLM output produced both a final answer and a parse-able action: " + e.Text
	case ReasonMissingAction:
		return "invalid format: missing 'Action:' after 'Thought:'"
	case ReasonMissingActionInput:
		return "invalid format: missing 'Action Input:' after 'Action:'"
	default:
		return fmt.Sprintf("could not parse LLM output: `%s`", e.Text)
	}
}

// ParseStrict applies the fixed Action / Action Input / Final Answer grammar.
func ParseStrict(raw string) (Decision, error) {
	includesAnswer := strings.Contains(raw, FinalAnswerMarker)

	if m := actionPattern.FindStringSubmatch(raw); m != nil {
		if includesAnswer {
			return Decision{}, &ParseError{Reason: ReasonAnswerAndAction, Text: raw}
		}
		tool := strings.TrimSpace(m[1])
		input := strings.Trim(strings.Trim(m[2], " "), `"`)
		return Action(tool, input), nil
	}

	if includesAnswer {
		return FinalAnswer(afterLastFinalAnswer(raw)), nil
	}

	if !actionOnlyPattern.MatchString(raw) {
		return Decision{}, &ParseError{Reason: ReasonMissingAction, Text: raw}
	}
	if !actionInputPattern.MatchString(raw) {
		return Decision{}, &ParseError{Reason: ReasonMissingActionInput, Text: raw}
	}
	return Decision{}, &ParseError{Reason: ReasonUnparseable, Text: raw}
}

// Recover salvages a final answer from text the strict grammar rejected. It
// never fails: without a final answer marker the answer explains the
// formatting problem.
func Recover(raw string, parseErr error) Decision {
	if strings.Contains(raw, FinalAnswerMarker) {
		return FinalAnswer(afterLastFinalAnswer(raw))
	}
	return FinalAnswer(fmt.Sprintf(
		"Sorry, a formatting error occurred and no final answer could be extracted. Details: %v", parseErr))
}

// Parse is ParseStrict followed by Recover on failure.
func Parse(raw string) Decision {
	d, err := ParseStrict(raw)
	if err != nil {
		return Recover(raw, err)
	}
	return d
}

func afterLastFinalAnswer(raw string) string {
	idx := strings.LastIndex(raw, FinalAnswerMarker)
	return strings.TrimSpace(raw[idx+len(FinalAnswerMarker):])
}
