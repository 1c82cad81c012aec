package interpreter

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrict(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Decision
	}{
		{
			name: "action with thought",
			raw:  "Thought: I should look at the shape\nAction: python_code_executor\nAction Input: print(df.shape)",
			want: Action("python_code_executor", "print(df.shape)"),
		},
		{
			name: "input trimmed of spaces and quotes",
			raw:  "Action: python_code_executor\nAction Input:   \"print(len(df))\"  ",
			want: Action("python_code_executor", "print(len(df))"),
		},
		{
			name: "multiline input kept",
			raw:  "Action: python_code_executor\nAction Input: x = 1\nprint(x)",
			want: Action("python_code_executor", "x = 1\nprint(x)"),
		},
		{
			name: "numbered markers",
			raw:  "Action 1: chart_generator\nAction 1 Input 1: plt.bar([\"a\"], [1])",
			want: Action("chart_generator", `plt.bar(["a"], [1])`),
		},
		{
			name: "final answer",
			raw:  "Thought: I now know the final answer\nFinal Answer:  The dataset has 5 rows. ",
			want: FinalAnswer("The dataset has 5 rows."),
		},
		{
			name: "final answer after last marker",
			raw:  "Final Answer: draft\nFinal Answer: real answer",
			want: FinalAnswer("real answer"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStrict(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStrict_Errors(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason ParseReason
	}{
		{"action and answer", "Action: python_code_executor\nAction Input: print(1)\nFinal Answer: 1", ReasonAnswerAndAction},
		{"no action", "Thought: just musing", ReasonMissingAction},
		{"no action input", "Thought: run it\nAction: python_code_executor", ReasonMissingActionInput},
		{"input before action", "Action Input: print(1)\nAction: python_code_executor", ReasonUnparseable},
		{"empty", "", ReasonMissingAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStrict(tt.raw)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.reason, perr.Reason)
		})
	}
}

func TestRecover(t *testing.T) {
	t.Run("extracts text after last marker", func(t *testing.T) {
		raw := "Action: python_code_executor\nAction Input: print(1)\nFinal Answer: The total is 42."
		_, err := ParseStrict(raw)
		require.Error(t, err)

		got := Recover(raw, err)
		assert.Equal(t, FinalAnswer("The total is 42."), got)
	})

	t.Run("reports parse failure without marker", func(t *testing.T) {
		raw := "I think the answer is 42"
		_, err := ParseStrict(raw)
		require.Error(t, err)

		got := Recover(raw, err)
		assert.True(t, got.IsFinal())
		assert.True(t, strings.HasPrefix(got.Text, "Sorry, a formatting error occurred"))
		assert.Contains(t, got.Text, err.Error())
	})
}

func TestParse_NeverFails(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"Final Answer:",
		"Action:",
		"Action Input:",
		"Observation: something",
		"\x00\xff garbage",
		strings.Repeat("Action: a\n", 50),
	}
	for _, raw := range inputs {
		d := Parse(raw)
		assert.NotZero(t, d.Kind, "input %q", raw)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	tools := []string{"python_code_executor", "chart_generator"}
	inputs := []string{"print(1+1)", "x = df[\"a\"]\nprint(x.mean())", "plt.pie([\"a\", \"b\"], [1, 2])"}

	for _, tool := range tools {
		for _, input := range inputs {
			raw := "Thought: go\n" + ActionMarker + " " + tool + "\n" + InputMarker + " " + input
			d := Parse(raw)
			assert.Equal(t, Action(tool, input), d)
		}
	}

	for _, text := range []string{"42", "The mean is 3.5.\nSee chart below."} {
		d := Parse("Thought: done\n" + FinalAnswerMarker + " " + text)
		assert.Equal(t, FinalAnswer(text), d)
	}
}
