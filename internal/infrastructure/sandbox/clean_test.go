package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "print(1)", "print(1)"},
		{"whitespace", "  \n print(1) \n", "print(1)"},
		{"backticks", "`print(1)`", "print(1)"},
		{"fence", "```\nprint(1)\n```", "print(1)"},
		{"fence with language", "```python\nx = 1\nprint(x)\n```", "x = 1\nprint(x)"},
		{"upper language tag", "```Python\nprint(2)```", "print(2)"},
		{"short language tag", "```py\nprint(4)\n```", "print(4)"},
		{"starlark tag", "```starlark\nprint(5)\n```", "print(5)"},
		{"tag with symbols", "```python3-repl \nprint(6)\n```", "print(6)"},
		{"code on fence line", "```print(7)```", "print(7)"},
		{"leading python word", "python print(3)", "print(3)"},
		{"identifier starting with python", "pythonic = 1", "pythonic = 1"},
		{"keeps indentation inside", "```\nfor x in [1]:\n    print(x)\n```", "for x in [1]:\n    print(x)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCode(tt.in))
		})
	}
}
