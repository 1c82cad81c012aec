package sandbox

import "regexp"

var (
	fenceOpen     = regexp.MustCompile("^\\s*`{3,}[A-Za-z0-9_+-]*[ \\t]*(?:\\r?\\n|$)")
	leadingNoise  = regexp.MustCompile("^(\\s|`)*(?i:python\\b)?\\s*")
	trailingNoise = regexp.MustCompile("(\\s|`)*$")
)

// CleanCode strips the wrappers models put around snippets: surrounding
// whitespace, backticks, markdown fences with any language tag and a
// leading "python" word.
func CleanCode(code string) string {
	code = fenceOpen.ReplaceAllString(code, "")
	code = leadingNoise.ReplaceAllString(code, "")
	return trailingNoise.ReplaceAllString(code, "")
}
