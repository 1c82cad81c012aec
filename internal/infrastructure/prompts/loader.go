package prompts

import (
	_ "embed"
)

//go:embed react.txt
var ReactPrompt string

// FinalAnswerPrompt is appended to the rendered transcript when the step
// budget is spent and one last completion is requested.
//
//go:embed final.txt
var FinalAnswerPrompt string
