package entity

import "errors"

var (
	// ErrToolExecution marks snippet failures inside a tool. They are turned
	// into observations and never end a turn.
	ErrToolExecution = errors.New("tool execution error")

	// ErrUnknownTool marks a model request for a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolInfrastructure marks a tool that could not run at all, for
	// example when the chart directory is not writable.
	ErrToolInfrastructure = errors.New("tool infrastructure error")

	// ErrCompletionService marks network, auth or quota failures of the
	// language model provider.
	ErrCompletionService = errors.New("completion service error")

	// ErrConfiguration marks missing or invalid settings detected before an
	// agent is built.
	ErrConfiguration = errors.New("configuration error")
)
