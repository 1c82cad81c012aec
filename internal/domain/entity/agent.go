package entity

type StopReason string

const (
	StopAnswered       StopReason = "ANSWERED"
	StopIterationLimit StopReason = "ITERATION_LIMIT"
	StopTimeLimit      StopReason = "TIME_LIMIT"
)

// Finished reports whether the agent reached a final answer on its own.
func (r StopReason) Finished() bool {
	return r == StopAnswered
}

// Step is one think/act/observe cycle of a turn.
type Step struct {
	ActionName   string      `json:"action_name"`
	ActionInput  string      `json:"action_input"`
	Observation  Observation `json:"observation"`
	RawModelText string      `json:"raw_model_text"`
}

// TurnResult is what a single question produces. It is always populated, even
// when the turn ended on a fault; Err then tells the caller what went wrong.
type TurnResult struct {
	FinalText     string     `json:"final_text"`
	Steps         []Step     `json:"steps"`
	StoppedReason StopReason `json:"stopped_reason"`
	Err           error      `json:"-"`
}

// LastStep returns the most recent transcript step, if any.
func (r TurnResult) LastStep() (Step, bool) {
	if len(r.Steps) == 0 {
		return Step{}, false
	}
	return r.Steps[len(r.Steps)-1], true
}
