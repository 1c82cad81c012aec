package entity

import "encoding/json"

// Observation is the typed result of a tool invocation. A failed tool run is
// still an observation: Err is set and Text holds the description that is fed
// back to the model so it can correct itself.
type Observation struct {
	Text  string
	Err   error
	Chart *ChartRef
}

func TextObservation(text string) Observation {
	return Observation{Text: text}
}

func ErrorObservation(text string, err error) Observation {
	return Observation{Text: text, Err: err}
}

func (o Observation) Failed() bool {
	return o.Err != nil
}

func (o Observation) String() string {
	return o.Text
}

func (o Observation) MarshalJSON() ([]byte, error) {
	out := struct {
		Text  string    `json:"text"`
		Error string    `json:"error,omitempty"`
		Chart *ChartRef `json:"chart,omitempty"`
	}{Text: o.Text, Chart: o.Chart}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}
