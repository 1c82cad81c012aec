package entity

type SegmentKind string

const (
	SegmentText  SegmentKind = "TEXT"
	SegmentChart SegmentKind = "CHART"
)

// Segment is one displayable piece of a final answer.
type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Value string      `json:"value"`
	Chart *ChartRef   `json:"chart,omitempty"`
}
