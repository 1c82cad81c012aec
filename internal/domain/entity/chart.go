package entity

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

type ChartKind string

const (
	ChartFile     ChartKind = "file"
	ChartEmbedded ChartKind = "embedded"
)

const (
	ChartMarker         = "[CHART:"
	ChartEmbeddedMarker = "[CHART_B64:"
	ChartMarkerEnd      = "]"
)

// ChartRef points at a rendered chart, either persisted to disk or carried
// inline as image bytes. Embedded charts still get a Path, used only as the
// handle the model copies into its answer.
type ChartRef struct {
	Kind ChartKind
	Path string
	Data []byte
	MIME string
}

// Marker renders the token that embeds the chart in answer text. The marker
// name carries the kind so readers never have to sniff the payload.
func (c ChartRef) Marker() string {
	if c.Kind == ChartEmbedded {
		return ChartEmbeddedMarker + base64.StdEncoding.EncodeToString(c.Data) + ChartMarkerEnd
	}
	return ChartMarker + c.Path + ChartMarkerEnd
}

// Handle is the marker the model is asked to copy into its answer. For file
// charts it is the final marker; embedded handles are expanded with
// ExpandHandles once the answer is known.
func (c ChartRef) Handle() string {
	return ChartMarker + c.Path + ChartMarkerEnd
}

// ExpandHandles swaps embedded chart handles in text for their inline
// markers.
func ExpandHandles(text string, charts []ChartRef) string {
	for _, c := range charts {
		if c.Kind != ChartEmbedded || c.Path == "" {
			continue
		}
		text = strings.ReplaceAll(text, c.Handle(), c.Marker())
	}
	return text
}

// DataURL returns the embedded image as a data: URL. Empty for file charts.
func (c ChartRef) DataURL() string {
	if c.Kind != ChartEmbedded {
		return ""
	}
	mime := c.MIME
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

func (c ChartRef) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind    ChartKind `json:"kind"`
		Path    string    `json:"path,omitempty"`
		DataURL string    `json:"data_url,omitempty"`
	}{Kind: c.Kind, Path: c.Path, DataURL: c.DataURL()}
	return json.Marshal(out)
}
