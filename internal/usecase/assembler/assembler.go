// Package assembler splits a final answer into text and chart segments.
package assembler

import (
	"encoding/base64"
	"strings"

	"data-agent/internal/domain/entity"
)

// Response is a final answer ready for display and storage.
type Response struct {
	Raw      string           `json:"raw"`
	Clean    string           `json:"clean"`
	Segments []entity.Segment `json:"segments"`
}

func Assemble(final string) Response {
	return Response{
		Raw:      final,
		Clean:    Strip(final),
		Segments: Split(final),
	}
}

// Split returns the answer's segments in reading order. A marker without a
// terminator before the next marker (or the end of the text) stays text.
func Split(final string) []entity.Segment {
	if strings.TrimSpace(final) == "" {
		return nil
	}

	var segments []entity.Segment
	var text strings.Builder

	flushText := func() {
		if s := strings.TrimSpace(text.String()); s != "" {
			segments = append(segments, entity.Segment{Kind: entity.SegmentText, Value: s})
		}
		text.Reset()
	}

	charts := scan(final,
		func(s string) { text.WriteString(s) },
		func(prefix, body string) {
			flushText()
			segments = append(segments, chartSegment(prefix, strings.TrimSpace(body)))
		})
	flushText()

	if charts == 0 {
		return []entity.Segment{{Kind: entity.SegmentText, Value: final}}
	}
	return segments
}

// Strip removes every terminated chart marker, leaving the text that is safe
// to hand back to the model as history.
func Strip(final string) string {
	var text strings.Builder
	scan(final, func(s string) { text.WriteString(s) }, func(string, string) {})
	return strings.TrimSpace(text.String())
}

// scan walks final left to right, handing plain text and terminated markers
// to the callbacks, and returns the number of markers found.
func scan(final string, onText func(string), onChart func(prefix, body string)) int {
	charts := 0
	rest := final
	for {
		start, prefix := nextMarker(rest)
		if start < 0 {
			onText(rest)
			return charts
		}

		body := rest[start+len(prefix):]
		end := strings.Index(body, entity.ChartMarkerEnd)
		next, _ := nextMarker(body)
		if end < 0 || (next >= 0 && next < end) {
			// Unterminated: keep the marker prefix as text and keep scanning.
			onText(rest[:start+len(prefix)])
			rest = body
			continue
		}

		onText(rest[:start])
		onChart(prefix, body[:end])
		charts++
		rest = body[end+len(entity.ChartMarkerEnd):]
	}
}

func nextMarker(s string) (int, string) {
	fileIdx := strings.Index(s, entity.ChartMarker)
	embIdx := strings.Index(s, entity.ChartEmbeddedMarker)
	switch {
	case fileIdx < 0 && embIdx < 0:
		return -1, ""
	case fileIdx < 0 || (embIdx >= 0 && embIdx < fileIdx):
		return embIdx, entity.ChartEmbeddedMarker
	default:
		return fileIdx, entity.ChartMarker
	}
}

func chartSegment(prefix, value string) entity.Segment {
	ref := &entity.ChartRef{Kind: entity.ChartFile, Path: value}
	if prefix == entity.ChartEmbeddedMarker {
		ref = &entity.ChartRef{Kind: entity.ChartEmbedded, MIME: "image/png"}
		if data, err := base64.StdEncoding.DecodeString(value); err == nil {
			ref.Data = data
		}
	}
	return entity.Segment{Kind: entity.SegmentChart, Value: value, Chart: ref}
}
