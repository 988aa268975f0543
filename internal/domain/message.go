package domain

import (
	"fmt"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Attachment is an inline binary payload on a message (e.g. an uploaded PDF).
type Attachment struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Source is a grounding citation: a titled link backing a claim in a response.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// ChartKind enumerates supported chart types.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
)

// ParseChartKind validates a raw chart kind.
func ParseChartKind(s string) (ChartKind, error) {
	switch ChartKind(s) {
	case ChartBar, ChartLine:
		return ChartKind(s), nil
	}
	return "", fmt.Errorf("unknown chart kind %q", s)
}

// ChartPoint is a single labeled value in a chart.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartSpec is a renderable chart description. It is pure data: a rendering
// collaborator consumes it and it is never mutated after creation.
type ChartSpec struct {
	Title  string       `json:"title"`
	Kind   ChartKind    `json:"kind"`
	Points []ChartPoint `json:"points"`
	Color  string       `json:"color,omitempty"`
}

// Message is one turn of dialogue. Messages are immutable once appended; the
// append order defines the conversation transcript.
type Message struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Sources    []Source    `json:"sources,omitempty"`
	Chart      *ChartSpec  `json:"chart,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// DedupSources removes duplicate sources by URI, keeping first occurrences in
// their original order.
func DedupSources(in []Source) []Source {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]Source, 0, len(in))
	for _, s := range in {
		if seen[s.URI] {
			continue
		}
		seen[s.URI] = true
		out = append(out, s)
	}
	return out
}
