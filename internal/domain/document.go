// Package domain defines the core data model: research documents, sessions,
// messages, and chart payloads.
package domain

import (
	"fmt"
	"strings"
)

// SectionKey identifies one section of a research document. The set of keys is
// closed; anything outside it is rejected.
type SectionKey string

const (
	SectionTargetEntity         SectionKey = "targetEntity"
	SectionSummary              SectionKey = "summary"
	SectionFinancialHealth      SectionKey = "financialHealth"
	SectionStrategicInitiatives SectionKey = "strategicInitiatives"
	SectionCompetitors          SectionKey = "competitors"
	SectionProposedSolution     SectionKey = "proposedSolution"
)

// sectionOrder is the canonical section order used by reports and exports.
var sectionOrder = []SectionKey{
	SectionTargetEntity,
	SectionSummary,
	SectionFinancialHealth,
	SectionStrategicInitiatives,
	SectionCompetitors,
	SectionProposedSolution,
}

// sectionLabels maps keys to the labels used in the exported report.
var sectionLabels = map[SectionKey]string{
	SectionTargetEntity:         "Target Entity",
	SectionSummary:              "Summary",
	SectionFinancialHealth:      "Financial Health",
	SectionStrategicInitiatives: "Strategic Initiatives",
	SectionCompetitors:          "Competitors",
	SectionProposedSolution:     "Proposed Solution",
}

// SectionKeys returns all section keys in canonical order.
func SectionKeys() []SectionKey {
	keys := make([]SectionKey, len(sectionOrder))
	copy(keys, sectionOrder)
	return keys
}

// ParseSectionKey validates a raw key against the closed enumeration.
func ParseSectionKey(s string) (SectionKey, error) {
	key := SectionKey(s)
	if _, ok := sectionLabels[key]; !ok {
		return "", fmt.Errorf("unknown section key %q", s)
	}
	return key, nil
}

// Label returns the report label for a section key.
func (k SectionKey) Label() string {
	return sectionLabels[k]
}

// Document is the structured findings record built up over a session. Sections
// hold markdown-flavored free text and are only ever replaced wholesale.
type Document struct {
	Sections map[SectionKey]string `json:"sections"`
}

// NewDocument creates an empty document with no section content.
func NewDocument() *Document {
	return &Document{Sections: make(map[SectionKey]string)}
}

// Set replaces the content of a section. Unknown keys are rejected.
func (d *Document) Set(key SectionKey, content string) error {
	if _, err := ParseSectionKey(string(key)); err != nil {
		return err
	}
	if d.Sections == nil {
		d.Sections = make(map[SectionKey]string)
	}
	d.Sections[key] = content
	return nil
}

// Get returns the content of a section, or "" when unset.
func (d *Document) Get(key SectionKey) string {
	if d.Sections == nil {
		return ""
	}
	return d.Sections[key]
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := NewDocument()
	for k, v := range d.Sections {
		out.Sections[k] = v
	}
	return out
}

// Report renders the document as plain text: one labeled block per section in
// canonical order. Unset sections render as "(not researched yet)".
func (d *Document) Report() string {
	var b strings.Builder
	for i, key := range sectionOrder {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n", key.Label())
		content := d.Get(key)
		if strings.TrimSpace(content) == "" {
			content = "(not researched yet)"
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String()
}
