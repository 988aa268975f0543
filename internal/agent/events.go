package agent

import (
	"time"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
)

// EventSink receives the collaborator-facing outputs of a turn: appended
// messages for rendering, conflict advisories, and active-session changes.
// Implementations must be fast; the orchestrator calls them inline.
type EventSink interface {
	// MessageAppended fires after a message is written to a transcript.
	MessageAppended(sessionID string, msg domain.Message)

	// ConflictAdvisory fires when the final answer contains conflict
	// indicators. The advisory expires after ttl.
	ConflictAdvisory(sessionID, notice string, ttl time.Duration)

	// ConflictCleared fires when an advisory's ttl elapses.
	ConflictCleared(sessionID string)

	// ActiveSessionChanged fires after a context switch.
	ActiveSessionChanged(sessionID string)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) MessageAppended(string, domain.Message)         {}
func (NopSink) ConflictAdvisory(string, string, time.Duration) {}
func (NopSink) ConflictCleared(string)                         {}
func (NopSink) ActiveSessionChanged(string)                    {}
