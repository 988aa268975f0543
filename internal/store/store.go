// Package store provides session persistence: an in-memory implementation and
// a SQLite-backed one.
package store

import (
	"fmt"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
)

func errSessionNotFound(id string) error {
	return fmt.Errorf("session %s not found", id)
}

// SessionStore keeps all sessions addressable by id. It is the sole writer of
// durable state; the orchestrator mutates sessions only through it. Every
// mutation refreshes the session's lastActiveAt.
type SessionStore interface {
	// List returns all sessions ordered by lastActiveAt, newest first.
	// Transcripts are not loaded; use Get for the full session.
	List() []*domain.Session

	// Get returns a full session by id, or nil if not found.
	Get(id string) *domain.Session

	// CreateEmpty creates a session with an empty document. An empty name
	// yields the default session name.
	CreateEmpty(name string) *domain.Session

	// Append adds a message to a session's transcript.
	Append(sessionID string, msg domain.Message)

	// SetSection replaces one document section. Unknown keys are rejected.
	SetSection(sessionID string, key domain.SectionKey, content string) error

	// Rename changes a session's display name.
	Rename(sessionID, name string, userNamed bool)

	// Upsert writes a whole session, replacing any existing one with the
	// same id. Other sessions are unaffected.
	Upsert(sess *domain.Session)

	// Delete removes a session and its transcript.
	Delete(sessionID string)
}
