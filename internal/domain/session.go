package domain

import "time"

// DefaultSessionName is the display name given to sessions before a research
// target is known.
const DefaultSessionName = "New Research"

// Session is one conversation thread: an ordered transcript plus the research
// document being filled in. Multiple sessions coexist; the store owns them.
type Session struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	UserNamed    bool      `json:"userNamed,omitempty"`
	Messages     []Message `json:"messages,omitempty"`
	Document     *Document `json:"document"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}
