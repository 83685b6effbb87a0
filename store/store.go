// Package store persists talk sessions and their event history.
package store

import (
	"context"
	"time"

	"github.com/effective-security/xlog"
	"github.com/ohtaman/planchat/chatmodel"
)

var logger = xlog.NewPackageLogger("github.com/ohtaman/planchat", "store")

// maxEvents is the number of events retained per session.
const maxEvents = 200

// TalkSession is a chat session and its metadata. Events are populated by
// GetSession only.
type TalkSession struct {
	UserID    string         `json:"user_id"`
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	AgentMode string         `json:"agent_mode,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	Events []chatmodel.Event `json:"events,omitempty"`
}

// EventStore persists session events and metadata. The user and session IDs
// are taken from the chat context in ctx.
type EventStore interface {
	// Events returns the stored events of the session, oldest first.
	Events(ctx context.Context) []chatmodel.Event
	// Append adds an event to the session history.
	Append(ctx context.Context, ev chatmodel.Event) error
	// Reset removes the session and its events.
	Reset(ctx context.Context) error

	// UpdateSession creates or updates the session metadata.
	UpdateSession(ctx context.Context, title string, state map[string]any) (*TalkSession, error)
	// ListSessions returns the session IDs of the user.
	ListSessions(ctx context.Context) ([]string, error)
	// GetSession returns the session with its events. An empty id means the
	// session of the chat context.
	GetSession(ctx context.Context, id string) (*TalkSession, error)
}
