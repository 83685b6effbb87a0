package chatmodel

import (
	"time"
)

// Author names used in events produced by the agent loop.
const (
	AuthorUser = "user"
)

// Event is a single item in a session's history: a user message, a chunk of
// an agent's response, a tool call, or a tool response. Events are persisted
// by the session store and streamed to UI subscribers while a run proceeds.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id"`
	// InvocationID groups the events produced by a single agent run.
	InvocationID string `json:"invocation_id,omitempty"`
	// Author is the name of the entity that produced the event:
	// "user" or an agent name.
	Author string `json:"author"`
	// Parts is the content of the event.
	Parts []EventPart `json:"parts,omitempty"`
	// Partial marks streamed fragments that are later replaced by a final
	// event for the same invocation.
	Partial bool `json:"partial,omitempty"`
	// Actions carries loop control signals attached to the event.
	Actions EventActions `json:"actions,omitempty"`
	// ErrorMessage is set when the run producing the event failed.
	ErrorMessage string `json:"error_message,omitempty"`
	// Time is when the event was produced.
	Time time.Time `json:"time"`
}

// EventPart is one piece of event content. Exactly one of the fields is set.
type EventPart struct {
	// Text is plain response text.
	Text string `json:"text,omitempty"`
	// Thought marks Text as a reasoning summary rather than response content.
	Thought bool `json:"thought,omitempty"`
	// ToolCall is a tool invocation requested by the agent.
	ToolCall *ToolCallPart `json:"tool_call,omitempty"`
	// ToolResponse is the result of a tool invocation.
	ToolResponse *ToolResponsePart `json:"tool_response,omitempty"`
}

// ToolCallPart describes a tool invocation.
type ToolCallPart struct {
	Name string `json:"name"`
	// Args is the JSON-encoded arguments of the call.
	Args string `json:"args,omitempty"`
}

// ToolResponsePart describes the outcome of a tool invocation.
type ToolResponsePart struct {
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// EventActions carries loop control signals.
type EventActions struct {
	// Escalate requests that the loop stops after this event.
	Escalate bool `json:"escalate,omitempty"`
	// AskUser is set when the agent hands control back to the user with a
	// question.
	AskUser string `json:"ask_user,omitempty"`
}

// Text joins the plain text parts of the event, excluding thoughts.
func (e *Event) Text() string {
	var text string
	for _, p := range e.Parts {
		if p.Text != "" && !p.Thought {
			text += p.Text
		}
	}
	return text
}

// Thoughts joins the thought parts of the event.
func (e *Event) Thoughts() string {
	var text string
	for _, p := range e.Parts {
		if p.Text != "" && p.Thought {
			text += p.Text
		}
	}
	return text
}

// IsUser reports whether the event was authored by the user.
func (e *Event) IsUser() bool {
	return e.Author == AuthorUser
}

// NewUserEvent creates a user message event.
func NewUserEvent(text string) Event {
	return Event{
		ID:     NewID(),
		Author: AuthorUser,
		Parts:  []EventPart{{Text: text}},
		Time:   time.Now().UTC(),
	}
}

// NewAgentEvent creates an event authored by the named agent.
func NewAgentEvent(invocationID, author string, parts ...EventPart) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Parts:        parts,
		Time:         time.Now().UTC(),
	}
}
