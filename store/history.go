package store

import (
	"strings"

	"github.com/ohtaman/planchat/chatmodel"
	"github.com/ohtaman/planchat/pkg/llms"
)

// EventsToMessages converts a session's event history into chat messages
// suitable as LLM conversation history. A final agent event carries the
// complete text of its invocation and supersedes the accumulated partials.
// Partials without a final event are joined and emitted as assistant messages
// so that interrupted generations are preserved. Thoughts and tool activity
// are not part of the conversation history.
func EventsToMessages(events []chatmodel.Event) []llms.Message {
	type group struct {
		key  string
		text strings.Builder
	}

	var history []llms.Message
	var order []string
	partials := map[string]*group{}

	flush := func(key, final string) {
		g := partials[key]
		var accumulated string
		if g != nil {
			accumulated = g.text.String()
			delete(partials, key)
			for i, k := range order {
				if k == key {
					order = append(order[:i], order[i+1:]...)
					break
				}
			}
		}
		// The final event replaces the streamed deltas.
		text := strings.TrimSpace(final)
		if text == "" {
			text = strings.TrimSpace(accumulated)
		}
		if text != "" {
			history = append(history, llms.MessageFromTextParts(llms.RoleAI, text))
		}
	}

	for i := range events {
		ev := &events[i]
		text := ev.Text()
		if text == "" {
			continue
		}

		if ev.IsUser() {
			history = append(history, llms.MessageFromTextParts(llms.RoleHuman, text))
			continue
		}

		key := ev.InvocationID
		if ev.Partial {
			g := partials[key]
			if g == nil {
				g = &group{key: key}
				partials[key] = g
				order = append(order, key)
			}
			g.text.WriteString(text)
			continue
		}

		flush(key, text)
	}

	// Flush remaining partials (interruptions)
	for _, key := range order {
		g := partials[key]
		text := strings.TrimSpace(g.text.String())
		if text != "" {
			history = append(history, llms.MessageFromTextParts(llms.RoleAI, text))
		}
	}

	return history
}

// CommitPartials merges partial events by invocation and returns finalized
// events suitable for appending into the session history. Events without text
// are dropped.
func CommitPartials(partials []chatmodel.Event) []chatmodel.Event {
	type group struct {
		invocationID string
		author       string
		text         strings.Builder
	}

	var groups []*group
	indexed := map[string]*group{}

	for i := range partials {
		ev := &partials[i]
		g := indexed[ev.InvocationID]
		if g == nil {
			g = &group{
				invocationID: ev.InvocationID,
				author:       ev.Author,
			}
			groups = append(groups, g)
			indexed[ev.InvocationID] = g
		}
		g.text.WriteString(ev.Text())
	}

	var committed []chatmodel.Event
	for _, g := range groups {
		text := strings.TrimSpace(g.text.String())
		if text == "" {
			continue
		}
		committed = append(committed, chatmodel.NewAgentEvent(g.invocationID, g.author,
			chatmodel.EventPart{Text: text}))
	}
	return committed
}
