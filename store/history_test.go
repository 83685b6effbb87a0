package store_test

import (
	"testing"

	"github.com/ohtaman/planchat/chatmodel"
	"github.com/ohtaman/planchat/pkg/llms"
	"github.com/ohtaman/planchat/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func partialEvent(invocationID, author, text string) chatmodel.Event {
	ev := chatmodel.NewAgentEvent(invocationID, author, chatmodel.EventPart{Text: text})
	ev.Partial = true
	return ev
}

func Test_EventsToMessages(t *testing.T) {
	events := []chatmodel.Event{
		chatmodel.NewUserEvent("Plan the shifts for next week."),
		partialEvent("inv1", "planner_agent", "Here is "),
		partialEvent("inv1", "planner_agent", "the baseline plan."),
		// the final event carries the complete text and replaces the deltas
		chatmodel.NewAgentEvent("inv1", "planner_agent",
			chatmodel.EventPart{Text: "Here is the baseline plan. Each person works 5 days."}),
		chatmodel.NewUserEvent("Add weekend fairness."),
		// interrupted generation, never finalized
		partialEvent("inv2", "planner_agent", "Updating the plan"),
	}

	messages := store.EventsToMessages(events)
	require.Equal(t, 4, len(messages))

	assert.Equal(t, llms.RoleHuman, messages[0].Role)
	assert.Equal(t, "Plan the shifts for next week.", llms.TextFromParts(messages[0].Parts))

	assert.Equal(t, llms.RoleAI, messages[1].Role)
	assert.Equal(t, "Here is the baseline plan. Each person works 5 days.", llms.TextFromParts(messages[1].Parts))

	assert.Equal(t, llms.RoleHuman, messages[2].Role)
	assert.Equal(t, llms.RoleAI, messages[3].Role)
	assert.Equal(t, "Updating the plan", llms.TextFromParts(messages[3].Parts))
}

func Test_EventsToMessages_FinalSupersedesPartials(t *testing.T) {
	events := []chatmodel.Event{
		partialEvent("inv1", "planner_agent", "Draft "),
		partialEvent("inv1", "planner_agent", "text"),
		chatmodel.NewAgentEvent("inv1", "planner_agent", chatmodel.EventPart{Text: "Final text."}),
	}

	messages := store.EventsToMessages(events)
	require.Equal(t, 1, len(messages))
	assert.Equal(t, "Final text.", llms.TextFromParts(messages[0].Parts))
}

func Test_EventsToMessages_SkipsThoughtsAndTools(t *testing.T) {
	events := []chatmodel.Event{
		chatmodel.NewUserEvent("hello"),
		chatmodel.NewAgentEvent("inv1", "planner_agent",
			chatmodel.EventPart{Text: "thinking about it", Thought: true},
			chatmodel.EventPart{ToolCall: &chatmodel.ToolCallPart{Name: "solve_model", Args: "{}"}},
		),
		chatmodel.NewAgentEvent("inv1", "planner_agent", chatmodel.EventPart{Text: "done"}),
	}

	messages := store.EventsToMessages(events)
	require.Equal(t, 2, len(messages))
	assert.Equal(t, "done", llms.TextFromParts(messages[1].Parts))
}

func Test_CommitPartials(t *testing.T) {
	partials := []chatmodel.Event{
		partialEvent("inv1", "planner_agent", "part one, "),
		partialEvent("inv2", "mentor_agent", "feedback"),
		partialEvent("inv1", "planner_agent", "part two"),
		// no text, dropped
		partialEvent("inv3", "planner_agent", ""),
	}

	committed := store.CommitPartials(partials)
	require.Equal(t, 2, len(committed))

	assert.Equal(t, "inv1", committed[0].InvocationID)
	assert.Equal(t, "planner_agent", committed[0].Author)
	assert.Equal(t, "part one, part two", committed[0].Text())
	assert.False(t, committed[0].Partial)

	assert.Equal(t, "inv2", committed[1].InvocationID)
	assert.Equal(t, "mentor_agent", committed[1].Author)
	assert.Equal(t, "feedback", committed[1].Text())
}
