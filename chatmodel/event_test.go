package chatmodel_test

import (
	"encoding/json"
	"testing"

	"github.com/ohtaman/planchat/chatmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_UserEvent(t *testing.T) {
	ev := chatmodel.NewUserEvent("hello")
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, chatmodel.AuthorUser, ev.Author)
	assert.True(t, ev.IsUser())
	assert.Equal(t, "hello", ev.Text())
	assert.Empty(t, ev.Thoughts())
}

func Test_AgentEvent(t *testing.T) {
	ev := chatmodel.NewAgentEvent("inv1", "planner_agent",
		chatmodel.EventPart{Text: "reasoning", Thought: true},
		chatmodel.EventPart{Text: "the answer"},
		chatmodel.EventPart{ToolCall: &chatmodel.ToolCallPart{Name: "solve_model", Args: "{}"}},
	)
	assert.Equal(t, "inv1", ev.InvocationID)
	assert.Equal(t, "planner_agent", ev.Author)
	assert.False(t, ev.IsUser())
	assert.Equal(t, "the answer", ev.Text())
	assert.Equal(t, "reasoning", ev.Thoughts())
}

func Test_Event_JSONRoundTrip(t *testing.T) {
	ev := chatmodel.NewAgentEvent("inv1", "mentor_agent",
		chatmodel.EventPart{ToolResponse: &chatmodel.ToolResponsePart{Name: "ask", Content: "waiting", IsError: false}},
	)
	ev.Actions = chatmodel.EventActions{AskUser: "Which week?"}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var parsed chatmodel.Event
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, ev.ID, parsed.ID)
	assert.Equal(t, "Which week?", parsed.Actions.AskUser)
	require.NotNil(t, parsed.Parts[0].ToolResponse)
	assert.Equal(t, "ask", parsed.Parts[0].ToolResponse.Name)
}
