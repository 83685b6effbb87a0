package loopctl_test

import (
	"context"
	"testing"

	"github.com/ohtaman/planchat/tools/loopctl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ExitTool(t *testing.T) {
	ctrl := loopctl.NewController()
	tool, err := loopctl.NewExitTool(ctrl)
	require.NoError(t, err)

	assert.Equal(t, "exit_loop", tool.Name())
	assert.NotEmpty(t, tool.Description())
	assert.NotNil(t, tool.Parameters())
	assert.False(t, ctrl.Escalated())

	out, err := tool.Call(context.Background(), "{}")
	require.NoError(t, err)
	assert.Equal(t, `{"status":"exiting"}`, out)
	assert.True(t, ctrl.Escalated())

	_, asked := ctrl.Question()
	assert.False(t, asked)

	ctrl.Reset()
	assert.False(t, ctrl.Escalated())
}

func Test_AskTool(t *testing.T) {
	ctrl := loopctl.NewController()
	tool, err := loopctl.NewAskTool(ctrl)
	require.NoError(t, err)

	assert.Equal(t, "ask", tool.Name())

	out, err := tool.Call(context.Background(), `{"question":"How many drivers are available?"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"waiting_for_user"}`, out)

	question, asked := ctrl.Question()
	assert.True(t, asked)
	assert.Equal(t, "How many drivers are available?", question)
	assert.True(t, ctrl.Escalated())

	ctrl.Reset()
	question, asked = ctrl.Question()
	assert.False(t, asked)
	assert.Empty(t, question)
}

func Test_AskTool_MalformedInput(t *testing.T) {
	ctrl := loopctl.NewController()
	tool, err := loopctl.NewAskTool(ctrl)
	require.NoError(t, err)

	// the question is optional, malformed arguments are tolerated
	_, err = tool.Call(context.Background(), "not json")
	require.NoError(t, err)

	question, asked := ctrl.Question()
	assert.True(t, asked)
	assert.Empty(t, question)
}
