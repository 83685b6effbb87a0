package prompts_test

import (
	"testing"

	"github.com/ohtaman/planchat/pkg/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Template(t *testing.T) {
	tpl, err := prompts.NewTemplate("Review the answer to {{ user_input }}.", "user_input")
	require.NoError(t, err)

	assert.Equal(t, []string{"user_input"}, tpl.GetInputVariables())
	assert.Equal(t, "Review the answer to {{ user_input }}.", tpl.String())

	out, err := tpl.FormatPrompt(map[string]any{"user_input": "plan the shifts"})
	require.NoError(t, err)
	assert.Equal(t, "Review the answer to plan the shifts.", out)
}

func Test_Template_MissingValuesRenderEmpty(t *testing.T) {
	tpl, err := prompts.NewTemplate("A: {{ a }} B: {{ b }}", "a", "b")
	require.NoError(t, err)

	out, err := tpl.FormatPrompt(map[string]any{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, "A: 1 B: ", out)
}

func Test_Template_NoVariables(t *testing.T) {
	tpl, err := prompts.NewTemplate("Static instruction text.")
	require.NoError(t, err)

	out, err := tpl.FormatPrompt(nil)
	require.NoError(t, err)
	assert.Equal(t, "Static instruction text.", out)
}

func Test_Template_ParseError(t *testing.T) {
	_, err := prompts.NewTemplate("{% broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated")

	_, err = prompts.NewTemplate("value: {{ user_input")
	require.Error(t, err)

	_, err = prompts.NewTemplate("{# comment")
	require.Error(t, err)

	assert.Panics(t, func() {
		prompts.MustNewTemplate("{% broken")
	})
}
