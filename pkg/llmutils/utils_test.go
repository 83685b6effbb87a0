package llmutils_test

import (
	"testing"

	"github.com/ohtaman/planchat/pkg/llms"
	"github.com/ohtaman/planchat/pkg/llmutils"
	"github.com/stretchr/testify/assert"
)

func Test_CleanJSON(t *testing.T) {
	tcases := []struct {
		in  string
		exp string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"Sure, here you go: {\"a\":1}", `{"a":1}`},
		{"{\"a\":1} hope this helps!", `{"a":1}`},
		{"Result: [1,2,3] done", `[1,2,3]`},
		{"no json here", "no json here"},
	}
	for _, tc := range tcases {
		assert.Equal(t, tc.exp, string(llmutils.CleanJSON([]byte(tc.in))), "input: %s", tc.in)
	}
}

func Test_TrimBackticks(t *testing.T) {
	in := "```json\n{\"a\": 1}\n```"
	assert.Equal(t, `{"a": 1}`, llmutils.TrimBackticks(in))

	assert.Equal(t, `{"a": 1}`, llmutils.TrimBackticks(`{"a": 1}`))
}

func Test_StringUpto(t *testing.T) {
	assert.Equal(t, "short", llmutils.StringUpto("short", 10))
	assert.Equal(t, "abc...", llmutils.StringUpto("abcdef", 3))
}

func Test_MergeInputs(t *testing.T) {
	merged := llmutils.MergeInputs(
		map[string]any{"a": 1, "b": 2},
		map[string]any{"b": 3, "c": 4},
	)
	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, merged)
}

func Test_CountTokens(t *testing.T) {
	resp := &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				GenerationInfo: map[string]any{
					"InputTokens":  int64(10),
					"OutputTokens": int64(20),
					"TotalTokens":  int64(30),
				},
			},
			{
				GenerationInfo: map[string]any{
					"InputTokens":  int64(1),
					"OutputTokens": int64(2),
					"TotalTokens":  int64(3),
				},
			},
		},
	}
	in, out, total := llmutils.CountTokens(resp)
	assert.EqualValues(t, 11, in)
	assert.EqualValues(t, 22, out)
	assert.EqualValues(t, 33, total)
}
