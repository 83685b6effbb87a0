package chatmodel_test

import (
	"testing"

	"github.com/ohtaman/planchat/chatmodel"
	"github.com/stretchr/testify/assert"
)

type stringerValue struct{}

func (stringerValue) String() string { return "stringer output" }

type contentValue struct{}

func (contentValue) GetContent() string { return "content output" }

func Test_Stringify(t *testing.T) {
	assert.Equal(t, "stringer output", chatmodel.Stringify(stringerValue{}))
	assert.Equal(t, "content output", chatmodel.Stringify(contentValue{}))

	type payload struct {
		Status string `json:"status"`
	}
	assert.Equal(t, `{"status":"ok"}`, chatmodel.Stringify(payload{Status: "ok"}))
}
