package chatmodel_test

import (
	"context"
	"testing"

	"github.com/ohtaman/planchat/chatmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ChatContext(t *testing.T) {
	ctx := context.Background()

	_, _, err := chatmodel.GetUserAndChatID(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, chatmodel.ErrInvalidChatContext)
	assert.Nil(t, chatmodel.GetChatContext(ctx))
	assert.Empty(t, chatmodel.GetChatID(ctx))

	chatCtx := chatmodel.NewChatContext("user1", "chat1")
	ctx = chatmodel.WithChatContext(ctx, chatCtx)

	userID, chatID, err := chatmodel.GetUserAndChatID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user1", userID)
	assert.Equal(t, "chat1", chatID)
	assert.Equal(t, "chat1", chatmodel.GetChatID(ctx))
	assert.NotEmpty(t, chatCtx.RunID())

	chatCtx.SetMetadata("key", "value")
	v, ok := chatCtx.GetMetadata("key")
	require.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = chatCtx.GetMetadata("missing")
	assert.False(t, ok)
}

func Test_NewChatContext_GeneratesChatID(t *testing.T) {
	chatCtx := chatmodel.NewChatContext("user1", "")
	assert.NotEmpty(t, chatCtx.GetChatID())

	other := chatmodel.NewChatContext("user1", "")
	assert.NotEqual(t, chatCtx.GetChatID(), other.GetChatID())
}

func Test_NewID(t *testing.T) {
	a := chatmodel.NewID()
	b := chatmodel.NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
