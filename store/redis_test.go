package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ohtaman/planchat/chatmodel"
	"github.com/ohtaman/planchat/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscon "github.com/testcontainers/testcontainers-go/modules/redis"
)

func Test_RedisStore(t *testing.T) {
	ctx := context.Background()
	redisContainer, err := rediscon.Run(ctx, "redis:7", testcontainers.WithEnv(map[string]string{
		"ALLOW_EMPTY_PASSWORD": "yes",
	}))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, redisContainer.Terminate(ctx))
	})

	state, err := redisContainer.State(ctx)
	require.NoError(t, err)
	require.True(t, state.Running)

	root := fmt.Sprintf("test-%d", time.Now().Unix())

	host, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := redis.ParseURL(host)
	require.NoError(t, err)

	client := redis.NewClient(options)

	rs := client.Ping(ctx) // Ensure the connection is established
	require.NoError(t, rs.Err(), "failed to connect to Redis")

	st := store.NewRedisStore(client, root)

	userID := "user1"
	sessionID := "session1"
	ev1 := chatmodel.NewUserEvent("Hello")
	ev2 := chatmodel.NewAgentEvent("inv1", "planner_agent", chatmodel.EventPart{Text: "Hi there!"})

	expErr := "invalid chat context"
	assert.EqualError(t, st.Reset(ctx), expErr)
	assert.EqualError(t, st.Append(ctx, ev1), expErr)
	_, err = st.UpdateSession(ctx, "", nil)
	assert.EqualError(t, err, expErr)
	_, err = st.ListSessions(ctx)
	assert.EqualError(t, err, expErr)
	_, err = st.GetSession(ctx, "")
	assert.EqualError(t, err, expErr)
	assert.Empty(t, st.Events(ctx))

	chatCtx := chatmodel.NewChatContext(userID, sessionID)
	ctx = chatmodel.WithChatContext(ctx, chatCtx)

	uID, sID, err := chatmodel.GetUserAndChatID(ctx)
	require.NoError(t, err)
	assert.Equal(t, userID, uID)
	assert.Equal(t, sessionID, sID)

	require.NoError(t, st.Append(ctx, ev1))
	require.NoError(t, st.Append(ctx, ev2))

	events := st.Events(ctx)
	require.Equal(t, 2, len(events))
	assert.Equal(t, "Hello", events[0].Text())
	assert.True(t, events[0].IsUser())
	assert.Equal(t, "Hi there!", events[1].Text())
	assert.Equal(t, "inv1", events[1].InvocationID)

	session, err := st.GetSession(ctx, sID)
	require.NoError(t, err)
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, sessionID, session.ID)
	assert.Equal(t, "New Chat", session.Title)
	assert.Equal(t, 2, len(session.Events))

	list, err := st.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, len(list))

	// a new session for the same user
	chatCtx = chatmodel.NewChatContext(userID, "")
	ctx = chatmodel.WithChatContext(ctx, chatCtx)

	uID, sID, err = chatmodel.GetUserAndChatID(ctx)
	require.NoError(t, err)
	assert.Equal(t, userID, uID)
	assert.NotEqual(t, sessionID, sID)

	now := time.Now()
	time.Sleep(2 * time.Millisecond)
	si, err := st.UpdateSession(ctx, "New chat", map[string]any{"user_request": "plan shifts"})
	require.NoError(t, err)
	assert.Equal(t, chatCtx.GetUserID(), si.UserID)
	assert.Equal(t, chatCtx.GetChatID(), si.ID)
	assert.Equal(t, "New chat", si.Title)
	assert.Equal(t, "plan shifts", si.State["user_request"])
	assert.True(t, si.CreatedAt.After(now))
	assert.True(t, si.UpdatedAt.After(now))
	updatedAt := si.UpdatedAt

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, st.Append(ctx, ev1))
	si2, err := st.GetSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, chatCtx.GetUserID(), si2.UserID)
	assert.Equal(t, chatCtx.GetChatID(), si2.ID)
	assert.True(t, si2.UpdatedAt.After(updatedAt))

	sessions, err := st.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, len(sessions))
	for _, id := range sessions {
		si, err := st.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, chatCtx.GetUserID(), si.UserID)
	}

	err = st.Reset(ctx)
	require.NoError(t, err)

	events = st.Events(ctx)
	assert.Equal(t, 0, len(events))
}
