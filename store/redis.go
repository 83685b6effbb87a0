package store

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/ohtaman/planchat/chatmodel"
	"github.com/redis/go-redis/v9"
)

// The redis store implements the EventStore interface using Redis as the
// backend. The keys namespace is organized as follows:
// - `/<prefix>/sessions/<userID>/events/<sessionID>` for the event history
// - `/<prefix>/sessions/<userID>/info/<sessionID>` for the session metadata
// - `/<prefix>/sessions/<userID>/list` for the set of session IDs of a user

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns an EventStore backed by Redis.
func NewRedisStore(client *redis.Client, prefix string) EventStore {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (m *redisStore) getRedisEventsKey(userID, sessionID string) string {
	return path.Join(m.prefix, "sessions", userID, "events", sessionID)
}

func (m *redisStore) getRedisSessionInfoKey(userID, sessionID string) string {
	return path.Join(m.prefix, "sessions", userID, "info", sessionID)
}

func (m *redisStore) getRedisSessionListKey(userID string) string {
	return path.Join(m.prefix, "sessions", userID, "list")
}

func (m *redisStore) Events(ctx context.Context) []chatmodel.Event {
	userID, sessionID, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "GetUserAndChatID", "err", err.Error())
		return nil
	}

	key := m.getRedisEventsKey(userID, sessionID)
	data, err := m.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "LRange", "err", err.Error())
		return nil
	}

	var events []chatmodel.Event
	for _, item := range data {
		var ev chatmodel.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal event", "err", err.Error())
			continue
		}
		events = append(events, ev)
	}
	return events
}

func (m *redisStore) Append(ctx context.Context, ev chatmodel.Event) error {
	userID, sessionID, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	key := m.getRedisEventsKey(userID, sessionID)
	pipe := m.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -maxEvents, -1)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store event in Redis")
	}

	// Update the time
	_, err = m.UpdateSession(ctx, "", nil)
	return err
}

func (m *redisStore) Reset(ctx context.Context) error {
	userID, sessionID, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return err
	}

	eventsKey := m.getRedisEventsKey(userID, sessionID)
	infoKey := m.getRedisSessionInfoKey(userID, sessionID)
	listKey := m.getRedisSessionListKey(userID)

	pipe := m.client.Pipeline()
	pipe.Del(ctx, eventsKey)
	pipe.Del(ctx, infoKey)
	pipe.SRem(ctx, listKey, sessionID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to reset session in Redis")
	}

	return nil
}

// UpdateSession creates or updates a session with the title and state for the
// user and session ID from context.
func (m *redisStore) UpdateSession(ctx context.Context, title string, state map[string]any) (*TalkSession, error) {
	_, sessionID, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	session, err := m.getSessionInfo(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session info")
	}

	if title != "" {
		session.Title = title
	}
	if state != nil {
		if session.State == nil {
			session.State = make(map[string]any)
		}
		for k, v := range state {
			session.State[k] = v
		}
	}
	session.UpdatedAt = time.Now()

	err = m.updateSession(ctx, session, false)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (m *redisStore) updateSession(ctx context.Context, session *TalkSession, isNew bool) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session info")
	}

	infoKey := m.getRedisSessionInfoKey(session.UserID, session.ID)
	listKey := m.getRedisSessionListKey(session.UserID)

	pipe := m.client.Pipeline()
	pipe.Set(ctx, infoKey, data, 0)
	if isNew {
		pipe.SAdd(ctx, listKey, session.ID)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store session info in Redis")
	}

	return nil
}

func (m *redisStore) ListSessions(ctx context.Context) ([]string, error) {
	userID, _, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	listKey := m.getRedisSessionListKey(userID)
	ids, err := m.client.SMembers(ctx, listKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list sessions from Redis")
	}

	return ids, nil
}

func (m *redisStore) GetSession(ctx context.Context, id string) (*TalkSession, error) {
	info, err := m.getSessionInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	info.Events = m.Events(ctx)
	return info, nil
}

// returns the session information for the user and session ID from context,
// without events
func (m *redisStore) getSessionInfo(ctx context.Context, id string) (*TalkSession, error) {
	userID, sessionID, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = sessionID
	}

	infoKey := m.getRedisSessionInfoKey(userID, id)
	var session *TalkSession
	data, err := m.client.Get(ctx, infoKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, errors.Wrap(err, "failed to get session info from Redis")
		}
		session = &TalkSession{
			UserID:    userID,
			ID:        id,
			Title:     "New Chat",
			State:     make(map[string]any),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		err = m.updateSession(ctx, session, true)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize new session info")
		}
	} else {
		session = &TalkSession{}
		err = json.Unmarshal([]byte(data), session)
		if err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal session info")
		}
	}

	return session, nil
}
