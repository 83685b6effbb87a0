package store

import (
	"context"
	"sync"
	"time"

	"github.com/ohtaman/planchat/chatmodel"
)

type memorySession struct {
	info   TalkSession
	events []chatmodel.Event
}

type inMemory struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*memorySession
}

// NewMemoryStore returns an EventStore backed by process memory.
func NewMemoryStore() EventStore {
	return &inMemory{}
}

func (m *inMemory) Events(ctx context.Context) []chatmodel.Event {
	userID, sessionID, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sessions[userID][sessionID]
	if s == nil {
		return nil
	}
	events := make([]chatmodel.Event, len(s.events))
	copy(events, s.events)
	return events
}

func (m *inMemory) Append(ctx context.Context, ev chatmodel.Event) error {
	userID, sessionID, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreate(userID, sessionID)
	s.events = append(s.events, ev)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	s.info.UpdatedAt = time.Now()
	return nil
}

func (m *inMemory) Reset(ctx context.Context) error {
	userID, sessionID, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if byUser := m.sessions[userID]; byUser != nil {
		delete(byUser, sessionID)
	}
	return nil
}

func (m *inMemory) UpdateSession(ctx context.Context, title string, state map[string]any) (*TalkSession, error) {
	userID, sessionID, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreate(userID, sessionID)
	if title != "" {
		s.info.Title = title
	}
	if state != nil {
		if s.info.State == nil {
			s.info.State = make(map[string]any)
		}
		for k, v := range state {
			s.info.State[k] = v
		}
	}
	s.info.UpdatedAt = time.Now()

	info := s.info
	return &info, nil
}

func (m *inMemory) ListSessions(ctx context.Context) ([]string, error) {
	userID, _, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id := range m.sessions[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *inMemory) GetSession(ctx context.Context, id string) (*TalkSession, error) {
	userID, sessionID, err := chatmodel.GetUserAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = sessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[userID][id]
	if s == nil {
		s = m.create(userID, id)
	}
	info := s.info
	info.Events = make([]chatmodel.Event, len(s.events))
	copy(info.Events, s.events)
	return &info, nil
}

// getOrCreate requires m.mu to be held.
func (m *inMemory) getOrCreate(userID, sessionID string) *memorySession {
	if s := m.sessions[userID][sessionID]; s != nil {
		return s
	}
	return m.create(userID, sessionID)
}

// create requires m.mu to be held.
func (m *inMemory) create(userID, sessionID string) *memorySession {
	if m.sessions == nil {
		m.sessions = make(map[string]map[string]*memorySession)
	}
	if m.sessions[userID] == nil {
		m.sessions[userID] = make(map[string]*memorySession)
	}
	now := time.Now()
	s := &memorySession{
		info: TalkSession{
			UserID:    userID,
			ID:        sessionID,
			Title:     "New Chat",
			State:     make(map[string]any),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	m.sessions[userID][sessionID] = s
	return s
}
