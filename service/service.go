// Package service bridges the web front end and the agent loop. It owns the
// talk session registry, runs one agent loop per user message on a background
// goroutine, persists events into the session store and streams them to
// subscribers.
package service

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/ohtaman/planchat/chatmodel"
	"github.com/ohtaman/planchat/orchestrator"
	"github.com/ohtaman/planchat/store"
)

var logger = xlog.NewPackageLogger("github.com/ohtaman/planchat", "service")

// subscriberBuffer is the channel capacity per subscriber. Events are dropped
// for subscribers that fall this far behind; the full history remains in the
// store.
const subscriberBuffer = 256

// LoopFactory builds a fresh agent loop for a single run.
type LoopFactory func() (*orchestrator.Loop, error)

// run is an active agent run for a session.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
	// superseded marks a run cancelled in favor of a newer one for the same
	// session. Its teardown must leave the session subscribers open so the
	// replacement run can stream to them.
	superseded bool
}

// AgentService manages talk sessions and orchestrates agent processing.
type AgentService struct {
	store   store.EventStore
	newLoop LoopFactory

	mu      sync.Mutex
	runs    map[string]*run
	subs    map[string][]chan chatmodel.Event
	stopped bool
	wg      sync.WaitGroup
}

// NewAgentService creates the service on top of the session store.
func NewAgentService(st store.EventStore, newLoop LoopFactory) *AgentService {
	return &AgentService{
		store:   st,
		newLoop: newLoop,
		runs:    make(map[string]*run),
		subs:    make(map[string][]chan chatmodel.Event),
	}
}

// CreateTalkSession registers a new talk session for the user and returns its ID.
func (s *AgentService) CreateTalkSession(ctx context.Context, userID string, agentMode bool, userRequest string) (string, error) {
	chatCtx := chatmodel.NewChatContext(userID, "")
	ctx = chatmodel.WithChatContext(ctx, chatCtx)

	state := map[string]any{
		"agent_mode": agentMode,
	}
	if userRequest != "" {
		state["user_request"] = userRequest
	}
	session, err := s.store.UpdateSession(ctx, "", state)
	if err != nil {
		return "", errors.WithMessage(err, "failed to create talk session")
	}
	return session.ID, nil
}

// GetTalkSession returns the session with its events.
func (s *AgentService) GetTalkSession(ctx context.Context, userID, sessionID string) (*store.TalkSession, error) {
	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(userID, sessionID))
	return s.store.GetSession(ctx, sessionID)
}

// ListTalkSessions returns the session IDs of the user.
func (s *AgentService) ListTalkSessions(ctx context.Context, userID string) ([]string, error) {
	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(userID, chatmodel.NewID()))
	return s.store.ListSessions(ctx)
}

// Subscribe registers a listener for the events of the session. The returned
// channel is closed when the active run ends, or on Unsubscribe.
func (s *AgentService) Subscribe(sessionID string) <-chan chatmodel.Event {
	ch := make(chan chatmodel.Event, subscriberBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sessionID] = append(s.subs[sessionID], ch)
	return ch
}

// Unsubscribe removes the listener and closes its channel.
func (s *AgentService) Unsubscribe(sessionID string, ch <-chan chatmodel.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.subs[sessionID]
	for i, sub := range list {
		if sub == ch {
			s.subs[sessionID] = append(list[:i], list[i+1:]...)
			close(sub)
			return
		}
	}
}

// ResetTalkSession cancels any active run and removes the stored session with
// its event history.
func (s *AgentService) ResetTalkSession(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	prev := s.runs[sessionID]
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(userID, sessionID))
	if err := s.store.Reset(ctx); err != nil {
		return errors.WithMessage(err, "failed to reset talk session")
	}
	return nil
}

// AddMessage appends the user message to the session and starts a new agent
// run. Any active run for the session is cancelled first.
func (s *AgentService) AddMessage(ctx context.Context, userID, sessionID, text string) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.New("agent service is stopped")
	}
	prev := s.runs[sessionID]
	if prev != nil {
		prev.superseded = true
	}
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	chatCtx := chatmodel.NewChatContext(userID, sessionID)
	storeCtx := chatmodel.WithChatContext(context.Background(), chatCtx)

	agentMode := true
	if session, err := s.store.GetSession(storeCtx, sessionID); err == nil {
		if v, ok := session.State["agent_mode"].(bool); ok {
			agentMode = v
		}
	}

	// History is built before the new message: the loop adds it itself.
	history := store.EventsToMessages(s.store.Events(storeCtx))

	if err := s.store.Append(storeCtx, chatmodel.NewUserEvent(text)); err != nil {
		return errors.WithMessage(err, "failed to append user message")
	}

	loop, err := s.newLoop()
	if err != nil {
		return errors.WithMessage(err, "failed to build agent loop")
	}

	runCtx, cancel := context.WithCancel(storeCtx)
	r := &run{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[sessionID] = r
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(r.done)
		defer cancel()
		defer s.finishRun(sessionID, r)

		emit := func(ev chatmodel.Event) {
			if err := s.store.Append(runCtx, ev); err != nil {
				logger.ContextKV(runCtx, xlog.ERROR, "reason", "append event", "err", err.Error())
			}
			s.publish(sessionID, ev)
		}

		runLoop := loop.Run
		if !agentMode {
			runLoop = loop.RunOnce
		}
		result, err := runLoop(runCtx, text, history, emit)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.ContextKV(runCtx, xlog.DEBUG, "status", "run_cancelled", "session", sessionID)
				return
			}
			logger.ContextKV(runCtx, xlog.ERROR, "reason", "agent run", "session", sessionID, "err", err.Error())
			ev := chatmodel.NewAgentEvent(chatmodel.NewID(), orchestrator.AuthorPlanner, chatmodel.EventPart{
				Text: "The agents could not finish processing this message. Please try again.",
			})
			ev.ErrorMessage = err.Error()
			emit(ev)
			return
		}
		logger.ContextKV(runCtx, xlog.INFO,
			"status", "run_finished",
			"session", sessionID,
			"outcome", result.Outcome,
			"iterations", result.Iterations,
		)
	}()

	return nil
}

// finishRun removes the run registration and closes the session subscribers,
// signalling the end of the stream. A superseded run leaves the subscribers
// open; the run that replaced it closes them when it finishes.
func (s *AgentService) finishRun(sessionID string, r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[sessionID] == r {
		delete(s.runs, sessionID)
	}
	if r.superseded {
		return
	}
	for _, sub := range s.subs[sessionID] {
		close(sub)
	}
	delete(s.subs, sessionID)
}

func (s *AgentService) publish(sessionID string, ev chatmodel.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs[sessionID] {
		select {
		case sub <- ev:
		default:
			logger.KV(xlog.WARNING, "reason", "slow subscriber", "session", sessionID)
		}
	}
}

// Stop cancels all active runs and waits for them to finish.
func (s *AgentService) Stop() {
	s.mu.Lock()
	s.stopped = true
	active := make([]*run, 0, len(s.runs))
	for _, r := range s.runs {
		active = append(active, r)
	}
	s.mu.Unlock()

	for _, r := range active {
		r.cancel()
	}
	s.wg.Wait()
}
