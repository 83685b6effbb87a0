package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ohtaman/planchat/chatmodel"
	"github.com/ohtaman/planchat/orchestrator"
	"github.com/ohtaman/planchat/pkg/llms"
	"github.com/ohtaman/planchat/service"
	"github.com/ohtaman/planchat/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel returns canned responses in order, repeating the last one.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	calls     int
}

func (m *scriptedModel) GetName() string                    { return "scripted" }
func (m *scriptedModel) GetProviderType() llms.ProviderType { return llms.ProviderGoogleAI }

func (m *scriptedModel) GenerateContent(ctx context.Context, _ []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.calls
	m.calls++
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// blockingModel waits until the context is cancelled.
type blockingModel struct {
	started chan struct{}
	once    sync.Once
}

func (m *blockingModel) GetName() string                    { return "blocking" }
func (m *blockingModel) GetProviderType() llms.ProviderType { return llms.ProviderGoogleAI }

func (m *blockingModel) GenerateContent(ctx context.Context, _ []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.once.Do(func() { close(m.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func approvingLoopFactory() service.LoopFactory {
	return func() (*orchestrator.Loop, error) {
		planner := &scriptedModel{responses: []*llms.ContentResponse{
			{Choices: []*llms.ContentChoice{{Content: "Here is the plan."}}},
		}}
		mentor := &scriptedModel{responses: []*llms.ContentResponse{
			{Choices: []*llms.ContentChoice{{
				ToolCalls: []llms.ToolCall{{
					ID:           "call_exit",
					FunctionCall: &llms.FunctionCall{Name: "exit_loop", Arguments: "{}"},
				}},
			}}},
			{Choices: []*llms.ContentChoice{{Content: "Approved."}}},
		}}
		return orchestrator.NewLoop(orchestrator.Config{
			PlannerModel: planner,
			MentorModel:  mentor,
		})
	}
}

func Test_AgentService_Sessions(t *testing.T) {
	ctx := context.Background()
	svc := service.NewAgentService(store.NewMemoryStore(), approvingLoopFactory())
	defer svc.Stop()

	id, err := svc.CreateTalkSession(ctx, "user1", true, "plan the shifts")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	session, err := svc.GetTalkSession(ctx, "user1", id)
	require.NoError(t, err)
	assert.Equal(t, id, session.ID)
	assert.Equal(t, true, session.State["agent_mode"])
	assert.Equal(t, "plan the shifts", session.State["user_request"])

	ids, err := svc.ListTalkSessions(ctx, "user1")
	require.NoError(t, err)
	assert.Contains(t, ids, id)
}

func Test_AgentService_RunToCompletion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := service.NewAgentService(st, approvingLoopFactory())
	defer svc.Stop()

	id, err := svc.CreateTalkSession(ctx, "user1", true, "")
	require.NoError(t, err)

	events := svc.Subscribe(id)
	require.NoError(t, svc.AddMessage(ctx, "user1", id, "Plan the shifts."))

	var received []chatmodel.Event
	timeout := time.After(5 * time.Second)
collect:
	for {
		select {
		case ev, open := <-events:
			if !open {
				break collect
			}
			received = append(received, ev)
		case <-timeout:
			t.Fatal("timed out waiting for run to finish")
		}
	}

	require.NotEmpty(t, received)
	var sawAnswer, sawEscalate bool
	for _, ev := range received {
		if ev.Author == orchestrator.AuthorPlanner && ev.Text() == "Here is the plan." {
			sawAnswer = true
		}
		if ev.Actions.Escalate {
			sawEscalate = true
		}
	}
	assert.True(t, sawAnswer)
	assert.True(t, sawEscalate)

	// the user message and the run events are persisted
	session, err := svc.GetTalkSession(ctx, "user1", id)
	require.NoError(t, err)
	require.NotEmpty(t, session.Events)
	assert.True(t, session.Events[0].IsUser())
	assert.Equal(t, "Plan the shifts.", session.Events[0].Text())
	assert.Equal(t, len(received)+1, len(session.Events))
}

func Test_AgentService_NonAgentMode(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := service.NewAgentService(st, approvingLoopFactory())
	defer svc.Stop()

	id, err := svc.CreateTalkSession(ctx, "user1", false, "")
	require.NoError(t, err)

	events := svc.Subscribe(id)
	require.NoError(t, svc.AddMessage(ctx, "user1", id, "Plan the shifts."))

	var received []chatmodel.Event
	timeout := time.After(5 * time.Second)
	for open := true; open; {
		select {
		case ev, ok := <-events:
			if !ok {
				open = false
				break
			}
			received = append(received, ev)
		case <-timeout:
			t.Fatal("timed out waiting for run to finish")
		}
	}

	// only the planner runs with agent mode off
	require.NotEmpty(t, received)
	for _, ev := range received {
		assert.Equal(t, orchestrator.AuthorPlanner, ev.Author)
	}
}

func Test_AgentService_NewMessageCancelsActiveRun(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	blocking := &blockingModel{started: make(chan struct{})}
	first := true
	factory := func() (*orchestrator.Loop, error) {
		if first {
			first = false
			return orchestrator.NewLoop(orchestrator.Config{
				PlannerModel: blocking,
				MentorModel:  blocking,
			})
		}
		return approvingLoopFactory()()
	}

	svc := service.NewAgentService(st, factory)
	defer svc.Stop()

	id, err := svc.CreateTalkSession(ctx, "user1", true, "")
	require.NoError(t, err)

	require.NoError(t, svc.AddMessage(ctx, "user1", id, "first message"))
	<-blocking.started

	// the second message cancels the blocked run and completes
	events := svc.Subscribe(id)
	require.NoError(t, svc.AddMessage(ctx, "user1", id, "second message"))

	timeout := time.After(5 * time.Second)
	var sawAnswer bool
	for open := true; open; {
		select {
		case ev, ok := <-events:
			if !ok {
				open = false
				break
			}
			if ev.Text() == "Here is the plan." {
				sawAnswer = true
			}
		case <-timeout:
			t.Fatal("timed out waiting for second run")
		}
	}
	assert.True(t, sawAnswer)
}

// failingModel returns an error on every call.
type failingModel struct{}

func (m *failingModel) GetName() string                    { return "failing" }
func (m *failingModel) GetProviderType() llms.ProviderType { return llms.ProviderGoogleAI }

func (m *failingModel) GenerateContent(_ context.Context, _ []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, errors.New("model unavailable")
}

func Test_AgentService_RunFailureEmitsErrorEvent(t *testing.T) {
	ctx := context.Background()
	factory := func() (*orchestrator.Loop, error) {
		return orchestrator.NewLoop(orchestrator.Config{
			PlannerModel: &failingModel{},
			MentorModel:  &failingModel{},
		})
	}
	svc := service.NewAgentService(store.NewMemoryStore(), factory)
	defer svc.Stop()

	id, err := svc.CreateTalkSession(ctx, "user1", true, "")
	require.NoError(t, err)

	events := svc.Subscribe(id)
	require.NoError(t, svc.AddMessage(ctx, "user1", id, "Plan the shifts."))

	var errorEvent *chatmodel.Event
	timeout := time.After(5 * time.Second)
	for open := true; open; {
		select {
		case ev, ok := <-events:
			if !ok {
				open = false
				break
			}
			if ev.ErrorMessage != "" {
				copied := ev
				errorEvent = &copied
			}
		case <-timeout:
			t.Fatal("timed out waiting for run to finish")
		}
	}

	// the failure reaches the stream before it closes
	require.NotNil(t, errorEvent)
	assert.Contains(t, errorEvent.ErrorMessage, "model unavailable")
	assert.NotEmpty(t, errorEvent.Text())
}

func Test_AgentService_Reset(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := service.NewAgentService(st, approvingLoopFactory())
	defer svc.Stop()

	id, err := svc.CreateTalkSession(ctx, "user1", true, "")
	require.NoError(t, err)

	events := svc.Subscribe(id)
	require.NoError(t, svc.AddMessage(ctx, "user1", id, "Plan the shifts."))
	timeout := time.After(5 * time.Second)
	for open := true; open; {
		select {
		case _, ok := <-events:
			open = ok
		case <-timeout:
			t.Fatal("timed out waiting for run to finish")
		}
	}

	require.NoError(t, svc.ResetTalkSession(ctx, "user1", id))

	session, err := svc.GetTalkSession(ctx, "user1", id)
	require.NoError(t, err)
	assert.Empty(t, session.Events)
}

func Test_AgentService_StopRejectsNewMessages(t *testing.T) {
	ctx := context.Background()
	svc := service.NewAgentService(store.NewMemoryStore(), approvingLoopFactory())

	id, err := svc.CreateTalkSession(ctx, "user1", true, "")
	require.NoError(t, err)

	svc.Stop()
	err = svc.AddMessage(ctx, "user1", id, "hello")
	require.Error(t, err)
}
