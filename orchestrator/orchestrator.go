// Package orchestrator runs the planner/mentor refinement loop: the planner
// agent drafts an answer using the optimization tools, the mentor agent
// reviews it and either approves, asks the user, or requests a revision.
package orchestrator

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/ohtaman/planchat/assistants"
	"github.com/ohtaman/planchat/callbacks"
	"github.com/ohtaman/planchat/chatmodel"
	"github.com/ohtaman/planchat/pkg/llms"
	"github.com/ohtaman/planchat/pkg/llmutils"
	"github.com/ohtaman/planchat/pkg/metricskey"
	"github.com/ohtaman/planchat/pkg/prompts"
	"github.com/ohtaman/planchat/tools"
	"github.com/ohtaman/planchat/tools/loopctl"
)

var logger = xlog.NewPackageLogger("github.com/ohtaman/planchat", "orchestrator")

//go:embed instructions/planner.md
var plannerInstruction string

//go:embed instructions/mentor.md
var mentorInstruction string

// Agent names used as event authors.
const (
	AuthorPlanner = "planner_agent"
	AuthorMentor  = "mentor_agent"
)

const (
	// DefaultMaxIterations bounds the refinement loop.
	DefaultMaxIterations = 50

	// DefaultPlannerThinkingBudget is the reasoning token budget of the planner.
	DefaultPlannerThinkingBudget = 2048
	// DefaultMentorThinkingBudget is the reasoning token budget of the mentor.
	DefaultMentorThinkingBudget = 1024
)

// Outcome is how a loop run ended.
type Outcome string

const (
	// OutcomeApproved means the mentor approved the answer.
	OutcomeApproved Outcome = "approved"
	// OutcomeAskUser means the mentor handed control back to the user.
	OutcomeAskUser Outcome = "ask_user"
	// OutcomeExhausted means the iteration limit was reached.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeCompleted means the planner answered without mentor review.
	OutcomeCompleted Outcome = "completed"
)

// Result is the outcome of a single loop run.
type Result struct {
	// Answer is the planner's latest answer.
	Answer string
	// Outcome is how the run ended.
	Outcome Outcome
	// Question is the mentor's question for the user, when Outcome is
	// OutcomeAskUser and the mentor provided one.
	Question string
	// Iterations is the number of completed planner/mentor rounds.
	Iterations int
}

// EmitFunc receives events as the loop produces them.
type EmitFunc func(chatmodel.Event)

// Config configures the loop.
type Config struct {
	MaxIterations         int
	MaxToolCalls          int
	PlannerThinkingBudget int32
	MentorThinkingBudget  int32
	PlannerModel          llms.Model
	MentorModel           llms.Model
	PlannerTools          []tools.ITool
	Callback              assistants.Callback
}

// Loop is the planner/mentor refinement loop.
type Loop struct {
	planner *assistants.Assistant
	mentor  *assistants.Assistant
	ctrl    *loopctl.Controller
	tracker *callbacks.ToolTracker

	maxIterations int
	callback      assistants.Callback
}

// NewLoop builds the loop and its two agents.
func NewLoop(cfg Config) (*Loop, error) {
	if cfg.PlannerModel == nil || cfg.MentorModel == nil {
		return nil, errors.New("planner and mentor models are required")
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	plannerBudget := cfg.PlannerThinkingBudget
	if plannerBudget <= 0 {
		plannerBudget = DefaultPlannerThinkingBudget
	}
	mentorBudget := cfg.MentorThinkingBudget
	if mentorBudget <= 0 {
		mentorBudget = DefaultMentorThinkingBudget
	}

	ctrl := loopctl.NewController()
	exitTool, err := loopctl.NewExitTool(ctrl)
	if err != nil {
		return nil, err
	}
	askTool, err := loopctl.NewAskTool(ctrl)
	if err != nil {
		return nil, err
	}

	plannerOpts := []assistants.Option{
		assistants.WithThinkingBudget(plannerBudget),
		assistants.WithIncludeThoughts(true),
	}
	if cfg.MaxToolCalls > 0 {
		plannerOpts = append(plannerOpts, assistants.WithMaxToolCalls(cfg.MaxToolCalls))
	}

	planner := assistants.NewAssistant(
		cfg.PlannerModel,
		prompts.MustNewTemplate(plannerInstruction),
		plannerOpts...,
	).
		WithName(AuthorPlanner).
		WithDescription("Agent for business planning and allocation").
		WithTools(cfg.PlannerTools...)

	mentor := assistants.NewAssistant(
		cfg.MentorModel,
		prompts.MustNewTemplate(mentorInstruction, "user_input", "work_result", "tools_used"),
		assistants.WithThinkingBudget(mentorBudget),
		assistants.WithIncludeThoughts(true),
	).
		WithName(AuthorMentor).
		WithDescription("Agent to judge whether to continue").
		WithTools(exitTool, askTool)

	return &Loop{
		planner:       planner,
		mentor:        mentor,
		ctrl:          ctrl,
		tracker:       callbacks.NewToolTracker(),
		maxIterations: maxIterations,
		callback:      cfg.Callback,
	}, nil
}

// Planner returns the planner agent.
func (l *Loop) Planner() assistants.IAssistant { return l.planner }

// Mentor returns the mentor agent.
func (l *Loop) Mentor() assistants.IAssistant { return l.mentor }

// Run executes the refinement loop for a single user message. The history is
// the prior conversation of the session; emit receives events as they are
// produced.
func (l *Loop) Run(ctx context.Context, input string, history []llms.Message, emit EmitFunc) (*Result, error) {
	started := time.Now()
	defer metricskey.PerfChatRun.MeasureSince(started, AuthorPlanner)

	if emit == nil {
		emit = func(chatmodel.Event) {}
	}

	invocationID := chatmodel.NewID()
	convo := make([]llms.Message, 0, len(history)+1)
	convo = append(convo, history...)
	convo = append(convo, llms.MessageFromTextParts(llms.RoleHuman, input))

	var workResult string
	for i := 1; i <= l.maxIterations; i++ {
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "iteration_start",
			"invocation_id", invocationID,
			"iteration", i,
		)

		l.tracker.Reset()
		plannerCB := l.runCallback(invocationID, AuthorPlanner, emit)

		resp, err := l.planner.Call(ctx, &assistants.CallInput{
			Messages: convo,
			Options: []assistants.Option{
				assistants.WithCallback(plannerCB),
				plannerStream(invocationID, emit),
			},
		})
		if err != nil {
			return nil, errors.WithMessage(err, "planner call failed")
		}
		choice := resp.Choices[0]
		workResult = choice.Content

		emit(agentTextEvent(invocationID, AuthorPlanner, choice))
		convo = append(convo, llms.MessageFromTextParts(llms.RoleAI, workResult))

		l.ctrl.Reset()
		mentorCB := l.runCallback(invocationID, AuthorMentor, emit)

		mentorResp, err := l.mentor.Call(ctx, &assistants.CallInput{
			Input: "Review the latest assistant response now and take exactly one action.",
			PromptInputs: map[string]any{
				"user_input":  input,
				"work_result": workResult,
				"tools_used":  l.tracker.JSON(),
			},
			Options: []assistants.Option{assistants.WithCallback(mentorCB)},
		})
		if err != nil {
			return nil, errors.WithMessage(err, "mentor call failed")
		}
		mentorChoice := mentorResp.Choices[0]

		if question, asked := l.ctrl.Question(); asked {
			ev := agentTextEvent(invocationID, AuthorMentor, mentorChoice)
			ev.Actions = chatmodel.EventActions{AskUser: question}
			emit(ev)
			metricskey.StatsLoopIterations.IncrCounter(float64(i), string(OutcomeAskUser))
			return &Result{
				Answer:     workResult,
				Outcome:    OutcomeAskUser,
				Question:   question,
				Iterations: i,
			}, nil
		}
		if l.ctrl.Escalated() {
			ev := agentTextEvent(invocationID, AuthorMentor, mentorChoice)
			ev.Actions = chatmodel.EventActions{Escalate: true}
			emit(ev)
			metricskey.StatsLoopIterations.IncrCounter(float64(i), string(OutcomeApproved))
			return &Result{
				Answer:     workResult,
				Outcome:    OutcomeApproved,
				Iterations: i,
			}, nil
		}

		feedback := mentorChoice.Content
		emit(agentTextEvent(invocationID, AuthorMentor, mentorChoice))
		convo = append(convo, llms.MessageFromTextParts(llms.RoleHuman,
			fmt.Sprintf("[%s feedback]\n%s", AuthorMentor, feedback)))

		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "revision_requested",
			"invocation_id", invocationID,
			"iteration", i,
			"feedback", llmutils.StringUpto(feedback, 64),
		)
	}

	metricskey.StatsLoopIterations.IncrCounter(float64(l.maxIterations), string(OutcomeExhausted))
	logger.ContextKV(ctx, xlog.WARNING,
		"status", "iterations_exhausted",
		"invocation_id", invocationID,
		"max_iterations", l.maxIterations,
	)
	emit(chatmodel.NewAgentEvent(invocationID, AuthorMentor, chatmodel.EventPart{
		Text: fmt.Sprintf("Stopping after %d review rounds without approval. The latest draft above is the best answer so far.", l.maxIterations),
	}))
	return &Result{
		Answer:     workResult,
		Outcome:    OutcomeExhausted,
		Iterations: l.maxIterations,
	}, nil
}

// RunOnce executes the planner a single time without mentor review, for
// sessions created with agent mode off.
func (l *Loop) RunOnce(ctx context.Context, input string, history []llms.Message, emit EmitFunc) (*Result, error) {
	started := time.Now()
	defer metricskey.PerfChatRun.MeasureSince(started, AuthorPlanner)

	if emit == nil {
		emit = func(chatmodel.Event) {}
	}

	invocationID := chatmodel.NewID()
	convo := make([]llms.Message, 0, len(history)+1)
	convo = append(convo, history...)
	convo = append(convo, llms.MessageFromTextParts(llms.RoleHuman, input))

	l.tracker.Reset()
	plannerCB := l.runCallback(invocationID, AuthorPlanner, emit)

	resp, err := l.planner.Call(ctx, &assistants.CallInput{
		Messages: convo,
		Options: []assistants.Option{
			assistants.WithCallback(plannerCB),
			plannerStream(invocationID, emit),
		},
	})
	if err != nil {
		return nil, errors.WithMessage(err, "planner call failed")
	}
	choice := resp.Choices[0]
	emit(agentTextEvent(invocationID, AuthorPlanner, choice))

	metricskey.StatsLoopIterations.IncrCounter(1, string(OutcomeCompleted))
	return &Result{
		Answer:     choice.Content,
		Outcome:    OutcomeCompleted,
		Iterations: 1,
	}, nil
}

// runCallback builds the per-run callback chain: tool usage tracking, event
// emission and any externally provided callback.
func (l *Loop) runCallback(invocationID, author string, emit EmitFunc) assistants.Callback {
	cbs := []assistants.Callback{
		l.tracker,
		&toolEventEmitter{invocationID: invocationID, author: author, emit: emit},
	}
	if l.callback != nil {
		cbs = append(cbs, l.callback)
	}
	return callbacks.NewFanout(cbs...)
}

// plannerStream forwards planner text deltas as partial events. The final
// planner event for the invocation carries the complete text and supersedes
// the partials.
func plannerStream(invocationID string, emit EmitFunc) assistants.Option {
	return assistants.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		ev := chatmodel.NewAgentEvent(invocationID, AuthorPlanner, chatmodel.EventPart{Text: string(chunk)})
		ev.Partial = true
		emit(ev)
		return nil
	})
}

// agentTextEvent converts a content choice to an event, keeping reasoning
// summaries separate from response text.
func agentTextEvent(invocationID, author string, choice *llms.ContentChoice) chatmodel.Event {
	var parts []chatmodel.EventPart
	if choice.ReasoningContent != "" {
		parts = append(parts, chatmodel.EventPart{Text: choice.ReasoningContent, Thought: true})
	}
	if choice.Content != "" {
		parts = append(parts, chatmodel.EventPart{Text: choice.Content})
	}
	return chatmodel.NewAgentEvent(invocationID, author, parts...)
}

// toolEventEmitter streams tool activity as events while an agent runs.
type toolEventEmitter struct {
	callbacks.Noop

	invocationID string
	author       string
	emit         EmitFunc
}

func (t *toolEventEmitter) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	t.emit(chatmodel.NewAgentEvent(t.invocationID, t.author, chatmodel.EventPart{
		ToolCall: &chatmodel.ToolCallPart{Name: tool.Name(), Args: input},
	}))
}

func (t *toolEventEmitter) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string) {
	t.emit(chatmodel.NewAgentEvent(t.invocationID, t.author, chatmodel.EventPart{
		ToolResponse: &chatmodel.ToolResponsePart{Name: tool.Name(), Content: output},
	}))
}

func (t *toolEventEmitter) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	t.emit(chatmodel.NewAgentEvent(t.invocationID, t.author, chatmodel.EventPart{
		ToolResponse: &chatmodel.ToolResponsePart{Name: tool.Name(), Content: err.Error(), IsError: true},
	}))
}
