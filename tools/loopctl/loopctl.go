// Package loopctl provides the flow-control tools exposed to the reviewer
// agent: one to approve the current answer and leave the loop, and one to
// hand control back to the user with a question.
package loopctl

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/ohtaman/planchat/chatmodel"
	"github.com/ohtaman/planchat/pkg/llmutils"
	"github.com/ohtaman/planchat/pkg/schema"
	"github.com/ohtaman/planchat/tools"
)

const (
	// ExitToolName is the tool the reviewer calls to approve and finish.
	ExitToolName = "exit_loop"
	// AskToolName is the tool the reviewer calls to hand control back to
	// the user.
	AskToolName = "ask"
)

// Controller records the flow-control decision taken during a single loop
// iteration. It is reset by the loop before each reviewer run.
type Controller struct {
	mu       sync.Mutex
	exited   bool
	asked    bool
	question string
}

func NewController() *Controller {
	return &Controller{}
}

// Reset clears the decision before a new reviewer run.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exited = false
	c.asked = false
	c.question = ""
}

// Escalated reports whether either flow-control tool was called.
func (c *Controller) Escalated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exited || c.asked
}

// Question returns the pending question for the user, if the ask tool was called.
func (c *Controller) Question() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.question, c.asked
}

func (c *Controller) exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exited = true
}

func (c *Controller) ask(question string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asked = true
	c.question = question
}

// ExitRequest represents the exit_loop tool input.
type ExitRequest struct{}

// AskRequest represents the ask tool input.
type AskRequest struct {
	Question string `json:"question,omitempty" jsonschema:"title=question,description=The question or confirmation to present to the user."`
}

// ExitResponse is returned by both flow-control tools.
type ExitResponse struct {
	Status string `json:"status"`
}

// GetContent implements the chatmodel.ContentProvider interface.
func (r *ExitResponse) GetContent() string {
	return llmutils.ToJSON(r)
}

// ExitTool signals that the current answer is approved and the loop should stop.
type ExitTool struct {
	ctrl       *Controller
	funcParams any
}

var _ tools.Tool[ExitRequest, ExitResponse] = (*ExitTool)(nil)

func NewExitTool(ctrl *Controller) (*ExitTool, error) {
	sc, err := schema.New(reflect.TypeOf(ExitRequest{}))
	if err != nil {
		return nil, err
	}
	return &ExitTool{
		ctrl:       ctrl,
		funcParams: sc.Parameters,
	}, nil
}

func (t *ExitTool) Name() string {
	return ExitToolName
}

func (t *ExitTool) Description() string {
	return "Approve the latest answer as final and exit the review loop. Call only when no further revision or user input is needed."
}

func (t *ExitTool) Parameters() any {
	return t.funcParams
}

func (t *ExitTool) Call(ctx context.Context, _ string) (string, error) {
	resp, err := t.Run(ctx, &ExitRequest{})
	if err != nil {
		return "", err
	}
	return chatmodel.Stringify(resp), nil
}

func (t *ExitTool) Run(_ context.Context, _ *ExitRequest) (*ExitResponse, error) {
	t.ctrl.exit()
	return &ExitResponse{Status: "exiting"}, nil
}

// AskTool asks the user for additional information or confirmation,
// stopping the loop until the user replies.
type AskTool struct {
	ctrl       *Controller
	funcParams any
}

var _ tools.Tool[AskRequest, ExitResponse] = (*AskTool)(nil)

func NewAskTool(ctrl *Controller) (*AskTool, error) {
	sc, err := schema.New(reflect.TypeOf(AskRequest{}))
	if err != nil {
		return nil, err
	}
	return &AskTool{
		ctrl:       ctrl,
		funcParams: sc.Parameters,
	}, nil
}

func (t *AskTool) Name() string {
	return AskToolName
}

func (t *AskTool) Description() string {
	return "Ask the user for additional information or confirmation. The loop stops until the user replies."
}

func (t *AskTool) Parameters() any {
	return t.funcParams
}

func (t *AskTool) Call(ctx context.Context, input string) (string, error) {
	var req AskRequest
	if input != "" {
		// Tolerate malformed arguments, the question is optional.
		_ = json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req)
	}
	resp, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return chatmodel.Stringify(resp), nil
}

func (t *AskTool) Run(_ context.Context, req *AskRequest) (*ExitResponse, error) {
	t.ctrl.ask(req.Question)
	return &ExitResponse{Status: "waiting_for_user"}, nil
}
