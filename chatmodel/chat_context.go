package chatmodel

import (
	"context"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

var (
	// ErrInvalidChatContext is returned when the context does not carry a chat context.
	ErrInvalidChatContext = errors.New("invalid chat context")
)

// ChatContext is the context for a conversation. It carries the user ID,
// the chat (talk session) ID, and the ID of the current run.
type ChatContext interface {
	GetUserID() string
	GetChatID() string
	// RunID identifies the current agent run within the chat.
	RunID() string
	// GetMetadata retrieves metadata by key
	GetMetadata(key string) (value any, ok bool)
	// SetMetadata sets metadata by key
	SetMetadata(key string, value any)
}

type chatContext struct {
	userID   string
	chatID   string
	runID    string
	metadata sync.Map
}

func (c *chatContext) GetUserID() string {
	return c.userID
}

func (c *chatContext) GetChatID() string {
	return c.chatID
}

func (c *chatContext) RunID() string {
	return c.runID
}

func (c *chatContext) GetMetadata(key string) (value any, ok bool) {
	return c.metadata.Load(key)
}

func (c *chatContext) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

func NewChatContext(userID, chatID string) ChatContext {
	return &chatContext{
		userID: userID,
		chatID: values.StringsCoalesce(chatID, NewID()),
		runID:  NewID(),
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatContext retrieves the ChatContext from the context
func GetChatContext(ctx context.Context) ChatContext {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v
	}
	return nil
}

// GetUserAndChatID retrieves the user ID and chat ID from the provided context.
func GetUserAndChatID(ctx context.Context) (userID, chatID string, err error) {
	v, ok := ctx.Value(keyContext).(ChatContext)
	if !ok {
		return "", "", errors.WithStack(ErrInvalidChatContext)
	}
	return v.GetUserID(), v.GetChatID(), nil
}

// GetChatID retrieves the chat ID from the provided context.
// If the context does not contain a ChatContext, it returns an empty string.
func GetChatID(ctx context.Context) string {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v.GetChatID()
	}
	return ""
}

// NewID generates a new ID using the flake ID generator.
func NewID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
