package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ohtaman/planchat/pkg/llms"
	"github.com/ohtaman/planchat/store"
)

// heartbeatInterval is the cadence of SSE keep-alive comments.
const heartbeatInterval = 15 * time.Second

type createSessionRequest struct {
	UserRequest string `json:"user_request"`
	AgentMode   *bool  `json:"agent_mode,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	agentMode := true
	if req.AgentMode != nil {
		agentMode = *req.AgentMode
	}

	id, err := s.svc.CreateTalkSession(c.Request().Context(), userID(c), agentMode, req.UserRequest)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createSessionResponse{SessionID: id})
}

func (s *Server) listSessions(c echo.Context) error {
	ids, err := s.svc.ListTalkSessions(c.Request().Context(), userID(c))
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": ids})
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) getEvents(c echo.Context) error {
	sessionID := c.Param("id")
	session, err := s.svc.GetTalkSession(c.Request().Context(), userID(c), sessionID)
	if err != nil {
		return err
	}

	messages := []historyMessage{}
	for _, msg := range store.EventsToMessages(session.Events) {
		role := "assistant"
		if msg.Role == llms.RoleHuman {
			role = "user"
		}
		messages = append(messages, historyMessage{
			Role:    role,
			Content: llms.TextFromParts(msg.Parts),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id": session.ID,
		"title":      session.Title,
		"messages":   messages,
	})
}

// resetEvents removes the session history, cancelling any active run first.
func (s *Server) resetEvents(c echo.Context) error {
	sessionID := c.Param("id")
	if err := s.svc.ResetTalkSession(c.Request().Context(), userID(c), sessionID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "reset"})
}

type postMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) postMessage(c echo.Context) error {
	sessionID := c.Param("id")
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	err := s.svc.AddMessage(c.Request().Context(), userID(c), sessionID, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]any{"status": "started"})
}

// stream sends the events of the active run over Server-Sent Events. The
// stream ends when the run finishes or the client disconnects.
func (s *Server) stream(c echo.Context) error {
	sessionID := c.Param("id")
	req := c.Request()
	ctx := req.Context()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	flusher.Flush()

	events := s.svc.Subscribe(sessionID)
	defer s.svc.Unsubscribe(sessionID, events)

	send := func(eventType string, payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := resp.Write([]byte("event: " + eventType + "\n")); err != nil {
			return err
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := resp.Write([]byte(": keep-alive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				_ = send("done", map[string]any{"session_id": sessionID})
				return nil
			}
			if err := send("message", ev); err != nil {
				return nil
			}
		}
	}
}
