package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/earshot-ai/earshot/pkg/identity"
	"github.com/earshot-ai/earshot/pkg/rag"
	"github.com/earshot-ai/earshot/pkg/timewin"
)

// chatRequest is the body of POST /v1/chat and the first client frame
// on /v1/chat/ws.
type chatRequest struct {
	Message  string     `json:"message"`
	History  []rag.Turn `json:"history,omitempty"`
	Timezone string     `json:"timezone,omitempty"`
}

// handleChat answers a question over SSE. Each event is one
// "data: <json>" line; the stream ends after the done or error event.
func (s *Server) handleChat(c *gin.Context) {
	user := currentUser(c)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(c, http.StatusBadRequest, "message cannot be empty")
		return
	}

	start := time.Now()
	es, err := s.respond(c, user, req)
	if err != nil {
		s.metrics.RecordChat(true, time.Since(start).Seconds())
		s.fail(c, err)
		return
	}
	defer es.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	failed := false
	for {
		ev, err := es.Next()
		if err != nil {
			break
		}
		if ev.Type == rag.EventError {
			failed = true
		}
		data, _ := json.Marshal(ev)
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			break
		}
		c.Writer.Flush()
	}
	s.metrics.RecordChat(failed, time.Since(start).Seconds())
}

// handleChatWS answers a question over a WebSocket for clients that
// cannot consume SSE. The first client frame carries the request JSON;
// every server frame is one event.
func (s *Server) handleChatWS(c *gin.Context) {
	user := currentUser(c)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req chatRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.closeWS(conn, rag.Event{Type: rag.EventError, Message: "invalid request frame"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.closeWS(conn, rag.Event{Type: rag.EventError, Message: "message cannot be empty"})
		return
	}

	start := time.Now()
	es, err := s.respond(c, user, req)
	if err != nil {
		s.metrics.RecordChat(true, time.Since(start).Seconds())
		_, msg := errorBody(err)
		s.log.Error("chat failed", "error", err, "request_id", c.GetString(ctxRequestID))
		s.closeWS(conn, rag.Event{Type: rag.EventError, Message: msg})
		return
	}
	defer es.Close()

	failed := false
	for {
		ev, err := es.Next()
		if err != nil {
			break
		}
		if ev.Type == rag.EventError {
			failed = true
		}
		if err := conn.WriteJSON(ev); err != nil {
			break
		}
	}
	s.metrics.RecordChat(failed, time.Since(start).Seconds())
	s.closeWS(conn, rag.Event{})
}

// respond starts a generation stream for the caller's question.
func (s *Server) respond(c *gin.Context, user identity.User, req chatRequest) (*rag.EventStream, error) {
	loc := timewin.LoadLocation(req.Timezone)
	return s.responder.Respond(c.Request.Context(), user.ID, user.Name, req.Message, req.History, loc)
}

// closeWS optionally writes a final event and then the close frame.
func (s *Server) closeWS(conn *websocket.Conn, final rag.Event) {
	if final.Type != "" {
		if err := conn.WriteJSON(final); err != nil {
			return
		}
	}
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, deadline)
}
