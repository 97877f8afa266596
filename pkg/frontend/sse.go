package frontend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// sseSession is one long-lived SSE connection awaiting messages posted to
// /messages?sessionId=….
type sseSession struct {
	id      string
	groupID string
	events  chan Response
	done    chan struct{}
}

// sseRegistry maps sessionId to its live connection. A POST to /messages
// for an unknown session returns 400.
type sseRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sseSession
}

func newSSERegistry() *sseRegistry {
	return &sseRegistry{sessions: make(map[string]*sseSession)}
}

func (r *sseRegistry) create(groupID string) *sseSession {
	s := &sseSession{
		id:      uuid.NewString(),
		groupID: groupID,
		events:  make(chan Response, 32),
		done:    make(chan struct{}),
	}
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

func (r *sseRegistry) get(id string) (*sseSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *sseRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		close(s.done)
		delete(r.sessions, id)
	}
}

// handleSSE opens a long-lived event stream and registers the session so
// POST /messages can route replies back to it.
func (f *Frontend) handleSSE(groupID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := f.sse.create(groupID)
		defer f.sse.remove(session.id)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.WriteHeader(http.StatusOK)

		fmt.Fprintf(c.Writer, "event: endpoint\ndata: /messages?sessionId=%s\n\n", session.id)
		c.Writer.Flush()

		for {
			select {
			case resp := <-session.events:
				payload, err := json.Marshal(resp)
				if err != nil {
					continue
				}
				fmt.Fprintf(c.Writer, "event: message\ndata: %s\n\n", payload)
				c.Writer.Flush()
			case <-c.Request.Context().Done():
				return
			case <-session.done:
				return
			}
		}
	}
}

// handleSSEMessage accepts a JSON-RPC request for a registered SSE session
// and delivers the response asynchronously over that session's stream.
func (f *Frontend) handleSSEMessage(c *gin.Context) {
	sessionID := c.Query("sessionId")
	session, ok := f.sse.get(sessionID)
	if !ok {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: "unknown sessionId", ErrorCode: "InvalidParams"})
		return
	}

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: "invalid JSON-RPC request", ErrorCode: "InvalidParams"})
		return
	}

	clientID := clientIdentity(c)
	resp := f.dispatcher.dispatch(c.Request.Context(), session.groupID, clientID, req)

	select {
	case session.events <- resp:
	default:
	}
	c.Status(http.StatusAccepted)
}
