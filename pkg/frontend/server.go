package frontend

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/mcphub/pkg/hub"
)

// Frontend is the protocol front-end: gin routes exposing streamable HTTP
// and SSE transports, scoped either to the full catalogue or to one group.
type Frontend struct {
	hub        *hub.Hub
	dispatcher *dispatcher
	sse        *sseRegistry
	engine     *gin.Engine
	httpServer *http.Server
}

// New builds a Frontend wired to an already-started Hub.
func New(h *hub.Hub) *Frontend {
	f := &Frontend{
		hub:        h,
		dispatcher: newDispatcher(h),
		sse:        newSSERegistry(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders())

	f.engine = engine
	f.registerRoutes()
	return f
}

func (f *Frontend) registerRoutes() {
	f.engine.GET("/health", f.handleHealth)

	f.engine.POST("/mcp", requireGroupAccess(f.hub), f.handleStreamable(""))
	f.engine.GET("/sse", requireGroupAccess(f.hub), f.handleSSE(""))
	f.engine.POST("/messages", requireGroupAccess(f.hub), f.handleSSEMessage)

	grouped := f.engine.Group("/:groupId")
	grouped.Use(requireGroupAccess(f.hub))
	grouped.POST("/mcp", f.handleStreamableGrouped())
	grouped.GET("/sse", f.handleSSEGrouped())
	grouped.POST("/messages", f.handleSSEMessage)
}

// handleStreamable handles POST /mcp for a fixed groupID (empty for the
// ungrouped, all-tools endpoint).
func (f *Frontend) handleStreamable(groupID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(nil, codeParseError, "invalid JSON-RPC request", nil))
			return
		}
		resp := f.dispatcher.dispatch(c.Request.Context(), groupID, clientIdentity(c), req)
		c.JSON(http.StatusOK, resp)
	}
}

// handleStreamableGrouped reads :groupId from the route at request time.
func (f *Frontend) handleStreamableGrouped() gin.HandlerFunc {
	return func(c *gin.Context) {
		f.handleStreamable(c.Param("groupId"))(c)
	}
}

func (f *Frontend) handleSSEGrouped() gin.HandlerFunc {
	return func(c *gin.Context) {
		f.handleSSE(c.Param("groupId"))(c)
	}
}

func (f *Frontend) handleHealth(c *gin.Context) {
	report := f.hub.LastHealthReport()
	status := http.StatusOK
	if !f.hub.IsReady() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ready":            f.hub.IsReady(),
		"score":            report.Score,
		"groupsAvailable":  report.GroupsAvailable,
		"groupsTotal":      report.GroupsTotal,
		"servers":          report.ServerStatuses,
	})
}

// Handler exposes the underlying gin engine for embedding in an
// http.Server.
func (f *Frontend) Handler() http.Handler {
	return f.engine
}

// Serve runs the front-end's own http.Server on addr until ctx is
// cancelled, then shuts it down gracefully.
func (f *Frontend) Serve(ctx context.Context, addr string) error {
	f.httpServer = &http.Server{Addr: addr, Handler: f.engine}

	errCh := make(chan error, 1)
	go func() {
		if err := f.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return f.httpServer.Shutdown(context.Background())
	}
}
