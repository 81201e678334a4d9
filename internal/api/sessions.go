package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"

	"stocksage/internal/chat"
)

type sessionView struct {
	ID string `json:"id"`
	chat.Snapshot
}

func registerSessionRoutes(h *server.Hertz, d Deps) {
	h.POST("/api/v1/sessions", func(_ context.Context, c *app.RequestContext) {
		if d.Sessions == nil {
			writeError(c, http.StatusInternalServerError, "sessions not configured")
			return
		}
		var req struct {
			Stock string `json:"stock"`
		}
		if len(c.Request.Body()) > 0 {
			if err := c.BindJSON(&req); err != nil {
				writeError(c, http.StatusBadRequest, "invalid json body")
				return
			}
		}
		id, s := d.Sessions.Create(req.Stock)
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"session": sessionView{ID: id, Snapshot: s.Snapshot()},
		})
	})

	h.GET("/api/v1/sessions/:id", func(_ context.Context, c *app.RequestContext) {
		id, s, ok := lookupSession(c, d)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"session": sessionView{ID: id, Snapshot: s.Snapshot()},
		})
	})

	h.PUT("/api/v1/sessions/:id/subject", func(_ context.Context, c *app.RequestContext) {
		id, s, ok := lookupSession(c, d)
		if !ok {
			return
		}
		var req struct {
			Stock string `json:"stock"`
		}
		if err := c.BindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json body")
			return
		}
		s.SelectSubject(req.Stock)
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"session": sessionView{ID: id, Snapshot: s.Snapshot()},
		})
	})

	h.POST("/api/v1/sessions/:id/messages", func(ctx context.Context, c *app.RequestContext) {
		id, s, ok := lookupSession(c, d)
		if !ok {
			return
		}
		var req struct {
			Message string `json:"message"`
		}
		if err := c.BindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json body")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(c, http.StatusBadRequest, "message is required")
			return
		}
		if s.Subject() == "" {
			writeError(c, http.StatusConflict, "no stock selected")
			return
		}

		turn, accepted := s.Submit(ctx, req.Message)
		if !accepted {
			// Either a request was already in flight or the subject changed
			// while this one was.
			writeError(c, http.StatusConflict, "session busy or subject changed")
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"turn":    turn,
			"session": sessionView{ID: id, Snapshot: s.Snapshot()},
		})
	})

	h.DELETE("/api/v1/sessions/:id", func(_ context.Context, c *app.RequestContext) {
		if d.Sessions == nil {
			writeError(c, http.StatusInternalServerError, "sessions not configured")
			return
		}
		if !d.Sessions.Delete(c.Param("id")) {
			writeError(c, http.StatusNotFound, "session not found")
			return
		}
		c.JSON(http.StatusOK, map[string]any{"ok": true})
	})
}

func lookupSession(c *app.RequestContext, d Deps) (string, *chat.Session, bool) {
	if d.Sessions == nil {
		writeError(c, http.StatusInternalServerError, "sessions not configured")
		return "", nil, false
	}
	id := c.Param("id")
	s, ok := d.Sessions.Get(id)
	if !ok {
		writeError(c, http.StatusNotFound, "session not found")
		return "", nil, false
	}
	return id, s, true
}
