package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"

	"stocksage/internal/assistant"
	"stocksage/internal/chat"
	"stocksage/internal/market"
	"stocksage/internal/markup"
	"stocksage/internal/store"
)

// Deps are the services behind the routes. Any of them may be nil; the
// routes that need a missing one answer 500.
type Deps struct {
	Store     *store.Store
	Market    *market.Service
	Assistant *assistant.Agent
	Sessions  *chat.Registry
}

func RegisterRoutes(h *server.Hertz, d Deps) {
	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	h.POST("/api/chat", func(ctx context.Context, c *app.RequestContext) {
		if d.Assistant == nil {
			writeError(c, http.StatusInternalServerError, "assistant not configured")
			return
		}
		var req chat.Request
		if err := c.BindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json body")
			return
		}
		if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.Subject) == "" {
			writeError(c, http.StatusBadRequest, "message and stock are required")
			return
		}
		text, err := d.Assistant.Reply(ctx, req)
		if err != nil {
			log.Printf("chat reply error: stock=%s err=%v", req.Subject, err)
			writeError(c, http.StatusBadGateway, err.Error())
			return
		}
		c.JSON(http.StatusOK, chat.Response{Message: text})
	})

	registerWatchlistRoutes(h, d)
	registerMarketRoutes(h, d)
	registerSessionRoutes(h, d)

	h.POST("/api/v1/render", func(_ context.Context, c *app.RequestContext) {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.BindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json body")
			return
		}
		blocks := markup.Parse(req.Text)
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"blocks": blocks,
			"plain":  blocks.PlainText(),
		})
	})

	h.POST("/api/v1/assistant/ping", func(ctx context.Context, c *app.RequestContext) {
		if d.Assistant == nil {
			c.JSON(http.StatusOK, map[string]any{
				"ok":     true,
				"mode":   "fallback",
				"reason": "assistant not configured",
			})
			return
		}
		resp, err := d.Assistant.Ping(ctx)
		if err != nil {
			log.Printf("assistant ping error: %v", err)
		}
		c.JSON(http.StatusOK, resp)
	})
}

func registerWatchlistRoutes(h *server.Hertz, d Deps) {
	h.GET("/api/v1/watchlist", func(_ context.Context, c *app.RequestContext) {
		if d.Store == nil {
			writeError(c, http.StatusInternalServerError, "store not configured")
			return
		}
		items, err := d.Store.ListWatchlist()
		if err != nil {
			writeError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})

	h.POST("/api/v1/watchlist", func(_ context.Context, c *app.RequestContext) {
		if d.Store == nil {
			writeError(c, http.StatusInternalServerError, "store not configured")
			return
		}
		var req store.WatchlistItem
		if err := c.BindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json body")
			return
		}
		if strings.TrimSpace(req.Symbol) == "" {
			writeError(c, http.StatusBadRequest, "symbol is required")
			return
		}
		if err := d.Store.UpsertWatchlistItem(req); err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"symbol": store.NormalizeSymbol(req.Symbol),
		})
	})

	h.DELETE("/api/v1/watchlist/:symbol", func(_ context.Context, c *app.RequestContext) {
		if d.Store == nil {
			writeError(c, http.StatusInternalServerError, "store not configured")
			return
		}
		if err := d.Store.DeleteWatchlistItem(c.Param("symbol")); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(c, http.StatusNotFound, "symbol not in watchlist")
				return
			}
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{"ok": true})
	})
}

func registerMarketRoutes(h *server.Hertz, d Deps) {
	h.GET("/api/v1/quotes", func(ctx context.Context, c *app.RequestContext) {
		if d.Market == nil {
			writeError(c, http.StatusInternalServerError, "market service not configured")
			return
		}
		symbols := parseSymbols(c.Query("symbols"), d.Store.WatchlistSymbols())
		if len(symbols) == 0 {
			writeError(c, http.StatusBadRequest, "symbols is empty")
			return
		}
		res, err := d.Market.Lookup(ctx, symbols)
		if err != nil {
			writeError(c, http.StatusBadGateway, fmt.Sprintf("quotes fetch failed: %v", err))
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":        true,
			"stale":     res.Stale,
			"source":    res.Source,
			"source_ts": res.SourceTS,
			"warnings":  res.Warnings,
			"quotes":    res.Quotes,
		})
	})

	h.GET("/api/v1/snapshots", func(_ context.Context, c *app.RequestContext) {
		if d.Store == nil {
			writeError(c, http.StatusInternalServerError, "store not configured")
			return
		}
		symbol := c.Query("symbol")
		if symbol == "" {
			writeError(c, http.StatusBadRequest, "symbol is required")
			return
		}
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		offset, err := parseOffset(c.Query("offset"))
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		items, err := d.Store.QueryMarketSnapshots(symbol, limit, offset)
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})
}

func writeError(c *app.RequestContext, status int, msg string) {
	c.JSON(status, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 200, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if v > 1000 {
		return 1000, nil
	}
	return v, nil
}

func parseOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid offset")
	}
	return v, nil
}

func parseSymbols(raw string, defaults []string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaults
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
