package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zulandar/dealscout/internal/scout"
)

const maxHuntWSRequestBytes = 4096

type huntRequest struct {
	Action      string   `json:"action,omitempty"`
	SearchQuery string   `json:"search_query"`
	MaxBudget   *float64 `json:"max_budget"`
	TopN        int      `json:"top_n"`
}

func (r huntRequest) opts() (scout.HuntOpts, error) {
	if strings.TrimSpace(r.SearchQuery) == "" {
		return scout.HuntOpts{}, errors.New("search_query required")
	}
	if r.MaxBudget != nil && !(*r.MaxBudget > 0) {
		return scout.HuntOpts{}, errors.New("max_budget must be positive")
	}
	return scout.HuntOpts{Query: r.SearchQuery, MaxBudget: r.MaxBudget, TopN: r.TopN}, nil
}

// streamHunt runs a hunt and streams its progress as server-sent events.
func (h *handlers) streamHunt(c *gin.Context) {
	var req huntRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	opts, err := req.opts()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	startSSE(c)
	// Hunt serializes emit calls, so writes never interleave.
	_, err = h.svc.Hunt(c.Request.Context(), opts, func(e scout.Event) {
		sendSSE(c, e.Type, e.Data)
	})
	if err != nil && !errors.Is(err, scout.ErrNoListings) {
		h.logger.Printf("api: hunt %q: %v", opts.Query, err)
	}
}

type wsHuntMessage struct {
	Type  string         `json:"type"`
	Data  map[string]any `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

// huntWebSocket accepts one {"action":"hunt.start",...} request and streams
// hunt events back as JSON messages until the hunt finishes.
func (h *handlers) huntWebSocket(c *gin.Context) {
	upgrader := websocket.Upgrader{CheckOrigin: websocketOriginAllowed(h.origins)}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Printf("api: hunt ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxHuntWSRequestBytes)

	var req huntRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(wsHuntMessage{Type: "error", Error: "invalid request: " + err.Error()})
		return
	}
	if req.Action != "hunt.start" {
		_ = conn.WriteJSON(wsHuntMessage{Type: "error", Error: "unsupported action"})
		return
	}
	opts, err := req.opts()
	if err != nil {
		_ = conn.WriteJSON(wsHuntMessage{Type: "error", Error: err.Error()})
		return
	}

	_, err = h.svc.Hunt(c.Request.Context(), opts, func(e scout.Event) {
		_ = conn.WriteJSON(wsHuntMessage{Type: e.Type, Data: e.Data})
	})
	if err != nil && !errors.Is(err, scout.ErrNoListings) {
		h.logger.Printf("api: hunt ws %q: %v", opts.Query, err)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "hunt complete"))
}
