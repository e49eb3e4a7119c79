package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tbdash/internal"
	"tbdash/internal/errors"
	"tbdash/ui/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// FigureRequest is a selection sent by the browser. Seq increases with
// every dropdown change.
type FigureRequest struct {
	Feature string `json:"feature"`
	Seq     int64  `json:"seq"`
}

// FigureResponse answers one FigureRequest
type FigureResponse struct {
	Seq     int64           `json:"seq"`
	Feature string          `json:"feature"`
	Figure  json.RawMessage `json:"figure,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// FigureSocket serves /ws/figure. Each connection computes selections as
// they arrive and drops results overtaken by a newer selection.
type FigureSocket struct {
	dashboard *services.DashboardService
	logger    *internal.Logger
}

// NewFigureSocket creates the websocket handler
func NewFigureSocket(dashboard *services.DashboardService) *FigureSocket {
	return &FigureSocket{
		dashboard: dashboard,
		logger:    internal.DefaultLogger.With("FigureSocket"),
	}
}

type figureClient struct {
	conn   *websocket.Conn
	send   chan FigureResponse
	latest atomic.Int64
	socket *FigureSocket
}

// ServeHTTP upgrades the connection and starts its pumps
func (fs *FigureSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fs.logger.Warn("websocket upgrade failed: %v", err)
		return
	}

	client := &figureClient{
		conn:   conn,
		send:   make(chan FigureResponse, sendBuffer),
		socket: fs,
	}
	ctx, cancel := context.WithCancel(context.Background())
	go client.writePump()
	go client.readPump(ctx, cancel)
}

// readPump reads selections until the peer goes away. Each selection is
// computed on its own goroutine so a newer one is never queued behind it.
func (c *figureClient) readPump(ctx context.Context, cancel context.CancelFunc) {
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		close(c.send)
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req FigureRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.socket.logger.Warn("websocket read error: %v", err)
			}
			return
		}
		c.latest.Store(req.Seq)
		c.socket.logger.Trace("selection %s seq=%d", req.Feature, req.Seq)

		wg.Add(1)
		go func(req FigureRequest) {
			defer wg.Done()
			resp := c.answer(ctx, req)
			if req.Seq < c.latest.Load() {
				return
			}
			select {
			case c.send <- resp:
			case <-ctx.Done():
			}
		}(req)
	}
}

func (c *figureClient) answer(ctx context.Context, req FigureRequest) FigureResponse {
	resp := FigureResponse{Seq: req.Seq, Feature: req.Feature}
	fig, err := c.socket.dashboard.Figure(ctx, req.Feature)
	if err != nil {
		resp.Error = err.Error()
		resp.Code = errors.GetCode(err)
		return resp
	}
	resp.Figure = fig
	return resp
}

// writePump delivers responses and keeps the connection alive
func (c *figureClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case resp, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if resp.Seq < c.latest.Load() {
				continue
			}
			if err := c.conn.WriteJSON(resp); err != nil {
				c.socket.logger.Debug("websocket write failed: %v", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
