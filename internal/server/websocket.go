package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/tunnelfight/internal/logger"
)

// Frame types sent to WebSocket clients.
const (
	frameProgress = "progress"
	frameResult   = "result"
	frameError    = "error"
)

const writeWait = 10 * time.Second

// frame is one server-to-client WebSocket message. Result frames carry the
// SimulateResponse fields inline.
type frame struct {
	Type  string `json:"type"`
	Done  int    `json:"done,omitempty"`
	Total int    `json:"total,omitempty"`
	Error string `json:"error,omitempty"`
	*SimulateResponse
}

// stream wraps the WebSocket connection of one simulation session.
type stream struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func (c *stream) send(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

// readRequest reads the next non-blank message into req. Malformed JSON is
// reported as a *requestError.
func (c *stream) readRequest(req *SimulateRequest) error {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(msg)) == 0 {
			continue
		}
		if err := json.Unmarshal(msg, req); err != nil {
			return badRequest("invalid JSON: %v", err)
		}
		return nil
	}
}

// close sends a close frame and drops the connection.
func (c *stream) close(code int, text string) {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeWait))
	c.mu.Unlock()
	c.conn.Close()
}

// handleWebSocketUpgrade upgrades GET /ws after the abuse, connection and
// origin checks pass.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if locked, wait := s.abuse.IsLocked(ip); locked {
		rejectLocked(w, wait)
		return
	}

	if !s.connLimiter.TryAcquire(ip) {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", ip)
		writeError(w, http.StatusTooManyRequests, "too many concurrent simulations")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WebSocket upgrade failed", "client_ip", ip, "error", err)
		s.connLimiter.Release(ip)
		return
	}

	s.streams.Add(1)
	go s.serveStream(conn, ip)
}

// serveStream runs one simulation for the request the client sends first,
// streaming progress frames and finishing with a result or error frame.
func (s *Server) serveStream(conn *websocket.Conn, ip string) {
	defer s.streams.Done()
	defer s.connLimiter.Release(ip)
	defer conn.Close()

	c := &stream{conn: conn}
	stop := context.AfterFunc(s.baseCtx, func() {
		c.close(websocket.CloseGoingAway, "server shutting down")
	})
	defer stop()

	if limit := s.cfg.WebSocket.MaxMessageSize; limit > 0 {
		conn.SetReadLimit(limit)
	}
	if d := s.cfg.HTTP.ReadTimeout; d > 0 {
		conn.SetReadDeadline(time.Now().Add(d))
	}

	var req SimulateRequest
	if err := c.readRequest(&req); err != nil {
		var re *requestError
		if errors.As(err, &re) {
			s.abuse.RecordFailure(ip)
			c.send(frame{Type: frameError, Error: re.msg})
			c.close(websocket.ClosePolicyViolation, "bad request")
			return
		}
		logger.Debug("Stream closed before request", "client_ip", ip, "error", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	// Nothing more is expected from the client. A read error means it left.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	resp, err := s.simulate(ctx, &req, func(done, total int) {
		if err := c.send(frame{Type: frameProgress, Done: done, Total: total}); err != nil {
			cancel()
		}
	})
	if err != nil {
		status, msg := errorStatus(err)
		switch {
		case status < http.StatusInternalServerError:
			if locked, wait := s.abuse.RecordFailure(ip); locked {
				logger.Warning("Client locked out after repeated bad requests",
					"client_ip", ip,
					"lockout", wait)
			}
		case status == http.StatusInternalServerError:
			logger.Error("Simulation failed", "client_ip", ip, "error", err)
		}
		c.send(frame{Type: frameError, Error: msg})
		c.close(websocket.CloseNormalClosure, "")
		return
	}

	s.abuse.RecordSuccess(ip)
	if err := c.send(frame{Type: frameResult, SimulateResponse: resp}); err != nil {
		logger.Debug("Failed to send result", "client_ip", ip, "error", err)
	}
	c.close(websocket.CloseNormalClosure, "")
}
