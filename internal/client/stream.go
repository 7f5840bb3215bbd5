package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/tunnelfight/internal/server"
)

// ProgressFunc receives progress frames while a stream runs.
type ProgressFunc func(done, total int)

// ErrNoResult means the server closed the stream without a result or error frame.
var ErrNoResult = errors.New("stream closed without a result")

type frame struct {
	Type  string `json:"type"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
	Error string `json:"error"`
	*server.SimulateResponse
}

// Stream runs a simulation over the /ws endpoint, calling onProgress for
// each progress frame. Cancelling ctx closes the connection, which stops the
// simulation on the server.
func (c *Client) Stream(ctx context.Context, req server.SimulateRequest, onProgress ProgressFunc) (*server.SimulateResponse, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, readAPIError(resp)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(req); err != nil {
		return nil, c.streamErr(ctx, err)
	}

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil, ErrNoResult
			}
			return nil, c.streamErr(ctx, err)
		}

		switch f.Type {
		case "progress":
			if onProgress != nil {
				onProgress(f.Done, f.Total)
			}
		case "result":
			if f.SimulateResponse == nil {
				return nil, ErrNoResult
			}
			return f.SimulateResponse, nil
		case "error":
			return nil, &APIError{Message: f.Error}
		}
	}
}

func (c *Client) streamErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// wsURL maps the base URL onto the ws/wss scheme.
func (c *Client) wsURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	}
	return c.baseURL + "/ws"
}
