// Package gridclient is a Go client for the gridclash WebSocket endpoint.
package gridclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/park285/gridclash/internal/pvpgrid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Frame is one server event with its payload left raw.
type Frame struct {
	Type pvpgrid.EventType `json:"type"`
	Data json.RawMessage   `json:"data"`
}

// Decode unmarshals the payload into out.
func (f Frame) Decode(out any) error { return json.Unmarshal(f.Data, out) }

type FrameCallback func(f Frame)

type Client struct {
	conn *websocket.Conn

	cbs []FrameCallback
	cbM sync.RWMutex

	pingInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	errM    sync.Mutex
	lastErr error
}

// Dial connects to wsURL as identity. The identity travels in the X-User-Id header.
func Dial(ctx context.Context, wsURL, identity string) (*Client, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, errors.New("identity is required")
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	hdr := http.Header{}
	hdr.Set("X-User-Id", identity)
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      hdr,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{conn: conn, pingInterval: 30 * time.Second, stopCh: make(chan struct{})}
	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	c.wg.Add(2)
	go c.listen()
	go c.pingLoop()
	return c, nil
}

// OnFrame registers cb for every incoming frame. Callbacks run on the read goroutine.
func (c *Client) OnFrame(cb FrameCallback) {
	c.cbM.Lock()
	c.cbs = append(c.cbs, cb)
	c.cbM.Unlock()
}

func (c *Client) FindMatch(ctx context.Context) error { return c.send(ctx, "find_match", nil) }

func (c *Client) CancelMatch(ctx context.Context) error {
	return c.send(ctx, "cancel_matchmaking", nil)
}

func (c *Client) Move(ctx context.Context, gameID string, row, col int) error {
	return c.send(ctx, "make_move", map[string]any{"gameId": gameID, "row": row, "col": col})
}

func (c *Client) Forfeit(ctx context.Context, gameID string) error {
	return c.send(ctx, "forfeit_game", map[string]string{"gameId": gameID})
}

func (c *Client) send(ctx context.Context, typ string, data any) error {
	return wsjson.Write(ctx, c.conn, map[string]any{"type": typ, "data": data})
}

// Err returns the error that ended the read loop, if any.
func (c *Client) Err() error {
	c.errM.Lock()
	defer c.errM.Unlock()
	return c.lastErr
}

func (c *Client) listen() {
	defer c.wg.Done()
	for {
		var f Frame
		if err := wsjson.Read(c.rootCtx, c.conn, &f); err != nil {
			if !c.isStopping() {
				c.errM.Lock()
				c.lastErr = err
				c.errM.Unlock()
			}
			return
		}
		c.cbM.RLock()
		cbs := append([]FrameCallback(nil), c.cbs...)
		c.cbM.RUnlock()
		for _, cb := range cbs {
			cb(f)
		}
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			_ = c.conn.Ping(ctx)
			cancel()
		}
	}
}

func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	err := c.conn.Close(websocket.StatusNormalClosure, "close")
	c.rootCancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return err
	}
}

func (c *Client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}
