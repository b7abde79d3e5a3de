package gridclient

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/gridclash/internal/pvpgrid"
	"github.com/park285/gridclash/internal/wsserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()
	store := pvpgrid.NewMemoryStore(200)
	store.PutUser(pvpgrid.User{ID: "p1", Username: "ann", Coins: 500})
	store.PutUser(pvpgrid.User{ID: "p2", Username: "ben", Coins: 500})
	m, err := pvpgrid.NewManager(store, store, nil, pvpgrid.Options{GridSize: 2, AnnounceDelay: 10 * time.Millisecond})
	require.NoError(t, err)
	srv := wsserver.New(m, wsserver.Options{})
	m.SetNotifier(srv)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func connect(t *testing.T, url, id string) (*Client, <-chan Frame) {
	t.Helper()
	c, err := Dial(context.Background(), url, id)
	require.NoError(t, err)
	frames := make(chan Frame, 32)
	c.OnFrame(func(f Frame) { frames <- f })
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c, frames
}

func next(t *testing.T, frames <-chan Frame, typ pvpgrid.EventType) Frame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f := <-frames:
			if f.Type == typ {
				return f
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestPlayDrawToCompletion(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	a, af := connect(t, url, "p1")
	b, bf := connect(t, url, "p2")

	require.NoError(t, a.FindMatch(ctx))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.FindMatch(ctx))

	var started pvpgrid.GameStarted
	require.NoError(t, next(t, af, pvpgrid.EventGameStarted).Decode(&started))
	next(t, bf, pvpgrid.EventGameStarted)
	require.Equal(t, "p1", started.Turn)

	moves := []struct {
		c        *Client
		row, col int
	}{{a, 0, 0}, {b, 0, 1}, {a, 1, 1}, {b, 1, 0}}
	for _, mv := range moves {
		require.NoError(t, mv.c.Move(ctx, started.GameID, mv.row, mv.col))
		next(t, af, pvpgrid.EventMoveApplied)
	}

	var ended pvpgrid.GameEnded
	require.NoError(t, next(t, bf, pvpgrid.EventGameEnded).Decode(&ended))
	assert.Equal(t, pvpgrid.ReasonComplete, ended.Reason)
	assert.Nil(t, ended.Winner)
	require.NotNil(t, ended.Player1Area)
	assert.Equal(t, 1, *ended.Player1Area)
	assert.NoError(t, a.Err())
}

func TestDialRequiresIdentity(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws", " ")
	assert.Error(t, err)
}
