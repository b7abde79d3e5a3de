package pvpgrid

import (
	"errors"
	"testing"
	"time"

	"github.com/park285/gridclash/internal/grid"
)

func playingSession(t *testing.T, a, b Handle, size int) *Session {
	t.Helper()
	s, err := newSession("g1", Slot{Handle: a, Color: grid.Red}, Slot{Handle: b, Color: grid.Blue}, size, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	s.status = StatusPlaying
	return s
}

func TestApplyMoveValidationOrder(t *testing.T) {
	s, err := newSession("g1", Slot{Handle: h("ca", "a"), Color: grid.Red}, Slot{Handle: h("cb", "b"), Color: grid.Blue}, 3, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	if _, err := s.applyMove("a", 0, 0); !errors.Is(err, ErrSessionNotPlaying) {
		t.Fatalf("announced session must reject moves, got %v", err)
	}
	s.status = StatusPlaying

	if _, err := s.applyMove("b", 9, 9); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("turn is checked before bounds, got %v", err)
	}
	if _, err := s.applyMove("a", 3, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
	if _, err := s.applyMove("a", -1, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected out of bounds for negative row, got %v", err)
	}
	mv, err := s.applyMove("a", 1, 1)
	if err != nil || mv.Color != grid.Red {
		t.Fatalf("expected red move, got %+v %v", mv, err)
	}
	if _, err := s.applyMove("b", 1, 1); !errors.Is(err, ErrCellOccupied) {
		t.Fatalf("expected occupied, got %v", err)
	}
	if s.grid[1][1] != grid.Red {
		t.Fatalf("rejected move overwrote the cell")
	}
	if s.turnIdentity() != "b" {
		t.Fatalf("rejected move must not flip the turn")
	}
}

func TestApplyMoveSelfPlayAlternatesColors(t *testing.T) {
	s := playingSession(t, h("c1", "solo"), h("c2", "solo"), 3)
	first, err := s.applyMove("solo", 0, 0)
	if err != nil {
		t.Fatalf("first move: %v", err)
	}
	second, err := s.applyMove("solo", 0, 1)
	if err != nil {
		t.Fatalf("second move: %v", err)
	}
	if first.Color != grid.Red || second.Color != grid.Blue {
		t.Fatalf("self-play colors did not alternate: %s %s", first.Color, second.Color)
	}
}

func TestForfeitingSlot(t *testing.T) {
	s := playingSession(t, h("ca", "a"), h("cb", "b"), 3)
	if got := s.forfeitingSlot("whatever", "b"); got != 1 {
		t.Fatalf("expected slot 1, got %d", got)
	}
	if got := s.forfeitingSlot("ca", "z"); got != -1 {
		t.Fatalf("outsider must not resolve, got %d", got)
	}

	self := playingSession(t, h("c1", "solo"), h("c2", "solo"), 3)
	if got := self.forfeitingSlot("c2", "solo"); got != 1 {
		t.Fatalf("self-play must use the connection, got %d", got)
	}
	if got := self.forfeitingSlot("c9", "solo"); got != 0 {
		t.Fatalf("unknown connection falls back to slot 0, got %d", got)
	}
	if got := self.forfeitingSlot("c1", "other"); got != -1 {
		t.Fatalf("identity mismatch must not resolve, got %d", got)
	}
}

func TestViewIsDetached(t *testing.T) {
	s := playingSession(t, h("ca", "a"), h("cb", "b"), 2)
	if _, err := s.applyMove("a", 0, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	v := s.View()
	v.Grid[0][0] = grid.Blue
	v.LastMove.Row = 1
	if s.grid[0][0] != grid.Red || s.lastMove.Row != 0 {
		t.Fatalf("view shares state with the session")
	}
	if v.Turn != "b" || v.Status != StatusPlaying {
		t.Fatalf("unexpected view: %+v", v)
	}
}
