package pvpgrid

import (
	"sync"
	"time"

	"github.com/park285/gridclash/internal/grid"
)

// Session is the authoritative state of one game. ID and Slots are fixed at
// creation; everything else is guarded by mu.
type Session struct {
	ID    string
	Slots [2]Slot

	mu        sync.Mutex
	grid      grid.Grid
	turn      int // slot index holding the move
	status    Status
	createdAt time.Time
	startedAt time.Time
	lastMove  *Move
	stopStart func() bool
}

func newSession(id string, first, second Slot, size int, now time.Time) (*Session, error) {
	g, err := grid.New(size, size)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		Slots:     [2]Slot{first, second},
		grid:      g,
		turn:      0,
		status:    StatusAnnounced,
		createdAt: now,
	}, nil
}

// SelfPlay reports whether both slots carry the same identity.
func (s *Session) SelfPlay() bool { return s.Slots[0].Identity == s.Slots[1].Identity }

func (s *Session) turnIdentity() string { return s.Slots[s.turn].Identity }

func (s *Session) slotByConn(connID string) int {
	for i, sl := range s.Slots {
		if sl.ConnID == connID {
			return i
		}
	}
	return -1
}

// forfeitingSlot resolves which seat a forfeit from (connID, identity) gives up.
// Under self-play the identity matches both seats, so the connection decides.
func (s *Session) forfeitingSlot(connID, identity string) int {
	if s.SelfPlay() {
		if s.Slots[0].Identity != identity {
			return -1
		}
		if i := s.slotByConn(connID); i >= 0 {
			return i
		}
		return 0
	}
	for i, sl := range s.Slots {
		if sl.Identity == identity {
			return i
		}
	}
	return -1
}

// applyMove validates and places one move. Caller holds mu.
func (s *Session) applyMove(identity string, row, col int) (Move, error) {
	if s.status != StatusPlaying {
		return Move{}, ErrSessionNotPlaying
	}
	if identity != s.turnIdentity() {
		return Move{}, ErrNotYourTurn
	}
	if !s.grid.InBounds(row, col) {
		return Move{}, ErrOutOfBounds
	}
	if s.grid[row][col] != grid.Empty {
		return Move{}, ErrCellOccupied
	}

	color := s.Slots[s.turn].Color
	s.grid[row][col] = color
	s.turn = 1 - s.turn
	mv := Move{Row: row, Col: col, Color: color}
	s.lastMove = &mv
	return mv, nil
}

func (s *Session) view() SessionView {
	v := SessionView{
		ID:        s.ID,
		Slots:     s.Slots,
		Grid:      s.grid.Clone(),
		Turn:      s.turnIdentity(),
		Status:    s.status,
		CreatedAt: s.createdAt,
		StartedAt: s.startedAt,
	}
	if s.lastMove != nil {
		mv := *s.lastMove
		v.LastMove = &mv
	}
	return v
}

// View returns a detached copy of the session state.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}
