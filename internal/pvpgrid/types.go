package pvpgrid

import (
	"errors"
	"time"

	"github.com/park285/gridclash/internal/grid"
)

// Status is the lifecycle state of a live session.
type Status string

const (
	StatusAnnounced Status = "ANNOUNCED"
	StatusPlaying   Status = "PLAYING"
	StatusEnded     Status = "ENDED"
)

// EndReason tags a game_end notice.
type EndReason string

const (
	ReasonComplete   EndReason = "complete"
	ReasonForfeit    EndReason = "forfeit"
	ReasonDisconnect EndReason = "disconnect"
)

var (
	ErrInvalidArgs         = errors.New("invalid arguments")
	ErrDebounced           = errors.New("matchmaking request debounced")
	ErrAlreadyQueued       = errors.New("already waiting for a match")
	ErrAlreadyInSession    = errors.New("already in a game")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSessionGone         = errors.New("session not found or already ended")
	ErrSessionNotPlaying   = errors.New("session is not in play")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrOutOfBounds         = errors.New("cell out of bounds")
	ErrCellOccupied        = errors.New("cell already occupied")
	ErrNotParticipant      = errors.New("not a participant of this session")
)

// Profile is the display data cached on a handle at enqueue time.
type Profile struct {
	DisplayName string `json:"username"`
	AvatarURL   string `json:"profile_picture_url"`
	Balance     int64  `json:"coins"`
}

// Handle binds one live connection to one persistent identity.
type Handle struct {
	ConnID   string
	Identity string
	Profile  Profile
}

// Slot is one of the two fixed seats of a session.
type Slot struct {
	Handle
	Color grid.Color
}

// Move is an applied placement.
type Move struct {
	Row   int        `json:"row"`
	Col   int        `json:"col"`
	Color grid.Color `json:"color"`
}

// Outcome is produced once per session. Winner is empty for a draw.
type Outcome struct {
	Result grid.Result
	Winner string
}

// FinishedGame is what the persistence collaborator receives.
type FinishedGame struct {
	SessionID  string
	SlotA      string
	SlotB      string
	SlotAColor grid.Color
	SlotBColor grid.Color
	FinalGrid  grid.Grid
	Outcome    Outcome
	Reason     EndReason
	CreatedAt  time.Time
	EndedAt    time.Time
}

// Loser returns the losing identity, or "" for a draw.
func (f *FinishedGame) Loser() string {
	switch f.Outcome.Result {
	case grid.FirstWins:
		return f.SlotB
	case grid.SecondWins:
		return f.SlotA
	default:
		return ""
	}
}

// SessionView is a detached copy of a session for callers outside the manager.
type SessionView struct {
	ID        string
	Slots     [2]Slot
	Grid      grid.Grid
	Turn      string
	Status    Status
	LastMove  *Move
	CreatedAt time.Time
	StartedAt time.Time
}
