package pvpgrid

import "github.com/park285/gridclash/internal/grid"

// EventType names an outbound notification.
type EventType string

const (
	EventMatchFound       EventType = "match_found"
	EventGameStarted      EventType = "start_game"
	EventMoveApplied      EventType = "move_made"
	EventGameEnded        EventType = "game_end"
	EventMatchmakingError EventType = "matchmaking_error"
	EventMoveRejected     EventType = "move_rejected"
)

// Event is the transport-neutral envelope handed to a Notifier.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

type PublicProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profile_picture_url"`
	Coins             int64  `json:"coins"`
}

type MatchFound struct {
	Opponent PublicProfile `json:"opponent"`
	GameID   string        `json:"gameId"`
}

type PlayerInfo struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	ProfilePictureURL string     `json:"profile_picture_url"`
	Color             grid.Color `json:"color"`
}

type GameStarted struct {
	GameID  string        `json:"gameId"`
	Players [2]PlayerInfo `json:"players"`
	Grid    [][]*string   `json:"grid"`
	Turn    string        `json:"turn"`
}

type MoveApplied struct {
	GameID   string      `json:"gameId"`
	Grid     [][]*string `json:"grid"`
	Turn     string      `json:"turn"`
	LastMove Move        `json:"lastMove"`
}

type GameEnded struct {
	GameID      string    `json:"gameId"`
	Winner      *string   `json:"winner"`
	Reason      EndReason `json:"reason"`
	Message     string    `json:"message"`
	Player1Area *int      `json:"player1Area,omitempty"`
	Player2Area *int      `json:"player2Area,omitempty"`
}

type MatchmakingError struct {
	Message string `json:"message"`
}

type MoveRejected struct {
	GameID  string `json:"gameId"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func publicProfile(h Handle) PublicProfile {
	return PublicProfile{
		ID:                h.Identity,
		Username:          h.Profile.DisplayName,
		ProfilePictureURL: h.Profile.AvatarURL,
		Coins:             h.Profile.Balance,
	}
}

func playerInfo(s Slot) PlayerInfo {
	return PlayerInfo{
		ID:                s.Identity,
		Username:          s.Profile.DisplayName,
		ProfilePictureURL: s.Profile.AvatarURL,
		Color:             s.Color,
	}
}
