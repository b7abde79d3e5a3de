package pvpgrid

import "context"

// ParticipantResolver looks up display data for an identity.
// Implementations return ErrParticipantNotFound for unknown identities.
type ParticipantResolver interface {
	ResolveParticipant(ctx context.Context, identity string) (*Profile, error)
}

// Persister stores a finished game and settles balances in the same unit of work.
// It must tolerate being called after the live session is gone and be idempotent per SessionID.
type Persister interface {
	PersistFinishedGame(ctx context.Context, g *FinishedGame) error
}

// Notifier delivers an event to one connection. Implementations must not block.
type Notifier interface {
	Notify(connID string, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, Event) {}
