package pvpgrid

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// User is a stored account as the in-memory store keeps it.
type User struct {
	ID        string
	Username  string
	AvatarURL string
	Coins     int64
}

// MemoryStore is a development store used when no DB is configured. It
// resolves participants and persists finished games with the same
// settlement rules as the postgres Repository.
type MemoryStore struct {
	mu    sync.RWMutex
	stake int64
	users map[string]*User
	games map[string]*FinishedGame // session id -> record
	order []string
}

func NewMemoryStore(stake int64) *MemoryStore {
	if stake < 0 {
		stake = 0
	}
	return &MemoryStore{
		stake: stake,
		users: make(map[string]*User),
		games: make(map[string]*FinishedGame),
	}
}

// PutUser inserts or replaces a user.
func (m *MemoryStore) PutUser(u User) {
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return
	}
	m.mu.Lock()
	cp := u
	m.users[u.ID] = &cp
	m.mu.Unlock()
}

// User returns a copy of the stored user.
func (m *MemoryStore) User(id string) (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

func (m *MemoryStore) ResolveParticipant(ctx context.Context, identity string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[identity]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	return &Profile{DisplayName: u.Username, AvatarURL: u.AvatarURL, Balance: u.Coins}, nil
}

// PersistFinishedGame records g once per session id and moves the stake from
// loser to winner. The loser never drops below zero; draws move nothing.
func (m *MemoryStore) PersistFinishedGame(ctx context.Context, g *FinishedGame) error {
	if g == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.games[g.SessionID]; dup {
		return nil
	}
	cp := *g
	cp.FinalGrid = g.FinalGrid.Clone()
	m.games[g.SessionID] = &cp
	m.order = append(m.order, g.SessionID)

	winner, loser := g.Outcome.Winner, g.Loser()
	if winner == "" || loser == "" || winner == loser {
		return nil
	}
	if w, ok := m.users[winner]; ok {
		w.Coins += m.stake
	}
	if l, ok := m.users[loser]; ok {
		l.Coins -= m.stake
		if l.Coins < 0 {
			l.Coins = 0
		}
	}
	return nil
}

// Games lists stored records, latest first.
func (m *MemoryStore) Games() []FinishedGame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FinishedGame, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.games[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	return out
}
