package pvpgrid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/gridclash/internal/grid"
	"github.com/park285/gridclash/internal/msgcat"
	"github.com/park285/gridclash/internal/obslog"
	"go.uber.org/zap"
)

const (
	DefaultGridSize       = 5
	DefaultAnnounceDelay  = 3 * time.Second
	DefaultDebounceWindow = 2 * time.Second
	defaultPersistTimeout = 10 * time.Second
)

// Options tune a Manager. Zero values and nil hooks take the defaults. A
// negative AnnounceDelay starts games immediately and a negative
// DebounceWindow turns debouncing off. Now, Schedule, Coin and NewID let
// tests drive time and randomness.
type Options struct {
	GridSize       int
	AnnounceDelay  time.Duration
	DebounceWindow time.Duration
	AllowSelfPlay  bool
	PersistTimeout time.Duration
	Messages       *msgcat.Catalog

	Now      func() time.Time
	Schedule func(d time.Duration, fn func()) (stop func() bool)
	Coin     func() bool
	NewID    func() string
}

func (o *Options) applyDefaults() {
	if o.GridSize <= 0 {
		o.GridSize = DefaultGridSize
	}
	switch {
	case o.AnnounceDelay == 0:
		o.AnnounceDelay = DefaultAnnounceDelay
	case o.AnnounceDelay < 0:
		o.AnnounceDelay = 0
	}
	switch {
	case o.DebounceWindow == 0:
		o.DebounceWindow = DefaultDebounceWindow
	case o.DebounceWindow < 0:
		o.DebounceWindow = 0
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = defaultPersistTimeout
	}
	if o.Messages == nil {
		o.Messages = msgcat.MustDefault()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Schedule == nil {
		o.Schedule = func(d time.Duration, fn func()) func() bool { return time.AfterFunc(d, fn).Stop }
	}
	if o.Coin == nil {
		o.Coin = cryptoCoin
	}
	if o.NewID == nil {
		o.NewID = func() string { return "game_" + uuid.NewString() }
	}
}

// Manager owns the waiting queue and the session registry. Every event is
// handled to completion under the lock of the session it touches.
type Manager struct {
	mu       sync.Mutex // serialises admission into queue and registry
	queue    *WaitingQueue
	registry *Registry

	resolver  ParticipantResolver
	persister Persister
	notifier  Notifier
	opts      Options
}

func NewManager(resolver ParticipantResolver, persister Persister, notifier Notifier, opts Options) (*Manager, error) {
	if resolver == nil || persister == nil {
		return nil, fmt.Errorf("pvpgrid: resolver and persister are required")
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	opts.applyDefaults()
	return &Manager{
		queue:     NewWaitingQueue(opts.DebounceWindow),
		registry:  NewRegistry(),
		resolver:  resolver,
		persister: persister,
		notifier:  notifier,
		opts:      opts,
	}, nil
}

// SetNotifier swaps the outbound sink. Intended for wiring before traffic starts.
func (m *Manager) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

func (m *Manager) notify(connID string, ev Event) {
	m.mu.Lock()
	n := m.notifier
	m.mu.Unlock()
	n.Notify(connID, ev)
}

func (m *Manager) broadcast(s *Session, ev Event) {
	m.notify(s.Slots[0].ConnID, ev)
	if s.Slots[1].ConnID != s.Slots[0].ConnID {
		m.notify(s.Slots[1].ConnID, ev)
	}
}

// RequestMatch admits connID/identity to the waiting queue and pairs the two
// oldest entries when possible. One identity may wait from two connections
// and be paired with itself only when Options.AllowSelfPlay is set; otherwise
// the second connection gets ErrAlreadyQueued.
func (m *Manager) RequestMatch(ctx context.Context, connID, identity string) error {
	connID, identity = strings.TrimSpace(connID), strings.TrimSpace(identity)
	if connID == "" || identity == "" {
		return ErrInvalidArgs
	}
	if !m.queue.Admit(identity, m.opts.Now()) {
		obslog.L().Debug("match_debounced", zap.String("user_id", identity), zap.String("conn_id", connID))
		return ErrDebounced
	}

	profile, err := m.resolver.ResolveParticipant(ctx, identity)
	if err != nil {
		key, fallback := "matchmaking.server_error", "Server error"
		if errors.Is(err, ErrParticipantNotFound) {
			key, fallback = "matchmaking.not_found", "User not found"
		}
		obslog.L().Warn("match_resolve_error", zap.String("user_id", identity), zap.Error(err))
		m.notify(connID, Event{Type: EventMatchmakingError, Data: MatchmakingError{Message: m.opts.Messages.Text(key, nil, fallback)}})
		return fmt.Errorf("resolve participant %s: %w", identity, err)
	}
	h := Handle{ConnID: connID, Identity: identity, Profile: *profile}

	m.mu.Lock()
	if m.queue.Contains(h, m.opts.AllowSelfPlay) {
		m.mu.Unlock()
		obslog.L().Info("match_already_queued", zap.String("user_id", identity), zap.String("conn_id", connID))
		return ErrAlreadyQueued
	}
	if m.registry.HasIdentity(identity) {
		m.mu.Unlock()
		obslog.L().Info("match_already_in_game", zap.String("user_id", identity))
		m.notify(connID, Event{Type: EventMatchmakingError, Data: MatchmakingError{Message: m.opts.Messages.Text("matchmaking.in_game", nil, "You are already in a game")}})
		return ErrAlreadyInSession
	}
	m.queue.Push(h, m.opts.Now())
	obslog.L().Info("match_enqueue", zap.String("user_id", identity), zap.String("conn_id", connID), zap.Int("waiting", m.queue.Len()))

	var s *Session
	if pair, ok := m.queue.PopPair(); ok {
		s, err = m.pair(pair)
		if err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Unlock()

	if s != nil {
		m.announce(s)
	}
	return nil
}

// pair builds and registers a session from two popped entries. Caller holds m.mu.
func (m *Manager) pair(pair [2]WaitingEntry) (*Session, error) {
	firstColor := grid.Red
	if !m.opts.Coin() {
		firstColor = grid.Blue
	}
	first := Slot{Handle: pair[0].Handle, Color: firstColor}
	second := Slot{Handle: pair[1].Handle, Color: firstColor.Opposite()}

	s, err := newSession(m.opts.NewID(), first, second, m.opts.GridSize, m.opts.Now())
	if err != nil {
		return nil, err
	}
	if err := m.registry.Add(s); err != nil {
		return nil, err
	}
	obslog.L().Info("match_paired",
		zap.String("game_id", s.ID),
		zap.String("first_id", first.Identity),
		zap.String("first_color", string(first.Color)),
		zap.String("second_id", second.Identity),
		zap.String("second_color", string(second.Color)),
	)
	return s, nil
}

// announce sends match_found to both seats and schedules the start.
func (m *Manager) announce(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusAnnounced {
		return
	}
	m.notify(s.Slots[0].ConnID, Event{Type: EventMatchFound, Data: MatchFound{Opponent: publicProfile(s.Slots[1].Handle), GameID: s.ID}})
	m.notify(s.Slots[1].ConnID, Event{Type: EventMatchFound, Data: MatchFound{Opponent: publicProfile(s.Slots[0].Handle), GameID: s.ID}})
	id := s.ID
	s.stopStart = m.opts.Schedule(m.opts.AnnounceDelay, func() { m.start(id) })
}

// start moves an announced session into play. A session that ended during
// the announce delay is left alone.
func (m *Manager) start(id string) {
	s := m.registry.Get(id)
	if s == nil {
		obslog.L().Debug("game_start_skipped", zap.String("game_id", id))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusAnnounced {
		return
	}
	s.status = StatusPlaying
	s.startedAt = m.opts.Now()
	s.stopStart = nil

	m.broadcast(s, Event{Type: EventGameStarted, Data: GameStarted{
		GameID:  s.ID,
		Players: [2]PlayerInfo{playerInfo(s.Slots[0]), playerInfo(s.Slots[1])},
		Grid:    s.grid.Strings(),
		Turn:    s.turnIdentity(),
	}})
	obslog.L().Info("game_start", zap.String("game_id", s.ID), zap.String("turn", s.turnIdentity()))
}

// CancelMatch withdraws the waiting entry of connID. Pairings already made are unaffected.
func (m *Manager) CancelMatch(connID string) bool {
	m.mu.Lock()
	removed := m.queue.RemoveConn(connID)
	m.mu.Unlock()
	if removed {
		obslog.L().Info("match_cancel", zap.String("conn_id", connID))
	}
	return removed
}

// SubmitMove applies a placement by identity. Rejections leave the session
// untouched and broadcast nothing; the returned error says why.
func (m *Manager) SubmitMove(ctx context.Context, identity, sessionID string, row, col int) error {
	s := m.registry.Get(sessionID)
	if s == nil {
		return ErrSessionGone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return ErrSessionGone
	}

	mv, err := s.applyMove(identity, row, col)
	if err != nil {
		obslog.L().Debug("move_rejected", zap.String("game_id", s.ID), zap.String("user_id", identity), zap.Int("row", row), zap.Int("col", col), zap.Error(err))
		return err
	}
	m.broadcast(s, Event{Type: EventMoveApplied, Data: MoveApplied{
		GameID:   s.ID,
		Grid:     s.grid.Strings(),
		Turn:     s.turnIdentity(),
		LastMove: mv,
	}})
	obslog.L().Info("move_applied",
		zap.String("game_id", s.ID),
		zap.String("user_id", identity),
		zap.Int("row", row),
		zap.Int("col", col),
		zap.String("color", string(mv.Color)),
		zap.String("turn", s.turnIdentity()),
	)

	if s.grid.Full() {
		m.complete(ctx, s)
	}
	return nil
}

// SubmitForfeit ends the session in favour of the other seat.
func (m *Manager) SubmitForfeit(ctx context.Context, connID, identity, sessionID string) error {
	s := m.registry.Get(sessionID)
	if s == nil {
		return ErrSessionGone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return ErrSessionGone
	}
	loser := s.forfeitingSlot(connID, identity)
	if loser < 0 {
		return ErrNotParticipant
	}
	name := displayName(s.Slots[loser], loser)
	msg := m.opts.Messages.Text("game.end.forfeit", map[string]string{"Name": name}, name+" forfeited the game")
	m.abort(ctx, s, 1-loser, ReasonForfeit, msg)
	return nil
}

// Disconnect drops connID from the queue and ends every session it sits in.
func (m *Manager) Disconnect(ctx context.Context, connID string) {
	m.mu.Lock()
	m.queue.RemoveConn(connID)
	m.mu.Unlock()

	for _, s := range m.registry.Snapshot() {
		loser := s.slotByConn(connID)
		if loser < 0 {
			continue
		}
		s.mu.Lock()
		if s.status != StatusEnded {
			msg := m.opts.Messages.Text("game.end.disconnect", nil, "Opponent disconnected")
			m.abort(ctx, s, 1-loser, ReasonDisconnect, msg)
		}
		s.mu.Unlock()
	}
}

// abort ends s with the given seat as winner. Caller holds s.mu.
func (m *Manager) abort(ctx context.Context, s *Session, winner int, reason EndReason, msg string) {
	res := grid.FirstWins
	if winner == 1 {
		res = grid.SecondWins
	}
	m.end(ctx, s, Outcome{Result: res, Winner: s.Slots[winner].Identity}, reason, msg, nil)
}

// complete scores a full board and ends s. Caller holds s.mu.
func (m *Manager) complete(ctx context.Context, s *Session) {
	score := grid.Evaluate(s.grid, s.Slots[0].Color, s.Slots[1].Color)
	out := Outcome{Result: score.Result()}
	var msg string
	switch out.Result {
	case grid.FirstWins, grid.SecondWins:
		idx := 0
		if out.Result == grid.SecondWins {
			idx = 1
		}
		out.Winner = s.Slots[idx].Identity
		name := displayName(s.Slots[idx], idx)
		msg = m.opts.Messages.Text("game.end.win", map[string]string{"Name": name}, name+" won the game")
	default:
		msg = m.opts.Messages.Text("game.end.draw", nil, "Game ended in a draw")
	}
	obslog.L().Info("game_scored", zap.String("game_id", s.ID), zap.Int("first_area", score.First), zap.Int("second_area", score.Second), zap.String("result", string(out.Result)))
	m.end(ctx, s, out, ReasonComplete, msg, &score)
}

// end is the single exit path: mark ENDED, drop from the registry, persist,
// then tell both seats. A persistence failure is logged and does not stop
// the teardown or the notice. Caller holds s.mu.
func (m *Manager) end(ctx context.Context, s *Session, out Outcome, reason EndReason, msg string, score *grid.Score) {
	s.status = StatusEnded
	if s.stopStart != nil {
		s.stopStart()
		s.stopStart = nil
	}
	if !m.registry.Remove(s.ID) {
		return
	}

	rec := &FinishedGame{
		SessionID:  s.ID,
		SlotA:      s.Slots[0].Identity,
		SlotB:      s.Slots[1].Identity,
		SlotAColor: s.Slots[0].Color,
		SlotBColor: s.Slots[1].Color,
		FinalGrid:  s.grid.Clone(),
		Outcome:    out,
		Reason:     reason,
		CreatedAt:  s.createdAt,
		EndedAt:    m.opts.Now(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.PersistTimeout)
	if err := m.persister.PersistFinishedGame(pctx, rec); err != nil {
		obslog.L().Error("game_persist_error", zap.String("game_id", s.ID), zap.String("reason", string(reason)), zap.Error(err))
	} else {
		obslog.L().Info("game_persist", zap.String("game_id", s.ID), zap.String("result", string(out.Result)), zap.String("winner", out.Winner))
	}
	cancel()

	ev := GameEnded{GameID: s.ID, Reason: reason, Message: msg}
	if out.Winner != "" {
		w := out.Winner
		ev.Winner = &w
	}
	if score != nil {
		a, b := score.First, score.Second
		ev.Player1Area, ev.Player2Area = &a, &b
	}
	m.broadcast(s, Event{Type: EventGameEnded, Data: ev})
	obslog.L().Info("game_end", zap.String("game_id", s.ID), zap.String("reason", string(reason)), zap.String("winner", out.Winner))
}

// Session returns a detached view of a live session.
func (m *Manager) Session(id string) (SessionView, bool) {
	s := m.registry.Get(id)
	if s == nil {
		return SessionView{}, false
	}
	return s.View(), true
}

// Stats reports queue length and live session count.
func (m *Manager) Stats() (waiting, sessions int) {
	return m.queue.Len(), m.registry.Len()
}

// Shutdown ends nothing; it only stops pending start timers so the process can exit.
func (m *Manager) Shutdown() {
	for _, s := range m.registry.Snapshot() {
		s.mu.Lock()
		if s.stopStart != nil {
			s.stopStart()
			s.stopStart = nil
		}
		s.mu.Unlock()
	}
}

func displayName(sl Slot, idx int) string {
	if n := strings.TrimSpace(sl.Profile.DisplayName); n != "" {
		return n
	}
	return fmt.Sprintf("Player %d", idx+1)
}

// cryptoCoin is a fair coin from crypto/rand; on failure it falls back to the clock.
func cryptoCoin() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return time.Now().UnixNano()%2 == 0
	}
	return n.Int64() == 0
}
