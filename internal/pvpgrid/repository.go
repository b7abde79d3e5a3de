package pvpgrid

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/gridclash/internal/grid"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    profile_picture_url TEXT NOT NULL DEFAULT '',
    coins BIGINT NOT NULL DEFAULT 1000
);
CREATE TABLE IF NOT EXISTS grid_games (
    id BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL UNIQUE,
    player1_id TEXT NOT NULL,
    player2_id TEXT NOT NULL,
    player1_color TEXT NOT NULL,
    player2_color TEXT NOT NULL,
    final_grid JSONB NOT NULL,
    result TEXT NOT NULL,
    winner_id TEXT,
    end_reason TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ NOT NULL
);`

// Repository is the postgres-backed resolver and persister.
type Repository struct {
	db    *sql.DB
	stake int64
}

func NewRepository(databaseURL string, stake int64) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewRepositoryWithDB(db, stake), nil
}

// NewRepositoryWithDB wraps an already opened handle.
func NewRepositoryWithDB(db *sql.DB, stake int64) *Repository {
	if stake < 0 {
		stake = 0
	}
	return &Repository{db: db, stake: stake}
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// EnsureSchema creates the tables if they are missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schemaDDL)
	return err
}

func (r *Repository) ResolveParticipant(ctx context.Context, identity string) (*Profile, error) {
	var p Profile
	err := r.db.QueryRowContext(ctx,
		`SELECT username, profile_picture_url, coins FROM users WHERE id = $1`, identity,
	).Scan(&p.DisplayName, &p.AvatarURL, &p.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user %s: %w", identity, err)
	}
	return &p, nil
}

// PersistFinishedGame writes the record and settles coins in one transaction.
// A second call for the same session id is a no-op.
func (r *Repository) PersistFinishedGame(ctx context.Context, g *FinishedGame) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	gridRaw, err := encodeGrid(g)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var winner sql.NullString
	if g.Outcome.Winner != "" {
		winner = sql.NullString{String: g.Outcome.Winner, Valid: true}
	}

	q := `INSERT INTO grid_games (
        session_id, player1_id, player2_id, player1_color, player2_color,
        final_grid, result, winner_id, end_reason, created_at, ended_at
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
      ) ON CONFLICT (session_id) DO NOTHING
      RETURNING id`

	var id int64
	err = tx.QueryRowContext(ctx, q,
		g.SessionID,
		g.SlotA, g.SlotB,
		string(g.SlotAColor), string(g.SlotBColor),
		string(gridRaw), resultToken(g), winner, string(g.Reason),
		g.CreatedAt, g.EndedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert grid game %s: %w", g.SessionID, err)
	}

	loser := g.Loser()
	if winner.Valid && loser != "" && loser != winner.String && r.stake > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET coins = coins + $1 WHERE id = $2`, r.stake, winner.String); err != nil {
			return fmt.Errorf("credit winner %s: %w", winner.String, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET coins = GREATEST(coins - $1, 0) WHERE id = $2`, r.stake, loser); err != nil {
			return fmt.Errorf("debit loser %s: %w", loser, err)
		}
	}
	return tx.Commit()
}

func resultToken(g *FinishedGame) string {
	switch g.Outcome.Result {
	case grid.FirstWins:
		return "player1"
	case grid.SecondWins:
		return "player2"
	default:
		return "draw"
	}
}

// encodeGrid renders the final grid as a JSON array of rows with null for empty cells.
func encodeGrid(g *FinishedGame) ([]byte, error) {
	raw, err := json.Marshal(g.FinalGrid.Strings())
	if err != nil {
		return nil, fmt.Errorf("encode grid %s: %w", g.SessionID, err)
	}
	return raw, nil
}
