// Package store is the sqlx persistence layer for the records listed in
// spec.md §3.5 (MatchRecord, MoveRecord, PlayerRecord, PlayerGameRecord).
// Connection setup mirrors internal/database/database.go; struct
// conventions (db/json tags, sql.Null* for optional columns,
// pq.StringArray for the players list) mirror internal/models/models.go.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/dorkfun/match-core/internal/elo"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sqlx.DB
}

// Connect opens the Postgres connection pool, sized the same as the
// teacher's database.Connect.
func Connect(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// New wraps an already-open sqlx.DB.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InsertMatch creates the MatchRecord row for a newly created match.
func (s *Store) InsertMatch(ctx context.Context, m *MatchRecord) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO matches (
			match_id, game_id, status, players, winner, reason,
			transcript_hash, settlement_tx_hash, stake_wei, invite_code,
			created_at, completed_at, last_activity_at
		) VALUES (
			:match_id, :game_id, :status, :players, :winner, :reason,
			:transcript_hash, :settlement_tx_hash, :stake_wei, :invite_code,
			:created_at, :completed_at, :last_activity_at
		)
		ON CONFLICT (match_id) DO NOTHING
	`, m)
	if err != nil {
		return fmt.Errorf("store: insert match: %w", err)
	}
	return nil
}

// GetMatch fetches a single match by id.
func (s *Store) GetMatch(ctx context.Context, matchID string) (*MatchRecord, error) {
	var m MatchRecord
	err := s.db.GetContext(ctx, &m, `SELECT * FROM matches WHERE match_id = $1`, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get match: %w", err)
	}
	return &m, nil
}

// UpdateMatchCompletion persists the terminal outcome (spec.md §4.6 step
// "Update MatchRecord"). Idempotent: re-applying the same winner/reason to
// an already-completed row is a no-op in effect.
func (s *Store) UpdateMatchCompletion(ctx context.Context, matchID, status string, winner, reason *string, transcriptHash string, completedAt sql.NullTime) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE matches
		SET status = $2, winner = $3, reason = $4, transcript_hash = $5, completed_at = $6
		WHERE match_id = $1
	`, matchID, status, nullableString(winner), nullableString(reason), transcriptHash, completedAt)
	if err != nil {
		return fmt.Errorf("store: update match completion: %w", err)
	}
	return nil
}

// UpdateMatchStatus transitions a match's status without touching the
// completion fields, used by activateStakedMatch's WAITING -> ACTIVE move.
func (s *Store) UpdateMatchStatus(ctx context.Context, matchID, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE matches SET status = $2 WHERE match_id = $1`, matchID, status)
	if err != nil {
		return fmt.Errorf("store: update match status: %w", err)
	}
	return nil
}

// SetSettlementTxHash records the proposal/finalize tx hash on the match row.
func (s *Store) SetSettlementTxHash(ctx context.Context, matchID, txHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE matches SET settlement_tx_hash = $2 WHERE match_id = $1`, matchID, txHash)
	if err != nil {
		return fmt.Errorf("store: set settlement tx hash: %w", err)
	}
	return nil
}

// TouchMatch updates last_activity_at, called on every submitMove.
func (s *Store) TouchMatch(ctx context.Context, matchID string, at sql.NullTime) error {
	_, err := s.db.ExecContext(ctx, `UPDATE matches SET last_activity_at = $2 WHERE match_id = $1`, matchID, at.Time)
	if err != nil {
		return fmt.Errorf("store: touch match: %w", err)
	}
	return nil
}

// ListActiveMatches returns every non-terminal match, used by the recovery
// driver to decide what to rehydrate at boot.
func (s *Store) ListActiveMatches(ctx context.Context) ([]MatchRecord, error) {
	var rows []MatchRecord
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM matches WHERE status NOT IN ('COMPLETED', 'CANCELLED')`)
	if err != nil {
		return nil, fmt.Errorf("store: list active matches: %w", err)
	}
	return rows, nil
}

// ListPendingSettlement returns completed matches that already have a
// settlement tx hash recorded — a proposal was submitted but the process
// crashed or restarted before finalization was confirmed. Matches never
// proposed in the first place (no tx hash) are excluded: spec.md §9 Open
// Question #4 decides those are not automatically re-proposed on boot.
func (s *Store) ListPendingSettlement(ctx context.Context) ([]MatchRecord, error) {
	var rows []MatchRecord
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM matches WHERE status = 'COMPLETED' AND settlement_tx_hash IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: list pending settlement: %w", err)
	}
	return rows, nil
}

// InsertMove appends a MoveRecord. The primary key is (match_id, sequence);
// ON CONFLICT DO NOTHING gives the upsert semantics spec.md §9 requires so
// recovery replay that re-inserts an already-persisted move is a no-op.
func (s *Store) InsertMove(ctx context.Context, mv *MoveRecord) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO moves (match_id, sequence, player_address, action, state_hash, prev_hash, created_at)
		VALUES (:match_id, :sequence, :player_address, :action, :state_hash, :prev_hash, :created_at)
		ON CONFLICT (match_id, sequence) DO NOTHING
	`, mv)
	if err != nil {
		return fmt.Errorf("store: insert move: %w", err)
	}
	return nil
}

// ListMoves returns every move for a match in sequence order, used both by
// the recovery driver (orchestrator.FromReplay) and transcript archive reads.
func (s *Store) ListMoves(ctx context.Context, matchID string) ([]MoveRecord, error) {
	var rows []MoveRecord
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM moves WHERE match_id = $1 ORDER BY sequence ASC`, matchID)
	if err != nil {
		return nil, fmt.Errorf("store: list moves: %w", err)
	}
	return rows, nil
}

// GetPlayer fetches a PlayerRecord, or a fresh DefaultRating one if the
// player has never been persisted.
func (s *Store) GetPlayer(ctx context.Context, playerAddress string) (*PlayerRecord, error) {
	var p PlayerRecord
	err := s.db.GetContext(ctx, &p, `SELECT * FROM players WHERE player_address = $1`, playerAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return &PlayerRecord{PlayerAddress: playerAddress, Rating: elo.DefaultRating, LifetimeEarningsWei: "0"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get player: %w", err)
	}
	return &p, nil
}

// UpsertPlayer writes the full PlayerRecord, inserting on first appearance
// and overwriting stats/rating otherwise.
func (s *Store) UpsertPlayer(ctx context.Context, p *PlayerRecord) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO players (
			player_address, rating, games_played, games_won, games_drawn,
			lifetime_earnings_wei, disconnect_count, no_show_count, created_at, updated_at
		) VALUES (
			:player_address, :rating, :games_played, :games_won, :games_drawn,
			:lifetime_earnings_wei, :disconnect_count, :no_show_count, :created_at, :updated_at
		)
		ON CONFLICT (player_address) DO UPDATE SET
			rating = EXCLUDED.rating,
			games_played = EXCLUDED.games_played,
			games_won = EXCLUDED.games_won,
			games_drawn = EXCLUDED.games_drawn,
			lifetime_earnings_wei = EXCLUDED.lifetime_earnings_wei,
			disconnect_count = EXCLUDED.disconnect_count,
			no_show_count = EXCLUDED.no_show_count,
			updated_at = EXCLUDED.updated_at
	`, p)
	if err != nil {
		return fmt.Errorf("store: upsert player: %w", err)
	}
	return nil
}

// GetPlayerGame fetches the per-game rating dimension, or a fresh
// DefaultRating one if this player has never played this game.
func (s *Store) GetPlayerGame(ctx context.Context, playerAddress, gameID string) (*PlayerGameRecord, error) {
	var pg PlayerGameRecord
	err := s.db.GetContext(ctx, &pg, `SELECT * FROM player_games WHERE player_address = $1 AND game_id = $2`, playerAddress, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return &PlayerGameRecord{PlayerAddress: playerAddress, GameID: gameID, Rating: elo.DefaultRating}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get player game: %w", err)
	}
	return &pg, nil
}

// UpsertPlayerGame writes the per-game rating dimension.
func (s *Store) UpsertPlayerGame(ctx context.Context, pg *PlayerGameRecord) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO player_games (player_address, game_id, rating, games_played, games_won, games_drawn, updated_at)
		VALUES (:player_address, :game_id, :rating, :games_played, :games_won, :games_drawn, :updated_at)
		ON CONFLICT (player_address, game_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			games_played = EXCLUDED.games_played,
			games_won = EXCLUDED.games_won,
			games_drawn = EXCLUDED.games_drawn,
			updated_at = EXCLUDED.updated_at
	`, pg)
	if err != nil {
		return fmt.Errorf("store: upsert player game: %w", err)
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
