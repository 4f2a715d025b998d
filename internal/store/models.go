package store

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// MatchRecord is the canonical match row (§3.5). Players is stored as a
// Postgres text array, mirroring the teacher's use of pq.StringArray for
// AdminAccount.Roles.
type MatchRecord struct {
	MatchID           string         `db:"match_id" json:"match_id"`
	GameID            string         `db:"game_id" json:"game_id"`
	Status            string         `db:"status" json:"status"`
	Players           pq.StringArray `db:"players" json:"players"`
	Winner            sql.NullString `db:"winner" json:"winner,omitempty"`
	Reason            sql.NullString `db:"reason" json:"reason,omitempty"`
	TranscriptHash    sql.NullString `db:"transcript_hash" json:"transcript_hash,omitempty"`
	SettlementTxHash  sql.NullString `db:"settlement_tx_hash" json:"settlement_tx_hash,omitempty"`
	StakeWei          string         `db:"stake_wei" json:"stake_wei"`
	InviteCode        sql.NullString `db:"invite_code" json:"invite_code,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	CompletedAt       sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
	LastActivityAt    time.Time      `db:"last_activity_at" json:"last_activity_at"`
}

// MoveRecord is the append-only move log keyed on (match_id, sequence).
type MoveRecord struct {
	MatchID       string    `db:"match_id" json:"match_id"`
	Sequence      int       `db:"sequence" json:"sequence"`
	PlayerAddress string    `db:"player_address" json:"player_address"`
	Action        string    `db:"action" json:"action"` // JSON-serialized gmc.Action
	StateHash     string    `db:"state_hash" json:"state_hash"`
	PrevHash      string    `db:"prev_hash" json:"prev_hash"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PlayerRecord carries overall rating and lifetime stats (§3.5), plus the
// teacher's disconnect/no-show telemetry counters (§3.10).
type PlayerRecord struct {
	PlayerAddress   string    `db:"player_address" json:"player_address"`
	Rating          float64   `db:"rating" json:"rating"`
	GamesPlayed     int       `db:"games_played" json:"games_played"`
	GamesWon        int       `db:"games_won" json:"games_won"`
	GamesDrawn      int       `db:"games_drawn" json:"games_drawn"`
	LifetimeEarningsWei string `db:"lifetime_earnings_wei" json:"lifetime_earnings_wei"`
	DisconnectCount int       `db:"disconnect_count" json:"disconnect_count"`
	NoShowCount     int       `db:"no_show_count" json:"no_show_count"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// PlayerGameRecord carries per-game rating dimension, keyed on
// (player_address, game_id), computed independently of PlayerRecord.Rating
// per §4.6.1.
type PlayerGameRecord struct {
	PlayerAddress string    `db:"player_address" json:"player_address"`
	GameID        string    `db:"game_id" json:"game_id"`
	Rating        float64   `db:"rating" json:"rating"`
	GamesPlayed   int       `db:"games_played" json:"games_played"`
	GamesWon      int       `db:"games_won" json:"games_won"`
	GamesDrawn    int       `db:"games_drawn" json:"games_drawn"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
