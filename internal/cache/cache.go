// Package cache wraps the shared Redis key layout of spec.md §6.4: single-
// use WS session tokens and long-TTL active-match pointers. The ticket/
// pending-notification half of §6.4 lives in internal/matchqueue, since
// those keys are owned by the matchmaking join/pair operation. Connection
// setup lives in internal/redisconn; the deposit-poll scheduling
// idiom is grounded on internal/game/idle_worker.go's Redis sorted-set
// warning/forfeit scheme, narrowed to the deposit-gating use spec.md §4.7
// describes for cross-instance visibility under sticky routing.
package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	wsTokenTTL     = 2 * time.Minute
	activeMatchTTL = 12 * time.Hour
	sessionTTL     = 24 * time.Hour
	depositPollKey = "deposit_poll"
)

type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func wsTokenKey(token string) string         { return "wsToken:" + token }
func activeMatchKey(playerID string) string  { return "activeMatch:" + playerID }
func sessionKey(matchID, playerID string) string { return "session:" + matchID + ":" + playerID }

type wsTokenPayload struct {
	MatchID string `json:"matchId"`
	PlayerID string `json:"playerId"`
}

// IssueWSToken mints a single-use session token binding (matchId, playerId),
// per §3.8/§6.3's "Session token" record.
func (c *Cache) IssueWSToken(ctx context.Context, matchID, playerID string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(wsTokenPayload{MatchID: matchID, PlayerID: playerID})
	if err != nil {
		return "", err
	}
	if err := c.rdb.Set(ctx, wsTokenKey(token), b, wsTokenTTL).Err(); err != nil {
		return "", fmt.Errorf("cache: issue ws token: %w", err)
	}
	return token, nil
}

// ConsumeWSToken atomically reads and deletes the token (single-use, per
// §6.4), returning the bound matchId/playerId.
func (c *Cache) ConsumeWSToken(ctx context.Context, token string) (matchID, playerID string, err error) {
	raw, err := c.rdb.GetDel(ctx, wsTokenKey(token)).Result()
	if err == redis.Nil {
		return "", "", fmt.Errorf("cache: ws token not found or already consumed")
	}
	if err != nil {
		return "", "", fmt.Errorf("cache: consume ws token: %w", err)
	}
	var p wsTokenPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return "", "", fmt.Errorf("cache: decode ws token: %w", err)
	}
	return p.MatchID, p.PlayerID, nil
}

type ActiveMatch struct {
	MatchID  string `json:"matchId"`
	GameID   string `json:"gameId"`
	StakeWei string `json:"stakeWei"`
}

// SetActiveMatch records a long-TTL pointer from a player to their current
// match, used by POST /api/matches/active and reconnection.
func (c *Cache) SetActiveMatch(ctx context.Context, playerID string, m ActiveMatch) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, activeMatchKey(playerID), b, activeMatchTTL).Err(); err != nil {
		return fmt.Errorf("cache: set active match: %w", err)
	}
	return nil
}

// GetActiveMatch returns (nil, nil) if the player has no recorded active match.
func (c *Cache) GetActiveMatch(ctx context.Context, playerID string) (*ActiveMatch, error) {
	raw, err := c.rdb.Get(ctx, activeMatchKey(playerID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get active match: %w", err)
	}
	var m ActiveMatch
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("cache: decode active match: %w", err)
	}
	return &m, nil
}

func (c *Cache) ClearActiveMatch(ctx context.Context, playerID string) error {
	if err := c.rdb.Del(ctx, activeMatchKey(playerID)).Err(); err != nil {
		return fmt.Errorf("cache: clear active match: %w", err)
	}
	return nil
}

// RegisterSession marks (matchId, playerId) as having authenticated once,
// so a later signature-only HELLO can reconnect without a fresh wsToken
// (spec.md §4.7's "signature path"/§6.4's session:<matchId>:<playerId> key).
func (c *Cache) RegisterSession(ctx context.Context, matchID, playerID string) error {
	if err := c.rdb.Set(ctx, sessionKey(matchID, playerID), 1, sessionTTL).Err(); err != nil {
		return fmt.Errorf("cache: register session: %w", err)
	}
	return nil
}

// HasSession reports whether (matchId, playerId) has a live session entry.
func (c *Cache) HasSession(ctx context.Context, matchID, playerID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, sessionKey(matchID, playerID)).Result()
	if err != nil {
		return false, fmt.Errorf("cache: check session: %w", err)
	}
	return n > 0, nil
}

// ScheduleDepositPoll arranges for the match to be checked (IsFullyFunded)
// at or after `at`, mirroring idle_worker.go's ZADD-based scheduling so
// every process instance behind the load balancer can see the same due set.
func (c *Cache) ScheduleDepositPoll(ctx context.Context, matchID string, at time.Time) error {
	err := c.rdb.ZAdd(ctx, depositPollKey, redis.Z{Score: float64(at.Unix()), Member: matchID}).Err()
	if err != nil {
		return fmt.Errorf("cache: schedule deposit poll: %w", err)
	}
	return nil
}

// DueDepositPolls pops (race-safe, ZRem-then-check like idle_worker.go) every
// matchId whose scheduled poll time has arrived.
func (c *Cache) DueDepositPolls(ctx context.Context, now time.Time) ([]string, error) {
	members, err := c.rdb.ZRangeByScore(ctx, depositPollKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: fetch due deposit polls: %w", err)
	}

	due := make([]string, 0, len(members))
	for _, m := range members {
		if removed, _ := c.rdb.ZRem(ctx, depositPollKey, m).Result(); removed > 0 {
			due = append(due, m)
		}
	}
	return due, nil
}

func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
