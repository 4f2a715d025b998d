// Package matchqueue implements the Matchmaking Queue (MMQ): a
// Redis-backed queue partitioned by (gameId, stakeBucket) producing
// opponent pairs under concurrency without double-pairing.
//
// Grounded on internal/game/matchmaker_worker.go's tryMatchPair, which
// claims two queued rows with `FOR UPDATE SKIP LOCKED` inside a Postgres
// transaction so concurrent matchmaker ticks never race for the same
// player. MMQ needs the same atomic-claim guarantee but against a shared
// cache rather than a database row lock (spec.md §6.4's queue is
// cache-resident, not a table), so the claim is reimplemented as a single
// Lua script executed via EVAL — Redis runs the whole script as one atomic
// step, the same role SKIP LOCKED plays for the teacher's transaction.
package matchqueue

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoOpponent = errors.New("matchqueue: no waiting opponent")

const ticketTTL = 2 * time.Minute
const pendingTTL = 30 * time.Second

// pairScript atomically scans the waiting list for this (gameId,
// stakeBucket) for an opponent other than the caller. If found, it removes
// that opponent's entry and ticket and returns it; otherwise it
// deduplicates and (re-)enqueues the caller with a fresh ticket TTL. It
// also records a ticket->playerId reverse pointer (owner prefix) so Leave
// can resolve a ticket back to the queue entry to remove without the
// caller's playerId. The pointer is scoped to (gameId, stakeBucket), so
// Leave must be given those as well as the ticket.
var pairScript = redis.NewScript(`
local queueKey = KEYS[1]
local playerId = ARGV[1]
local ticket = ARGV[2]
local ttl = tonumber(ARGV[3])
local ticketPrefix = ARGV[4]
local ownerPrefix = ARGV[5]

local len = redis.call('LLEN', queueKey)
for i = 0, len - 1 do
	local candidate = redis.call('LINDEX', queueKey, i)
	if candidate and candidate ~= playerId then
		redis.call('LREM', queueKey, 1, candidate)
		local oldTicket = redis.call('GET', ticketPrefix .. candidate)
		redis.call('DEL', ticketPrefix .. candidate)
		if oldTicket then
			redis.call('DEL', ownerPrefix .. oldTicket)
		end
		return {'matched', candidate}
	end
end

redis.call('LREM', queueKey, 0, playerId)
redis.call('RPUSH', queueKey, playerId)
redis.call('SET', ticketPrefix .. playerId, ticket, 'EX', ttl)
redis.call('SET', ownerPrefix .. ticket, playerId, 'EX', ttl)
return {'queued', ticket}
`)

// Pending is the short-lived notification consumed by the other side of an
// already-completed pairing (spec.md §3.9).
type Pending struct {
	MatchID  string `json:"matchId"`
	Opponent string `json:"opponent"`
	StakeWei string `json:"stakeWei"`
}

// JoinResult is the outcome of JoinOrPair (spec.md §4.5).
type JoinResult struct {
	Ticket   string
	MatchID  string // set only when a pending notification was consumed
	Opponent string // set when paired, via either path
	StakeWei string
	Paired   bool
}

type Queue struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

func queueKey(gameID, stakeBucket string) string {
	return fmt.Sprintf("queue:%s:%s", gameID, stakeBucket)
}

func ticketKeyPrefix(gameID, stakeBucket string) string {
	return fmt.Sprintf("ticket:%s:%s:", gameID, stakeBucket)
}

func ticketKey(gameID, stakeBucket, playerID string) string {
	return ticketKeyPrefix(gameID, stakeBucket) + playerID
}

func ticketOwnerPrefix(gameID, stakeBucket string) string {
	return fmt.Sprintf("ticketOwner:%s:%s:", gameID, stakeBucket)
}

func pendingKey(gameID, stakeBucket, playerID string) string {
	return fmt.Sprintf("pending:%s:%s:%s", gameID, stakeBucket, playerID)
}

func generateTicket() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// JoinOrPair implements spec.md §4.5's joinOrPair. The caller (MLS) is
// responsible for creating the match and calling NotifyPending for the
// opponent once Opponent is set without MatchID, since MMQ itself does not
// know about matches — only MLS does.
func (q *Queue) JoinOrPair(ctx context.Context, playerID, gameID, stakeBucket, existingTicket string) (JoinResult, error) {
	pkey := pendingKey(gameID, stakeBucket, playerID)
	raw, err := q.rdb.GetDel(ctx, pkey).Result()
	if err == nil {
		var p Pending
		if jsonErr := json.Unmarshal([]byte(raw), &p); jsonErr == nil {
			return JoinResult{MatchID: p.MatchID, Opponent: p.Opponent, StakeWei: p.StakeWei, Paired: true}, nil
		}
	} else if err != redis.Nil {
		return JoinResult{}, fmt.Errorf("matchqueue: read pending: %w", err)
	}

	ticket := existingTicket
	if ticket == "" {
		ticket = generateTicket()
	}

	res, err := pairScript.Run(ctx, q.rdb,
		[]string{queueKey(gameID, stakeBucket)},
		playerID, ticket, int(ticketTTL.Seconds()), ticketKeyPrefix(gameID, stakeBucket), ticketOwnerPrefix(gameID, stakeBucket),
	).Slice()
	if err != nil {
		return JoinResult{}, fmt.Errorf("matchqueue: pair script: %w", err)
	}
	if len(res) != 2 {
		return JoinResult{}, fmt.Errorf("matchqueue: unexpected pair script result %#v", res)
	}
	kind, _ := res[0].(string)
	value, _ := res[1].(string)

	switch kind {
	case "matched":
		return JoinResult{Opponent: value, Paired: true}, nil
	case "queued":
		return JoinResult{Ticket: value, Paired: false}, nil
	default:
		return JoinResult{}, fmt.Errorf("matchqueue: unrecognized pair script result %q", kind)
	}
}

// NotifyPending writes the short-lived notification the other half of a
// pairing discovers on its next JoinOrPair/poll call.
func (q *Queue) NotifyPending(ctx context.Context, gameID, stakeBucket, waitingPlayerID string, p Pending) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("matchqueue: marshal pending: %w", err)
	}
	return q.rdb.Set(ctx, pendingKey(gameID, stakeBucket, waitingPlayerID), data, pendingTTL).Err()
}

// Leave removes ticket's entry from the (gameId, stakeBucket) queue. The
// ticket is resolved to its owning playerId via the reverse pointer
// pairScript maintains; an already-expired or unknown ticket is a no-op
// (spec.md §6.1's leave is idempotent by design — the client can't tell
// "already left" from "never queued").
func (q *Queue) Leave(ctx context.Context, ticket, gameID, stakeBucket string) error {
	playerID, err := q.rdb.GetDel(ctx, ticketOwnerPrefix(gameID, stakeBucket)+ticket).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("matchqueue: leave: resolve ticket: %w", err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, queueKey(gameID, stakeBucket), 0, playerID)
	pipe.Del(ctx, ticketKey(gameID, stakeBucket, playerID))
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("matchqueue: leave: %w", err)
	}
	return nil
}

// Size reports the number of waiting entries for (gameId, stakeBucket).
func (q *Queue) Size(ctx context.Context, gameID, stakeBucket string) (int64, error) {
	n, err := q.rdb.LLen(ctx, queueKey(gameID, stakeBucket)).Result()
	if err != nil {
		return 0, fmt.Errorf("matchqueue: size: %w", err)
	}
	return n, nil
}

// AllEntries returns the waiting player ids across every stake bucket for
// gameId, keyed by queue key. No handler in this module calls it.
func (q *Queue) AllEntries(ctx context.Context, gameID string) (map[string][]string, error) {
	out := make(map[string][]string)
	pattern := fmt.Sprintf("queue:%s:*", gameID)
	iter := q.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		members, err := q.rdb.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("matchqueue: lrange %s: %w", key, err)
		}
		out[key] = members
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("matchqueue: scan: %w", err)
	}
	return out, nil
}
