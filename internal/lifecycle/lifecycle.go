// Package lifecycle implements the Match Lifecycle Service (MLS): the
// coordinator spec.md §4.6 describes as sitting between the REST/session
// shells and MR/MO/MMQ/SC. Grounded on GameManager's
// JoinQueue/CreateGameFromMatch/ForfeitByDisconnect/idle-cleanup methods
// (internal/game/manager.go), generalized from PlayMatatu's single
// hardwired card game to the pluggable gmc.Registry and split across the
// narrower MR/MO/RF/MMQ/SC collaborators spec.md §4 defines.
package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dorkfun/match-core/internal/apperr"
	"github.com/dorkfun/match-core/internal/cache"
	"github.com/dorkfun/match-core/internal/config"
	"github.com/dorkfun/match-core/internal/elo"
	"github.com/dorkfun/match-core/internal/gmc"
	"github.com/dorkfun/match-core/internal/matchqueue"
	"github.com/dorkfun/match-core/internal/orchestrator"
	"github.com/dorkfun/match-core/internal/registry"
	"github.com/dorkfun/match-core/internal/room"
	"github.com/dorkfun/match-core/internal/settlement"
	"github.com/dorkfun/match-core/internal/store"
	"github.com/dorkfun/match-core/internal/transcript"
)

// Service is the Match Lifecycle Service. It owns the per-match Room
// registry as well, since room creation/eviction is driven by the same
// completion/cleanup/emergency events MLS already handles (spec.md §5
// "Resource lifetime").
type Service struct {
	cfg        *config.Config
	registry   *registry.Registry
	store      *store.Store
	cache      *cache.Cache
	queue      *matchqueue.Queue
	settlement settlement.Coordinator
	games      *gmc.Registry

	roomsMu sync.Mutex
	rooms   map[string]*room.Room
}

func New(cfg *config.Config, reg *registry.Registry, st *store.Store, ca *cache.Cache, q *matchqueue.Queue, sc settlement.Coordinator, games *gmc.Registry) *Service {
	return &Service{
		cfg:        cfg,
		registry:   reg,
		store:      st,
		cache:      ca,
		queue:      q,
		settlement: sc,
		games:      games,
		rooms:      make(map[string]*room.Room),
	}
}

// Room returns the match's fanout room, creating it on first access.
func (s *Service) Room(matchID string) *room.Room {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()
	r, ok := s.rooms[matchID]
	if !ok {
		r = room.New(matchID)
		s.rooms[matchID] = r
	}
	return r
}

func (s *Service) evictRoom(matchID string) {
	s.roomsMu.Lock()
	r, ok := s.rooms[matchID]
	delete(s.rooms, matchID)
	s.roomsMu.Unlock()
	if ok {
		r.Close()
	}
}

// seedFromMatchID derives a deterministic Init seed from the match id so
// that fromReplay (internal/recovery) re-executes Init identically.
func seedFromMatchID(matchID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(matchID))
	return int64(h.Sum64())
}

// CreateMatch implements spec.md §4.6 createMatch.
func (s *Service) CreateMatch(ctx context.Context, gameID string, players []string, settings json.RawMessage, stakeWei string) (*registry.Match, error) {
	if s.registry.EmergencyMode() {
		return nil, apperr.New(apperr.KindEmergencyMode, "matchmaking is suspended")
	}
	module, ok := s.games.Get(gameID)
	if !ok {
		return nil, apperr.New(apperr.KindUnknownGame, fmt.Sprintf("unknown gameId %q", gameID))
	}
	meta := module.Metadata()
	if meta.MinPlayers <= 1 || !s.cfg.SettlementEnabled {
		stakeWei = "0"
	}
	if stakeWei != "0" {
		minStr, err := s.settlement.GetMinimumStake(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindSettlementFailed, err)
		}
		stake, ok := new(big.Int).SetString(stakeWei, 10)
		if !ok {
			return nil, apperr.New(apperr.KindInvalidRequest, "invalid stakeWei")
		}
		min, ok := new(big.Int).SetString(minStr, 10)
		if ok && stake.Cmp(min) < 0 {
			return nil, apperr.New(apperr.KindStakeTooLow, fmt.Sprintf("stake %s below minimum %s", stakeWei, minStr))
		}
	}

	matchID := uuid.NewString()
	now := time.Now()
	status := registry.StatusActive
	if stakeWei != "0" {
		status = registry.StatusWaiting
	}

	m := &registry.Match{
		MatchID:        matchID,
		GameID:         gameID,
		Players:        players,
		Status:         status,
		StakeWei:       stakeWei,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if status == registry.StatusActive {
		orch, err := orchestrator.New(matchID, module, players, seedFromMatchID(matchID), settings)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: init match: %w", err)
		}
		m.Orchestrator = orch
	}

	rec := &store.MatchRecord{
		MatchID:        matchID,
		GameID:         gameID,
		Status:         string(status),
		Players:        players,
		StakeWei:       stakeWei,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.store.InsertMatch(ctx, rec); err != nil {
		return nil, err
	}

	for _, p := range players {
		player, err := s.store.GetPlayer(ctx, p)
		if err == nil {
			player.PlayerAddress = p
			_ = s.store.UpsertPlayer(ctx, player)
		}
		_ = s.cache.SetActiveMatch(ctx, p, cache.ActiveMatch{MatchID: matchID, GameID: gameID, StakeWei: stakeWei})
	}

	if stakeWei != "0" {
		if gameIDBytes32, ok := s.settlement.GetGameIDBytes32(gameID); ok {
			go func() {
				if _, err := s.settlement.CreateMatch(context.Background(), matchID, gameIDBytes32, players, stakeWei); err != nil {
					log.Printf("[LIFECYCLE] settlement createMatch failed for %s: %v", matchID, err)
				}
			}()
		} else {
			log.Printf("[LIFECYCLE] no on-chain gameId mapping for %q; skipping settlement createMatch", gameID)
		}
	}

	s.registry.Insert(m)
	return m, nil
}

// JoinQueueResult is the result of JoinQueue (spec.md §4.6).
type JoinQueueResult struct {
	Matched  bool
	MatchID  string
	Opponent string
	WSToken  string
	Ticket   string
}

// JoinQueue implements spec.md §4.6 joinQueue.
func (s *Service) JoinQueue(ctx context.Context, playerID, gameID string, existingTicket string, settings json.RawMessage, stakeWei string) (JoinQueueResult, error) {
	module, ok := s.games.Get(gameID)
	if !ok {
		return JoinQueueResult{}, apperr.New(apperr.KindUnknownGame, fmt.Sprintf("unknown gameId %q", gameID))
	}
	meta := module.Metadata()

	if meta.MinPlayers <= 1 {
		m, err := s.CreateMatch(ctx, gameID, []string{playerID}, settings, "0")
		if err != nil {
			return JoinQueueResult{}, err
		}
		token, err := s.cache.IssueWSToken(ctx, m.MatchID, playerID)
		if err != nil {
			return JoinQueueResult{}, err
		}
		return JoinQueueResult{Matched: true, MatchID: m.MatchID, WSToken: token}, nil
	}

	stakeBucket := stakeWei
	if stakeBucket == "" {
		stakeBucket = "0"
	}

	res, err := s.queue.JoinOrPair(ctx, playerID, gameID, stakeBucket, existingTicket)
	if err != nil {
		return JoinQueueResult{}, fmt.Errorf("lifecycle: join queue: %w", err)
	}

	if !res.Paired {
		return JoinQueueResult{Ticket: res.Ticket}, nil
	}

	if res.MatchID != "" {
		// A pending notification was consumed: the match already exists,
		// created by the other side's JoinOrPair call below.
		token, err := s.cache.IssueWSToken(ctx, res.MatchID, playerID)
		if err != nil {
			return JoinQueueResult{}, err
		}
		return JoinQueueResult{Matched: true, MatchID: res.MatchID, Opponent: res.Opponent, WSToken: token}, nil
	}

	// We are the caller who found a waiting opponent: create the match and
	// notify the other side.
	m, err := s.CreateMatch(ctx, gameID, []string{playerID, res.Opponent}, settings, stakeWei)
	if err != nil {
		return JoinQueueResult{}, err
	}
	if err := s.queue.NotifyPending(ctx, gameID, stakeBucket, res.Opponent, matchqueue.Pending{
		MatchID: m.MatchID, Opponent: playerID, StakeWei: stakeWei,
	}); err != nil {
		log.Printf("[LIFECYCLE] failed to notify opponent %s: %v", res.Opponent, err)
	}
	token, err := s.cache.IssueWSToken(ctx, m.MatchID, playerID)
	if err != nil {
		return JoinQueueResult{}, err
	}
	return JoinQueueResult{Matched: true, MatchID: m.MatchID, Opponent: res.Opponent, WSToken: token}, nil
}

// CreatePrivateMatch starts a WAITING match with a single player and an
// invite code (spec.md §4.6). Unlike CreateMatch, the match always starts
// WAITING — with only one player present, no gmc.Module can construct an
// initial state yet, regardless of stake.
func (s *Service) CreatePrivateMatch(ctx context.Context, gameID, playerID string, settings json.RawMessage, stakeWei string) (*registry.Match, string, error) {
	if s.registry.EmergencyMode() {
		return nil, "", apperr.New(apperr.KindEmergencyMode, "matchmaking is suspended")
	}
	if _, ok := s.games.Get(gameID); !ok {
		return nil, "", apperr.New(apperr.KindUnknownGame, fmt.Sprintf("unknown gameId %q", gameID))
	}
	if !s.cfg.SettlementEnabled {
		stakeWei = "0"
	}

	matchID := uuid.NewString()
	inviteCode := generateInviteCode()
	now := time.Now()
	m := &registry.Match{
		MatchID:        matchID,
		GameID:         gameID,
		Players:        []string{playerID},
		Status:         registry.StatusWaiting,
		StakeWei:       stakeWei,
		InviteCode:     inviteCode,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	rec := &store.MatchRecord{
		MatchID:        matchID,
		GameID:         gameID,
		Status:         string(registry.StatusWaiting),
		Players:        []string{playerID},
		StakeWei:       stakeWei,
		InviteCode:     sql.NullString{String: inviteCode, Valid: true},
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.store.InsertMatch(ctx, rec); err != nil {
		return nil, "", err
	}

	player, err := s.store.GetPlayer(ctx, playerID)
	if err == nil {
		player.PlayerAddress = playerID
		_ = s.store.UpsertPlayer(ctx, player)
	}
	_ = s.cache.SetActiveMatch(ctx, playerID, cache.ActiveMatch{MatchID: matchID, GameID: gameID, StakeWei: stakeWei})

	s.registry.Insert(m)
	return m, inviteCode, nil
}

// AcceptPrivateMatch appends the second player to a private match.
func (s *Service) AcceptPrivateMatch(ctx context.Context, inviteCode, playerID string) (*registry.Match, error) {
	m, ok := s.registry.GetByInviteCode(inviteCode)
	if !ok {
		return nil, apperr.New(apperr.KindMatchNotFound, "unknown invite code")
	}
	if len(m.Players) != 1 {
		return nil, apperr.New(apperr.KindInvalidRequest, "private match already has two players")
	}
	m.Players = append(m.Players, playerID)

	module, ok := s.games.Get(m.GameID)
	if !ok {
		return nil, apperr.New(apperr.KindUnknownGame, m.GameID)
	}
	if m.StakeWei == "0" {
		orch, err := orchestrator.New(m.MatchID, module, m.Players, seedFromMatchID(m.MatchID), nil)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: init accepted match: %w", err)
		}
		m.Orchestrator = orch
		m.Status = registry.StatusActive
	}

	if err := s.store.UpdateMatchStatus(ctx, m.MatchID, string(m.Status)); err != nil {
		log.Printf("[LIFECYCLE] failed to persist accept status for %s: %v", m.MatchID, err)
	}
	_ = s.cache.SetActiveMatch(ctx, playerID, cache.ActiveMatch{MatchID: m.MatchID, GameID: m.GameID, StakeWei: m.StakeWei})
	return m, nil
}

// SubmitMoveResult is the structured, never-throwing result of SubmitMove.
type SubmitMoveResult struct {
	Success  bool
	Terminal bool
	Winner   *string
	Reason   string
	Error    error
}

// SubmitMove implements spec.md §4.6 submitMove.
func (s *Service) SubmitMove(ctx context.Context, matchID, playerID string, action gmc.Action) SubmitMoveResult {
	m, ok := s.registry.Get(matchID)
	if !ok {
		return SubmitMoveResult{Error: apperr.New(apperr.KindMatchNotFound, matchID)}
	}
	if m.Status != registry.StatusActive || m.Orchestrator == nil {
		return SubmitMoveResult{Error: apperr.New(apperr.KindMatchTerminal, "match is not active")}
	}

	_, terminal, outcome, err := m.Orchestrator.SubmitAction(ctx, playerID, action)
	if err != nil {
		return SubmitMoveResult{Error: mapOrchestratorErr(err)}
	}

	now := time.Now()
	m.Touch(now)
	_ = s.store.TouchMatch(ctx, matchID, sql.NullTime{Time: now, Valid: true})

	if entries, tErr := m.Orchestrator.GetTranscript(ctx); tErr == nil && len(entries) > 0 {
		last := entries[len(entries)-1]
		actionJSON, _ := json.Marshal(last.Action)
		mv := &store.MoveRecord{
			MatchID:       matchID,
			Sequence:      last.Sequence,
			PlayerAddress: last.PlayerAddress,
			Action:        string(actionJSON),
			StateHash:     last.StateHash,
			PrevHash:      last.PrevHash,
			CreatedAt:     now,
		}
		if err := s.store.InsertMove(ctx, mv); err != nil {
			log.Printf("[LIFECYCLE] failed to persist move %d for %s: %v", last.Sequence, matchID, err)
		}
	}

	if terminal {
		reason := outcome.Reason
		winner := outcome.Winner
		go s.persistMatchCompletion(context.Background(), m, winner, reason)
	}

	return SubmitMoveResult{Success: true, Terminal: terminal, Winner: outcome.Winner, Reason: outcome.Reason}
}

func mapOrchestratorErr(err error) error {
	switch {
	case err == orchestrator.ErrNotYourTurn:
		return apperr.New(apperr.KindNotYourTurn, err.Error())
	case err == orchestrator.ErrMatchTerminal:
		return apperr.New(apperr.KindMatchTerminal, err.Error())
	default:
		return apperr.New(apperr.KindInvalidAction, err.Error())
	}
}

// ForfeitMatch implements spec.md §4.6 forfeitMatch.
func (s *Service) ForfeitMatch(ctx context.Context, matchID, forfeitingPlayerID string) error {
	m, ok := s.registry.Get(matchID)
	if !ok {
		return apperr.New(apperr.KindMatchNotFound, matchID)
	}
	if m.Status != registry.StatusActive {
		return nil
	}
	var winner *string
	if len(m.Players) == 2 {
		for _, p := range m.Players {
			if p != forfeitingPlayerID {
				w := p
				winner = &w
			}
		}
	}
	s.persistMatchCompletion(ctx, m, winner, "forfeit")
	return nil
}

// ActivateStakedMatch implements spec.md §4.6 activateStakedMatch.
func (s *Service) ActivateStakedMatch(ctx context.Context, matchID string) (bool, error) {
	m, ok := s.registry.Get(matchID)
	if !ok || m.Status != registry.StatusWaiting {
		return false, nil
	}
	module, ok := s.games.Get(m.GameID)
	if !ok {
		return false, apperr.New(apperr.KindUnknownGame, m.GameID)
	}
	orch, err := orchestrator.New(matchID, module, m.Players, seedFromMatchID(matchID), nil)
	if err != nil {
		return false, fmt.Errorf("lifecycle: activate: %w", err)
	}
	m.Orchestrator = orch
	m.Status = registry.StatusActive
	m.Touch(time.Now())
	if err := s.store.UpdateMatchStatus(ctx, matchID, string(registry.StatusActive)); err != nil {
		log.Printf("[LIFECYCLE] failed to persist activation for %s: %v", matchID, err)
	}
	return true, nil
}

// CleanupCompletedMatches implements spec.md §4.6 cleanupCompletedMatches.
func (s *Service) CleanupCompletedMatches(maxAge time.Duration) int {
	return s.registry.EvictCompleted(time.Now().Add(-maxAge))
}

// CleanupStaleMatches implements spec.md §4.6 cleanupStaleMatches.
func (s *Service) CleanupStaleMatches(ctx context.Context, maxAge time.Duration) int {
	count := 0
	for _, m := range s.registry.ListActive() {
		var age time.Duration
		switch m.Status {
		case registry.StatusActive:
			age = time.Since(m.LastActivityAt)
		case registry.StatusWaiting:
			age = time.Since(m.CreatedAt)
		default:
			continue
		}
		if age <= maxAge {
			continue
		}
		reason := "Match abandoned due to inactivity"
		if m.Status == registry.StatusWaiting {
			reason = "no opponent"
		}
		if m.Status == registry.StatusActive {
			s.persistMatchCompletion(ctx, m, nil, reason)
		} else {
			s.completeWithoutOrchestrator(ctx, m, nil, reason)
		}
		count++
	}
	return count
}

// EmergencyDrawAll implements spec.md §4.6 emergencyDrawAll: every live
// match is drawn and persisted, its room torn down, then MR itself is
// cleared (spec.md §4.3 — "drawAllActive ... clears MR").
func (s *Service) EmergencyDrawAll(ctx context.Context) error {
	s.registry.SetEmergencyMode(true)
	for _, m := range s.registry.ListActive() {
		if m.Status == registry.StatusActive {
			s.persistMatchCompletion(ctx, m, nil, "emergency_draw")
		} else {
			s.completeWithoutOrchestrator(ctx, m, nil, "emergency_draw")
		}
	}
	s.registry.Clear()
	return nil
}

// CancelWaitingMatch completes a WAITING match that never reached ACTIVE,
// used by the session package's deposit-poll timeout (spec.md §4.7: "on
// expiry broadcast an ERROR and evict the room").
func (s *Service) CancelWaitingMatch(ctx context.Context, matchID, reason string) {
	m, ok := s.registry.Get(matchID)
	if !ok || m.Status != registry.StatusWaiting {
		return
	}
	s.completeWithoutOrchestrator(ctx, m, nil, reason)
}

// completeWithoutOrchestrator handles WAITING matches (never started, no MO
// to query) during stale-cleanup and emergency draw.
func (s *Service) completeWithoutOrchestrator(ctx context.Context, m *registry.Match, winner *string, reason string) {
	now := time.Now()
	m.Status = registry.StatusCompleted
	m.Winner = winner
	m.Reason = reason
	m.CompletedAt = now
	if err := s.store.UpdateMatchCompletion(ctx, m.MatchID, string(registry.StatusCompleted), winner, &reason, "", sql.NullTime{Time: now, Valid: true}); err != nil {
		log.Printf("[LIFECYCLE] failed to persist completion for %s: %v", m.MatchID, err)
	}
	for _, p := range m.Players {
		_ = s.cache.ClearActiveMatch(ctx, p)
	}
	if r := s.Room(m.MatchID); r != nil {
		r.BroadcastToAll(gameOverFrame(m, reason))
	}
	s.evictRoom(m.MatchID)
}

type gameOverPayload struct {
	Type    string  `json:"type"`
	MatchID string  `json:"matchId"`
	Winner  *string `json:"winner"`
	Reason  string  `json:"reason"`
}

func gameOverFrame(m *registry.Match, reason string) gameOverPayload {
	return gameOverPayload{Type: "GAME_OVER", MatchID: m.MatchID, Winner: m.Winner, Reason: reason}
}

// persistMatchCompletion implements spec.md §4.6 persistMatchCompletion.
func (s *Service) persistMatchCompletion(ctx context.Context, m *registry.Match, winner *string, reason string) {
	now := time.Now()
	m.Status = registry.StatusCompleted
	m.Winner = winner
	m.Reason = reason
	m.CompletedAt = now

	var transcriptHash string
	var entries []transcript.Entry
	if m.Orchestrator != nil {
		if h, err := m.Orchestrator.GetTranscriptHash(ctx); err == nil {
			transcriptHash = h
		}
		entries, _ = m.Orchestrator.GetTranscript(ctx)
	}

	if err := s.store.UpdateMatchCompletion(ctx, m.MatchID, string(registry.StatusCompleted), winner, &reason, transcriptHash, sql.NullTime{Time: now, Valid: true}); err != nil {
		log.Printf("[LIFECYCLE] failed to persist completion for %s: %v", m.MatchID, err)
	}
	for _, p := range m.Players {
		_ = s.cache.ClearActiveMatch(ctx, p)
	}

	if m.Orchestrator != nil {
		s.updatePlayerStats(ctx, m, winner)
	}

	if m.StakeWei != "0" && s.cfg.SettlementEnabled {
		txHash, err := s.settlement.ProposeSettlement(ctx, m.MatchID, winner, entries)
		if err != nil {
			log.Printf("[LIFECYCLE] settlement proposeSettlement failed for %s: %v", m.MatchID, err)
		} else {
			if err := s.store.SetSettlementTxHash(ctx, m.MatchID, txHash); err != nil {
				log.Printf("[LIFECYCLE] failed to persist settlement tx hash for %s: %v", m.MatchID, err)
			}
			matchID := m.MatchID
			s.settlement.ScheduleFinalization(matchID, s.cfg.DisputeWindowMs, func() {
				if _, err := s.settlement.FinalizeSettlement(context.Background(), matchID); err != nil {
					log.Printf("[LIFECYCLE] settlement finalizeSettlement failed for %s: %v", matchID, err)
				}
			})
		}
	}

	if r := s.Room(m.MatchID); r != nil {
		r.BroadcastToAll(gameOverFrame(m, reason))
	}
	s.evictRoom(m.MatchID)
	if m.Orchestrator != nil {
		m.Orchestrator.Close()
	}
}

// updatePlayerStats applies Elo (two-player matches) or plain counter
// updates (single-player matches), per spec.md §4.6 step 3/4.
func (s *Service) updatePlayerStats(ctx context.Context, m *registry.Match, winner *string) {
	if len(m.Players) < 2 {
		p, err := s.store.GetPlayer(ctx, m.Players[0])
		if err != nil {
			return
		}
		p.PlayerAddress = m.Players[0]
		p.GamesPlayed++
		if winner != nil {
			p.GamesWon++
		}
		p.UpdatedAt = time.Now()
		_ = s.store.UpsertPlayer(ctx, p)
		return
	}

	a, b := m.Players[0], m.Players[1]
	playerA, errA := s.store.GetPlayer(ctx, a)
	playerB, errB := s.store.GetPlayer(ctx, b)
	if errA != nil || errB != nil {
		return
	}
	pgA, _ := s.store.GetPlayerGame(ctx, a, m.GameID)
	pgB, _ := s.store.GetPlayerGame(ctx, b, m.GameID)

	outcome := elo.Draw
	switch {
	case winner != nil && *winner == a:
		outcome = elo.WinA
	case winner != nil && *winner == b:
		outcome = elo.WinB
	}

	newOverallA, newOverallB := elo.Calculate(playerA.Rating, playerB.Rating, playerA.GamesPlayed, playerB.GamesPlayed, outcome)
	newGameA, newGameB := elo.Calculate(pgA.Rating, pgB.Rating, pgA.GamesPlayed, pgB.GamesPlayed, outcome)

	now := time.Now()
	playerA.PlayerAddress, playerB.PlayerAddress = a, b
	playerA.Rating, playerB.Rating = newOverallA, newOverallB
	playerA.GamesPlayed++
	playerB.GamesPlayed++
	pgA.PlayerAddress, pgA.GameID = a, m.GameID
	pgB.PlayerAddress, pgB.GameID = b, m.GameID
	pgA.Rating, pgB.Rating = newGameA, newGameB
	pgA.GamesPlayed++
	pgB.GamesPlayed++

	switch {
	case winner == nil:
		playerA.GamesDrawn++
		playerB.GamesDrawn++
		pgA.GamesDrawn++
		pgB.GamesDrawn++
	case *winner == a:
		playerA.GamesWon++
		pgA.GamesWon++
		creditEarnings(playerA, m.StakeWei)
	case *winner == b:
		playerB.GamesWon++
		pgB.GamesWon++
		creditEarnings(playerB, m.StakeWei)
	}

	playerA.UpdatedAt, playerB.UpdatedAt = now, now
	pgA.UpdatedAt, pgB.UpdatedAt = now, now

	_ = s.store.UpsertPlayer(ctx, playerA)
	_ = s.store.UpsertPlayer(ctx, playerB)
	_ = s.store.UpsertPlayerGame(ctx, pgA)
	_ = s.store.UpsertPlayerGame(ctx, pgB)
}

// creditEarnings adds the opponent's stake (the winner's net gain) to
// lifetime earnings, for staked non-draw matches.
func creditEarnings(p *store.PlayerRecord, stakeWei string) {
	if stakeWei == "0" {
		return
	}
	stake, ok := new(big.Int).SetString(stakeWei, 10)
	if !ok {
		return
	}
	current, ok := new(big.Int).SetString(p.LifetimeEarningsWei, 10)
	if !ok {
		current = big.NewInt(0)
	}
	p.LifetimeEarningsWei = new(big.Int).Add(current, stake).String()
}

// RestoreActiveMatches implements spec.md §4.6 restoreActiveMatches, the
// Recovery Driver's entry point into MLS (internal/recovery calls this at
// boot before SC.ReconcileOnStartup).
func (s *Service) RestoreActiveMatches(ctx context.Context) error {
	records, err := s.store.ListActiveMatches(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: restore: %w", err)
	}

	for _, rec := range records {
		m := &registry.Match{
			MatchID:        rec.MatchID,
			GameID:         rec.GameID,
			Players:        []string(rec.Players),
			Status:         registry.Status(rec.Status),
			StakeWei:       rec.StakeWei,
			CreatedAt:      rec.CreatedAt,
			LastActivityAt: rec.LastActivityAt,
		}
		if rec.InviteCode.Valid {
			m.InviteCode = rec.InviteCode.String
		}

		if m.Status == registry.StatusActive {
			module, ok := s.games.Get(rec.GameID)
			if !ok {
				log.Printf("[LIFECYCLE] restore: unknown gameId %q for match %s, skipping", rec.GameID, rec.MatchID)
				continue
			}
			moves, err := s.store.ListMoves(ctx, rec.MatchID)
			if err != nil {
				log.Printf("[LIFECYCLE] restore: failed to load moves for %s: %v", rec.MatchID, err)
				continue
			}
			persisted := make([]orchestrator.PersistedMove, 0, len(moves))
			for _, mv := range moves {
				var action gmc.Action
				if err := json.Unmarshal([]byte(mv.Action), &action); err != nil {
					log.Printf("[LIFECYCLE] restore: bad action JSON for %s seq %d: %v", rec.MatchID, mv.Sequence, err)
					continue
				}
				persisted = append(persisted, orchestrator.PersistedMove{
					PlayerAddress:     mv.PlayerAddress,
					Action:            action,
					ExpectedStateHash: mv.StateHash,
				})
			}
			orch, err := orchestrator.FromReplay(rec.MatchID, module, m.Players, seedFromMatchID(rec.MatchID), nil, persisted)
			if err != nil {
				log.Printf("[LIFECYCLE] restore: replay mismatch for %s: %v", rec.MatchID, err)
				continue
			}
			m.Orchestrator = orch
			if len(moves) > 0 {
				m.LastActivityAt = moves[len(moves)-1].CreatedAt
			}

			if terminal, _ := orch.IsTerminal(ctx); terminal {
				outcome, _ := orch.GetOutcome(ctx)
				s.registry.Insert(m)
				s.persistMatchCompletion(ctx, m, outcome.Winner, outcome.Reason)
				continue
			}
		}

		s.registry.Insert(m)
		for _, p := range m.Players {
			_ = s.cache.SetActiveMatch(ctx, p, cache.ActiveMatch{MatchID: m.MatchID, GameID: m.GameID, StakeWei: m.StakeWei})
		}
	}
	return nil
}

func generateInviteCode() string {
	return uuid.NewString()[:8]
}
