// Package session implements the Session State Machine (SSM, spec.md
// §4.7): one instance per duplex connection to /session/game/<matchId>,
// carrying it through UNAUTH -> AUTH -> DEPOSIT_WAIT/PLAYING -> ENDED.
//
// Grounded on internal/ws/pool_handler.go's HandleWebSocket/readPump/
// handleMessage dispatch shape (upgrade, per-connection read loop, typed
// message switch) and on internal/game/idle_worker.go's Redis
// sorted-set scheduling idiom, narrowed here to the deposit-gating poller
// spec.md §4.7 describes. Unlike the teacher's single pool.Hub keyed by
// gameId, fanout is delegated to internal/room (one Room per match) and
// match mutation to internal/lifecycle (one call per inbound frame) —
// this package owns only the connection's authentication state, its
// move timer, and the per-match deposit poller.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dorkfun/match-core/internal/apperr"
	"github.com/dorkfun/match-core/internal/auth"
	"github.com/dorkfun/match-core/internal/cache"
	"github.com/dorkfun/match-core/internal/config"
	"github.com/dorkfun/match-core/internal/gmc"
	"github.com/dorkfun/match-core/internal/lifecycle"
	"github.com/dorkfun/match-core/internal/registry"
	"github.com/dorkfun/match-core/internal/room"
	"github.com/dorkfun/match-core/internal/settlement"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	helloTimeout = 10 * time.Second
	pingInterval = 30 * time.Second // mirrors internal/room's writePump ticker
	pongWait     = 10 * time.Second
)

// Frame is the wire envelope every inbound/outbound message uses
// (spec.md §6.2).
type Frame struct {
	Type      string          `json:"type"`
	MatchID   string          `json:"matchId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Sequence  int             `json:"sequence,omitempty"`
	PrevHash  string          `json:"prevHash,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type helloPayload struct {
	Token     string `json:"token"`
	PlayerID  string `json:"playerId"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

type actionCommitPayload struct {
	Action gmc.Action `json:"action"`
}

type chatPayload struct {
	Message string `json:"message"`
}

type gameStatePayload struct {
	Observation  gmc.Observation `json:"observation"`
	YourTurn     bool            `json:"yourTurn"`
	LegalActions []gmc.Action    `json:"legalActions,omitempty"`
}

type stepResultPayload struct {
	LastAction gmc.Action      `json:"lastAction"`
	LastPlayer string          `json:"lastPlayer"`
	Observation gmc.Observation `json:"observation"`
	NextPlayer string          `json:"nextPlayer,omitempty"`
}

type depositRequiredPayload struct {
	StakeWei       string `json:"stakeWei"`
	MatchIDBytes32 string `json:"matchIdBytes32"`
	EscrowAddress  string `json:"escrowAddress"`
}

type depositsConfirmedPayload struct {
	StakeWei string `json:"stakeWei"`
}

type syncResponsePayload struct {
	YourTurn      bool         `json:"yourTurn"`
	CurrentPlayer string       `json:"currentPlayer,omitempty"`
	LegalActions  []gmc.Action `json:"legalActions,omitempty"`
	MatchStatus   string       `json:"matchStatus"`
}

type chatBroadcastPayload struct {
	Sender      string `json:"sender"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
}

type errorPayload struct {
	Error string `json:"error"`
}

type playerDisconnectedPayload struct {
	Player string `json:"player"`
}

func marshalPayload(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// Service wires the SSM to its collaborators: MLS for every match
// mutation, the cache for token/session lookups, the registry for
// read-only match lookups, the game registry for per-game move-timeout
// metadata, and the settlement collaborator for the deposit-poll check.
type Service struct {
	cfg        *config.Config
	lifecycle  *lifecycle.Service
	cache      *cache.Cache
	registry   *registry.Registry
	games      *gmc.Registry
	settlement settlement.Coordinator

	connsMu sync.Mutex
	conns   map[string]map[string]*connSession // matchId -> playerId -> conn

	depositMu        sync.Mutex
	depositDeadlines map[string]time.Time // matchId -> poll-expiry, present iff a poller is running
}

func New(cfg *config.Config, lc *lifecycle.Service, ca *cache.Cache, reg *registry.Registry, games *gmc.Registry, sc settlement.Coordinator) *Service {
	return &Service{
		cfg:              cfg,
		lifecycle:        lc,
		cache:            ca,
		registry:         reg,
		games:            games,
		settlement:       sc,
		conns:            make(map[string]map[string]*connSession),
		depositDeadlines: make(map[string]time.Time),
	}
}

// HandleConnection upgrades the request and runs one SSM instance to
// completion; it blocks until the connection closes.
func (s *Service) HandleConnection(w http.ResponseWriter, r *http.Request, matchID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SESSION] upgrade error for match %s: %v", matchID, err)
		return
	}
	cs := &connSession{svc: s, conn: conn, matchID: matchID}
	cs.run()
}

func (s *Service) registerConn(matchID, playerID string, cs *connSession) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.conns[matchID] == nil {
		s.conns[matchID] = make(map[string]*connSession)
	}
	s.conns[matchID][playerID] = cs
}

func (s *Service) unregisterConn(matchID, playerID string, cs *connSession) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if cur, ok := s.conns[matchID][playerID]; ok && cur == cs {
		delete(s.conns[matchID], playerID)
		if len(s.conns[matchID]) == 0 {
			delete(s.conns, matchID)
		}
	}
}

func (s *Service) connFor(matchID, playerID string) (*connSession, bool) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	cs, ok := s.conns[matchID][playerID]
	return cs, ok
}

func (s *Service) connsForMatch(matchID string) []*connSession {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	out := make([]*connSession, 0, len(s.conns[matchID]))
	for _, cs := range s.conns[matchID] {
		out = append(out, cs)
	}
	return out
}

// armTimerFor reaches into a specific connection (possibly not the one
// handling the current frame) to arm its move timer, since the timer
// belongs to whichever session delivered GAME_STATE/STEP_RESULT to that
// player (spec.md §4.7's move-timer rule).
func (s *Service) armTimerFor(matchID, playerID string, m *registry.Match) {
	if playerID == "" {
		return
	}
	if cs, ok := s.connFor(matchID, playerID); ok {
		cs.armMoveTimer(m)
	}
}

// RunDepositPollLoop runs the shared deposit-poll worker until ctx is
// canceled; cmd/server starts exactly one of these per process.
func (s *Service) RunDepositPollLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.DepositPollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollDeposits(ctx)
		}
	}
}

func (s *Service) pollDeposits(ctx context.Context) {
	due, err := s.cache.DueDepositPolls(ctx, time.Now())
	if err != nil {
		log.Printf("[SESSION] failed to fetch due deposit polls: %v", err)
		return
	}
	for _, matchID := range due {
		s.pollOneDeposit(ctx, matchID)
	}
}

func (s *Service) pollOneDeposit(ctx context.Context, matchID string) {
	m, ok := s.registry.Get(matchID)
	if !ok || m.Status != registry.StatusWaiting {
		s.clearDepositDeadline(matchID)
		return
	}

	funded, err := s.settlement.IsFullyFunded(ctx, matchID)
	if err != nil {
		log.Printf("[SESSION] isFullyFunded check failed for %s: %v", matchID, err)
		s.rescheduleDepositPoll(ctx, matchID)
		return
	}
	if funded {
		s.clearDepositDeadline(matchID)
		if _, err := s.lifecycle.ActivateStakedMatch(ctx, matchID); err != nil {
			log.Printf("[SESSION] activateStakedMatch failed for %s: %v", matchID, err)
			return
		}
		m, ok = s.registry.Get(matchID)
		if !ok {
			return
		}
		room := s.lifecycle.Room(matchID)
		room.BroadcastToAll(Frame{
			Type:      "DEPOSITS_CONFIRMED",
			MatchID:   matchID,
			Timestamp: time.Now().Unix(),
			Payload:   marshalPayload(depositsConfirmedPayload{StakeWei: m.StakeWei}),
		})
		for _, cs := range s.connsForMatch(matchID) {
			_ = cs.sendGameState(m)
		}
		return
	}

	deadline, hasDeadline := s.depositDeadline(matchID)
	if hasDeadline && time.Now().After(deadline) {
		room := s.lifecycle.Room(matchID)
		room.BroadcastToAll(Frame{
			Type:      "ERROR",
			MatchID:   matchID,
			Timestamp: time.Now().Unix(),
			Payload:   marshalPayload(errorPayload{Error: "deposit timeout"}),
		})
		s.lifecycle.CancelWaitingMatch(ctx, matchID, "deposit timeout")
		s.clearDepositDeadline(matchID)
		return
	}
	s.rescheduleDepositPoll(ctx, matchID)
}

func (s *Service) rescheduleDepositPoll(ctx context.Context, matchID string) {
	interval := time.Duration(s.cfg.DepositPollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if err := s.cache.ScheduleDepositPoll(ctx, matchID, time.Now().Add(interval)); err != nil {
		log.Printf("[SESSION] failed to reschedule deposit poll for %s: %v", matchID, err)
	}
}

// ensureDepositPollStarted arranges the first poll for matchID if no
// poller is running yet; spec.md §4.7 requires exactly one per-match
// poller regardless of how many connections enter DEPOSIT_WAIT.
func (s *Service) ensureDepositPollStarted(ctx context.Context, matchID string) {
	timeout := time.Duration(s.cfg.DepositTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	s.depositMu.Lock()
	_, exists := s.depositDeadlines[matchID]
	if !exists {
		s.depositDeadlines[matchID] = time.Now().Add(timeout)
	}
	s.depositMu.Unlock()
	if !exists {
		s.rescheduleDepositPoll(ctx, matchID)
	}
}

func (s *Service) depositDeadline(matchID string) (time.Time, bool) {
	s.depositMu.Lock()
	defer s.depositMu.Unlock()
	t, ok := s.depositDeadlines[matchID]
	return t, ok
}

func (s *Service) clearDepositDeadline(matchID string) {
	s.depositMu.Lock()
	delete(s.depositDeadlines, matchID)
	s.depositMu.Unlock()
}

// connSession is one live connection's SSM instance.
type connSession struct {
	svc      *Service
	conn     *websocket.Conn
	matchID  string
	playerID string
	client   *room.Client

	timerMu sync.Mutex
	timer   *time.Timer
}

func (cs *connSession) run() {
	defer cs.cleanup()

	cs.conn.SetReadLimit(65536)
	cs.conn.SetReadDeadline(time.Now().Add(helloTimeout))

	_, data, err := cs.conn.ReadMessage()
	if err != nil {
		return
	}
	var hello Frame
	if err := json.Unmarshal(data, &hello); err != nil || hello.Type != "HELLO" {
		cs.sendError("expected HELLO")
		return
	}
	if err := cs.authenticate(hello); err != nil {
		cs.sendError(err.Error())
		return
	}

	cs.svc.registerConn(cs.matchID, cs.playerID, cs)
	cs.client = room.NewClient(cs.playerID, cs.conn)
	cs.svc.lifecycle.Room(cs.matchID).AddPlayer(cs.client)

	cs.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	cs.conn.SetPongHandler(func(string) error {
		cs.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		return nil
	})

	if err := cs.enterMatchState(); err != nil {
		cs.sendError(err.Error())
		return
	}

	for {
		_, data, err := cs.conn.ReadMessage()
		if err != nil {
			break
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			cs.sendError("malformed frame")
			continue
		}
		cs.handleFrame(f)
	}
}

// cleanup runs once per connection regardless of how run() exits: it
// cancels the move timer, drops the connection from the room and the
// service's lookup table, and — for ACTIVE matches — announces the
// disconnect without ending the match (spec.md §5 "Cancellation").
func (cs *connSession) cleanup() {
	cs.cancelMoveTimer()
	cs.svc.unregisterConn(cs.matchID, cs.playerID, cs)
	if cs.playerID != "" {
		room := cs.svc.lifecycle.Room(cs.matchID)
		room.RemovePlayer(cs.playerID)
		if m, ok := cs.svc.registry.Get(cs.matchID); ok && m.Status == registry.StatusActive {
			room.BroadcastToAll(Frame{
				Type:      "PLAYER_DISCONNECTED",
				MatchID:   cs.matchID,
				Timestamp: time.Now().Unix(),
				Payload:   marshalPayload(playerDisconnectedPayload{Player: cs.playerID}),
			})
		}
	}
	cs.conn.Close()
}

// authenticate implements spec.md §4.7's UNAUTH -> AUTH transition via
// either the single-use token path or the signature-reconnection path.
func (cs *connSession) authenticate(f Frame) error {
	var p helloPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return apperr.New(apperr.KindInvalidRequest, "malformed HELLO payload")
	}

	ctx := context.Background()
	if p.Token != "" {
		matchID, playerID, err := cs.svc.cache.ConsumeWSToken(ctx, p.Token)
		if err != nil {
			return apperr.New(apperr.KindTokenConsumed, err.Error())
		}
		if matchID != cs.matchID {
			return apperr.New(apperr.KindInvalidRequest, "token does not belong to this match")
		}
		cs.playerID = playerID
		_ = cs.svc.cache.RegisterSession(ctx, cs.matchID, playerID)
		return nil
	}

	if p.PlayerID == "" || p.Signature == "" {
		return apperr.New(apperr.KindInvalidRequest, "HELLO requires either a token or playerId+signature")
	}
	if err := auth.Verify(p.PlayerID, p.Signature, p.Timestamp, time.Now()); err != nil {
		return err
	}
	hasSession, err := cs.svc.cache.HasSession(ctx, cs.matchID, p.PlayerID)
	if err != nil {
		return apperr.Wrap(apperr.KindCacheUnavailable, err)
	}
	if !hasSession {
		return apperr.New(apperr.KindInvalidSignature, "no live session for this match; reconnect with a fresh token")
	}
	cs.playerID = p.PlayerID
	return nil
}

// enterMatchState implements the AUTH -> DEPOSIT_WAIT/PLAYING branch.
func (cs *connSession) enterMatchState() error {
	m, ok := cs.svc.registry.Get(cs.matchID)
	if !ok {
		return apperr.New(apperr.KindMatchNotFound, cs.matchID)
	}
	if m.StakeWei != "0" && m.Status == registry.StatusWaiting {
		return cs.sendDepositRequired(m)
	}
	return cs.sendGameState(m)
}

func (cs *connSession) sendDepositRequired(m *registry.Match) error {
	matchIDBytes32, err := settlement.MatchIDToBytes32(m.MatchID)
	if err != nil {
		return fmt.Errorf("session: match id shaping: %w", err)
	}
	cs.send(Frame{
		Type:    "DEPOSIT_REQUIRED",
		MatchID: cs.matchID,
		Payload: marshalPayload(depositRequiredPayload{
			StakeWei:       m.StakeWei,
			MatchIDBytes32: matchIDBytes32,
			EscrowAddress:  cs.svc.cfg.EscrowAddress,
		}),
	})
	cs.svc.ensureDepositPollStarted(context.Background(), cs.matchID)
	return nil
}

// sendGameState sends the personalized GAME_STATE for m to this
// connection and arms the move timer if it is this player's turn.
func (cs *connSession) sendGameState(m *registry.Match) error {
	if m.Orchestrator == nil {
		return apperr.New(apperr.KindMatchNotFound, "match has no active state")
	}
	ctx := context.Background()
	obs, err := m.Orchestrator.GetObservation(ctx, cs.playerID)
	if err != nil {
		return err
	}
	current, err := m.Orchestrator.GetCurrentPlayer(ctx)
	if err != nil {
		return err
	}
	yourTurn := current == cs.playerID
	var legal []gmc.Action
	if yourTurn {
		legal, _ = m.Orchestrator.GetLegalActions(ctx, cs.playerID)
	}
	cs.send(Frame{
		Type:    "GAME_STATE",
		MatchID: cs.matchID,
		Payload: marshalPayload(gameStatePayload{Observation: obs, YourTurn: yourTurn, LegalActions: legal}),
	})
	if yourTurn {
		cs.armMoveTimer(m)
	} else {
		cs.cancelMoveTimer()
	}
	return nil
}

// armMoveTimer implements spec.md §4.7's move-timer rule. A game module
// may override the server default via gmc.Metadata.MoveTimeoutOverride;
// an explicit override of 0 opts the game out of a per-move timer
// entirely (stale-match cleanup still reclaims an abandoned match).
func (cs *connSession) armMoveTimer(m *registry.Match) {
	module, ok := cs.svc.games.Get(m.GameID)
	if !ok {
		return
	}
	timeoutMs := cs.svc.cfg.DefaultMoveTimeoutMs
	if override := module.Metadata().MoveTimeoutOverride; override != nil {
		timeoutMs = *override
	}
	if timeoutMs <= 0 {
		cs.cancelMoveTimer()
		return
	}

	matchID, playerID := m.MatchID, cs.playerID
	cs.timerMu.Lock()
	defer cs.timerMu.Unlock()
	if cs.timer != nil {
		cs.timer.Stop()
	}
	cs.timer = time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
		cs.onMoveTimeout(matchID, playerID)
	})
}

func (cs *connSession) cancelMoveTimer() {
	cs.timerMu.Lock()
	defer cs.timerMu.Unlock()
	if cs.timer != nil {
		cs.timer.Stop()
		cs.timer = nil
	}
}

// onMoveTimeout fires on the timer goroutine; it re-checks that the
// timed-out player is still current before forfeiting, since a move may
// have landed concurrently.
func (cs *connSession) onMoveTimeout(matchID, playerID string) {
	m, ok := cs.svc.registry.Get(matchID)
	if !ok || m.Status != registry.StatusActive || m.Orchestrator == nil {
		return
	}
	current, err := m.Orchestrator.GetCurrentPlayer(context.Background())
	if err != nil || current != playerID {
		return
	}
	_ = cs.svc.lifecycle.ForfeitMatch(context.Background(), matchID, playerID)
}

func (cs *connSession) handleFrame(f Frame) {
	switch f.Type {
	case "ACTION_COMMIT":
		cs.handleActionCommit(f)
	case "FORFEIT":
		cs.handleForfeit()
	case "SYNC_REQUEST":
		cs.handleSyncRequest()
	case "CHAT":
		cs.handleChat(f)
	default:
		cs.sendError(fmt.Sprintf("unknown frame type %q", f.Type))
	}
}

func (cs *connSession) handleActionCommit(f Frame) {
	var p actionCommitPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		cs.sendError("invalid ACTION_COMMIT payload")
		return
	}
	cs.cancelMoveTimer()

	res := cs.svc.lifecycle.SubmitMove(context.Background(), cs.matchID, cs.playerID, p.Action)
	if res.Error != nil {
		cs.sendError(res.Error.Error())
		return
	}
	cs.broadcastStepResult(p.Action, res)
}

// broadcastStepResult sends every connected player its own personalized
// STEP_RESULT (the observation may redact opponent-private data) and
// arms the next player's move timer. On a terminal move it leaves the
// GAME_OVER broadcast to MLS, which emits it once completion persists.
func (cs *connSession) broadcastStepResult(action gmc.Action, res lifecycle.SubmitMoveResult) {
	m, ok := cs.svc.registry.Get(cs.matchID)
	if !ok {
		return
	}
	room := cs.svc.lifecycle.Room(cs.matchID)

	var nextPlayer string
	if !res.Terminal && m.Orchestrator != nil {
		nextPlayer, _ = m.Orchestrator.GetCurrentPlayer(context.Background())
	}

	for _, playerID := range m.Players {
		var obs gmc.Observation
		if m.Orchestrator != nil {
			obs, _ = m.Orchestrator.GetObservation(context.Background(), playerID)
		}
		room.SendToPlayer(playerID, Frame{
			Type:    "STEP_RESULT",
			MatchID: cs.matchID,
			Payload: marshalPayload(stepResultPayload{
				LastAction:  action,
				LastPlayer:  cs.playerID,
				Observation: obs,
				NextPlayer:  nextPlayer,
			}),
		})
	}

	if !res.Terminal {
		cs.svc.armTimerFor(cs.matchID, nextPlayer, m)
	}
}

func (cs *connSession) handleForfeit() {
	cs.cancelMoveTimer()
	if err := cs.svc.lifecycle.ForfeitMatch(context.Background(), cs.matchID, cs.playerID); err != nil {
		cs.sendError(err.Error())
	}
}

// handleSyncRequest implements the purely advisory SYNC_REQUEST/
// SYNC_RESPONSE pair (spec.md §4.7).
func (cs *connSession) handleSyncRequest() {
	m, ok := cs.svc.registry.Get(cs.matchID)
	if !ok {
		cs.sendError("match not found")
		return
	}
	payload := syncResponsePayload{MatchStatus: string(m.Status)}
	if m.Orchestrator != nil {
		ctx := context.Background()
		current, _ := m.Orchestrator.GetCurrentPlayer(ctx)
		payload.CurrentPlayer = current
		payload.YourTurn = current == cs.playerID
		if payload.YourTurn {
			payload.LegalActions, _ = m.Orchestrator.GetLegalActions(ctx, cs.playerID)
		}
	}
	cs.send(Frame{Type: "SYNC_RESPONSE", MatchID: cs.matchID, Payload: marshalPayload(payload)})
}

// handleChat re-broadcasts CHAT to the room; persistence is an external
// collaborator's responsibility, out of the core's scope.
func (cs *connSession) handleChat(f Frame) {
	var p chatPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		cs.sendError("invalid CHAT payload")
		return
	}
	cs.svc.lifecycle.Room(cs.matchID).BroadcastToAll(Frame{
		Type:    "CHAT",
		MatchID: cs.matchID,
		Payload: marshalPayload(chatBroadcastPayload{Sender: cs.playerID, DisplayName: cs.playerID, Message: p.Message}),
	})
}

// send routes through the room once the connection is registered (so
// fanout discipline/back-pressure is uniform with broadcasts), falling
// back to a direct write for the pre-auth handshake.
func (cs *connSession) send(f Frame) {
	if f.Timestamp == 0 {
		f.Timestamp = time.Now().Unix()
	}
	if cs.playerID == "" {
		b, err := json.Marshal(f)
		if err != nil {
			return
		}
		_ = cs.conn.WriteMessage(websocket.TextMessage, b)
		return
	}
	cs.svc.lifecycle.Room(cs.matchID).SendToPlayer(cs.playerID, f)
}

func (cs *connSession) sendError(msg string) {
	cs.send(Frame{Type: "ERROR", MatchID: cs.matchID, Payload: marshalPayload(errorPayload{Error: msg})})
}
