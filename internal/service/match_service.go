package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/olivmath/stealth-battleship-sub001/internal/aggregate"
	"github.com/olivmath/stealth-battleship-sub001/internal/auth"
	"github.com/olivmath/stealth-battleship-sub001/internal/battle"
	"github.com/olivmath/stealth-battleship-sub001/internal/bot"
	"github.com/olivmath/stealth-battleship-sub001/internal/chain"
	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
	"github.com/olivmath/stealth-battleship-sub001/internal/logger"
	"github.com/olivmath/stealth-battleship-sub001/internal/matchmaking"
	"github.com/olivmath/stealth-battleship-sub001/internal/metrics"
	"github.com/olivmath/stealth-battleship-sub001/internal/middleware"
	"github.com/olivmath/stealth-battleship-sub001/internal/repository"
	"github.com/olivmath/stealth-battleship-sub001/internal/session"
	"github.com/olivmath/stealth-battleship-sub001/internal/zk"
)

// Dispatcher delivers an outbound event to a connected identity. Returns
// false when the identity has no live connection; events to absent players
// are dropped, the reconnect snapshot covers them.
type Dispatcher interface {
	Send(to, eventType string, payload map[string]any) bool
}

// Config carries the protocol timing knobs.
type Config struct {
	TurnTimeout     time.Duration
	DefenderTimeout time.Duration
	DisconnectGrace time.Duration
}

// Deps are the collaborators the match service orchestrates.
type Deps struct {
	Registry   *session.Registry
	Queue      *matchmaking.Queue
	Gate       *zk.Gate
	Verifier   *auth.Verifier
	Prover     aggregate.Prover
	Sink       repository.Sink
	Anchor     chain.Anchor
	Alerter    bot.Alerter
	Limiter    *middleware.AttackLimiter
	Dispatcher Dispatcher
}

// MatchService is the protocol referee: it authenticates every inbound
// action, runs the proof gate, applies the state machine transition under
// the match lock, then delivers events and fires side effects off the
// lock.
type MatchService struct {
	cfg      Config
	engine   *battle.Engine
	agg      *aggregate.Aggregator
	registry *session.Registry
	queue    *matchmaking.Queue
	gate     *zk.Gate
	verifier *auth.Verifier
	prover   aggregate.Prover
	sink     repository.Sink
	anchor   chain.Anchor
	alerter  bot.Alerter
	limiter  *middleware.AttackLimiter
	dispatch Dispatcher
	log      *slog.Logger
}

func NewMatchService(cfg Config, deps Deps) *MatchService {
	return &MatchService{
		cfg:      cfg,
		engine:   battle.NewEngine(battle.Config{TurnTimeout: cfg.TurnTimeout, DefenderTimeout: cfg.DefenderTimeout}),
		agg:      aggregate.NewAggregator(),
		registry: deps.Registry,
		queue:    deps.Queue,
		gate:     deps.Gate,
		verifier: deps.Verifier,
		prover:   deps.Prover,
		sink:     deps.Sink,
		anchor:   deps.Anchor,
		alerter:  deps.Alerter,
		limiter:  deps.Limiter,
		dispatch: deps.Dispatcher,
		log:      logger.With("component", "match_service"),
	}
}

// HandleConnect rebinds the identity's transport handle and, when a match
// is in flight, cancels the disconnect grace timer and replays a state
// snapshot.
func (s *MatchService) HandleConnect(publicKey, connID string) {
	m, ok := s.registry.ByPlayer(publicKey)
	if !ok {
		return
	}

	m.Lock()
	if p := m.ParticipantByKey(publicKey); p != nil {
		p.ConnID = connID
	}
	graceWasArmed := m.GraceTimer.Armed()
	m.GraceTimer.Cancel()
	snapshot := buildSnapshot(m, publicKey)
	opponent := ""
	if opp := m.OpponentOf(publicKey); opp != nil {
		opponent = opp.PublicKey
	}
	m.Unlock()

	s.dispatch.Send(publicKey, EvMatchState, snapshot)
	if graceWasArmed && opponent != "" {
		s.dispatch.Send(opponent, EvOpponentReconnected, map[string]any{})
	}
	s.log.Info("player reconnected", "player", shortKey(publicKey), "match_id", m.ID)
}

// HandleDisconnect drops the player from the queue and, for an active
// match, starts the reconnect grace timer. Only the current transport
// handle may trigger this; a stale socket closing after a reconnect is
// ignored.
func (s *MatchService) HandleDisconnect(publicKey, connID string) {
	s.queue.Cancel(publicKey)
	metrics.QueueDepth.Set(float64(s.queue.Len()))

	m, ok := s.registry.ByPlayer(publicKey)
	if !ok {
		return
	}

	m.Lock()
	p := m.ParticipantByKey(publicKey)
	if p == nil || p.ConnID != connID {
		m.Unlock()
		return
	}

	switch m.Status {
	case domain.StatusWaiting:
		// friend match creator left before anyone joined
		id := m.ID
		m.Unlock()
		s.registry.Destroy(id)
		metrics.ActiveMatches.Set(float64(s.registry.Count()))
		return
	case domain.StatusPlacing, domain.StatusBattle:
		m.GraceTimer.Arm(s.cfg.DisconnectGrace, func(gen uint64) {
			s.onGraceTimeout(m, publicKey, gen)
		})
		opponent := ""
		if opp := m.OpponentOf(publicKey); opp != nil {
			opponent = opp.PublicKey
		}
		grace := s.cfg.DisconnectGrace
		m.Unlock()

		if opponent != "" {
			s.dispatch.Send(opponent, EvOpponentDisconnected, map[string]any{
				"grace_ms": grace.Milliseconds(),
			})
		}
		return
	}
	m.Unlock()
}

// HandleMessage is the single entry point for inbound socket frames.
func (s *MatchService) HandleMessage(publicKey, connID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.sendError(publicKey, "malformed message")
		return
	}

	if err := s.verifier.VerifyAction(publicKey, env.Type, string(env.Payload), env.Timestamp, env.Signature); err != nil {
		metrics.AuthFailures.WithLabelValues(authFailCause(err)).Inc()
		s.sendError(publicKey, "signature rejected: "+err.Error())
		return
	}

	switch env.Type {
	case ActionRequestMatch:
		s.handleRequestMatch(publicKey, connID, env.Payload)
	case ActionCancelSearch:
		s.handleCancelSearch(publicKey)
	case ActionCreateFriend:
		s.handleCreateFriend(publicKey, connID, env.Payload)
	case ActionJoinFriend:
		s.handleJoinFriend(publicKey, connID, env.Payload)
	case ActionPlacementReady:
		s.handlePlacement(publicKey, env.Payload)
	case ActionAttack:
		s.handleAttack(publicKey, env.Payload)
	case ActionShotResult:
		s.handleShotResult(publicKey, env.Payload)
	case ActionForfeit:
		s.handleForfeit(publicKey)
	case ActionReveal:
		s.handleReveal(publicKey, env.Payload)
	default:
		s.sendError(publicKey, "unknown action: "+env.Type)
	}
}

func (s *MatchService) handleRequestMatch(publicKey, connID string, payload json.RawMessage) {
	var p RequestMatchPayload
	if err := json.Unmarshal(payload, &p); err != nil || !validGridSize(p.GridSize) {
		s.sendError(publicKey, "invalid grid size")
		return
	}

	res := s.queue.RequestMatch(publicKey, connID, p.GridSize)
	metrics.QueueDepth.Set(float64(s.queue.Len()))

	if res.Queued {
		s.dispatch.Send(publicKey, EvSearching, map[string]any{"grid_size": p.GridSize})
		return
	}
	s.announcePaired(res.Match)
}

func (s *MatchService) handleCancelSearch(publicKey string) {
	removed := s.queue.Cancel(publicKey)
	metrics.QueueDepth.Set(float64(s.queue.Len()))
	s.dispatch.Send(publicKey, EvSearchCancelled, map[string]any{"removed": removed})
}

func (s *MatchService) handleCreateFriend(publicKey, connID string, payload json.RawMessage) {
	var p RequestMatchPayload
	if err := json.Unmarshal(payload, &p); err != nil || !validGridSize(p.GridSize) {
		s.sendError(publicKey, "invalid grid size")
		return
	}

	m, code, err := s.queue.CreateFriend(publicKey, connID, p.GridSize)
	if err != nil {
		s.sendError(publicKey, err.Error())
		return
	}
	metrics.ActiveMatches.Set(float64(s.registry.Count()))
	s.dispatch.Send(publicKey, EvFriendCreated, map[string]any{
		"match_id":  m.ID,
		"code":      code,
		"grid_size": p.GridSize,
	})
}

func (s *MatchService) handleJoinFriend(publicKey, connID string, payload json.RawMessage) {
	var p JoinFriendPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Code == "" {
		s.sendError(publicKey, "invalid join code")
		return
	}

	m, err := s.queue.JoinFriend(p.Code, publicKey, connID)
	if err != nil {
		s.sendError(publicKey, err.Error())
		return
	}
	s.announcePaired(m)
}

// announcePaired tells both players placement may begin and records the
// match row.
func (s *MatchService) announcePaired(m *domain.Match) {
	m.Lock()
	p1 := m.Player1.PublicKey
	p2 := ""
	if m.Player2 != nil {
		p2 = m.Player2.PublicKey
	}
	payloadFor := func(opponent string) map[string]any {
		return map[string]any{
			"match_id":  m.ID,
			"grid_size": m.GridSize,
			"opponent":  opponent,
		}
	}
	m.Unlock()

	s.dispatch.Send(p1, EvMatched, payloadFor(p2))
	if p2 != "" {
		s.dispatch.Send(p2, EvMatched, payloadFor(p1))
	}

	metrics.ActiveMatches.Set(float64(s.registry.Count()))
	go s.sink.RecordMatchCreated(m)
}

func (s *MatchService) handlePlacement(publicKey string, payload json.RawMessage) {
	var p PlacementPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.BoardHash == "" || len(p.Proof) == 0 {
		s.sendError(publicKey, "invalid placement payload")
		return
	}

	m, ok := s.registry.ByPlayer(publicKey)
	if !ok {
		s.sendError(publicKey, "no active match")
		return
	}

	// verification runs off the match lock; ship sizes and the claimed
	// hash are all it reads
	valid, err := s.verifyProof(m, publicKey, zk.CircuitBoardValidity, func(ctx context.Context) (bool, error) {
		return s.gate.VerifyPlacement(ctx, m, p.BoardHash, p.Proof)
	}, len(p.Proof))
	if err != nil {
		s.sendError(publicKey, "proof verification unavailable")
		return
	}

	m.Lock()
	o := s.engine.SubmitPlacement(m, publicKey, p.BoardHash, p.Proof, valid)
	started := m.Status == domain.StatusBattle
	gridSize := m.GridSize
	s.applyTimerEffects(m, o)
	m.Unlock()

	if started {
		metrics.MatchesStarted.WithLabelValues(strconv.Itoa(gridSize)).Inc()
	}
	s.finishTransition(m, o)
}

func (s *MatchService) handleAttack(publicKey string, payload json.RawMessage) {
	var p AttackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(publicKey, "invalid attack payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	allowed := s.limiter.Allow(ctx, publicKey)
	cancel()
	if !allowed {
		s.sendError(publicKey, "attack rate limit exceeded")
		return
	}

	m, ok := s.registry.ByPlayer(publicKey)
	if !ok {
		s.sendError(publicKey, "no active match")
		return
	}

	m.Lock()
	o := s.engine.SubmitAttack(m, publicKey, p.Row, p.Col)
	s.applyTimerEffects(m, o)
	m.Unlock()

	s.finishTransition(m, o)
}

func (s *MatchService) handleShotResult(publicKey string, payload json.RawMessage) {
	var p ShotResultPayload
	if err := json.Unmarshal(payload, &p); err != nil || len(p.Proof) == 0 {
		s.sendError(publicKey, "invalid shot result payload")
		return
	}

	m, ok := s.registry.ByPlayer(publicKey)
	if !ok {
		s.sendError(publicKey, "no active match")
		return
	}

	// snapshot the defender's committed fingerprint under the lock; the
	// slow gate call itself runs off it
	m.Lock()
	boardHash := m.BoardHashOf(publicKey)
	m.Unlock()

	valid, err := s.verifyProof(m, publicKey, zk.CircuitShotProof, func(ctx context.Context) (bool, error) {
		return s.gate.VerifyShot(ctx, boardHash, p.Row, p.Col, p.Result, p.Proof)
	}, len(p.Proof))
	if err != nil {
		s.sendError(publicKey, "proof verification unavailable")
		return
	}

	reply := battle.ShotReply{
		Row:          p.Row,
		Col:          p.Col,
		Result:       p.Result,
		SunkShipName: p.SunkShipName,
		SunkShipSize: p.SunkShipSize,
	}

	m.Lock()
	o := s.engine.SubmitShotResult(m, publicKey, reply, valid)
	s.applyTimerEffects(m, o)
	m.Unlock()

	s.finishTransition(m, o)
}

func (s *MatchService) handleForfeit(publicKey string) {
	m, ok := s.registry.ByPlayer(publicKey)
	if !ok {
		return
	}

	m.Lock()
	o := s.engine.Forfeit(m, publicKey)
	s.applyTimerEffects(m, o)
	m.Unlock()

	s.finishTransition(m, o)
}

func (s *MatchService) handleReveal(publicKey string, payload json.RawMessage) {
	var p RevealPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.MatchID == "" {
		s.sendError(publicKey, "invalid reveal payload")
		return
	}

	m, ok := s.registry.Get(p.MatchID)
	if !ok {
		s.sendError(publicKey, "match not found")
		return
	}

	m.Lock()
	o, input := s.agg.SubmitReveal(m, publicKey, domain.Reveal{Ships: p.Ships, Nonce: p.Nonce})
	m.Unlock()

	s.deliver(o)
	if input != nil {
		go s.generateAggregate(m, *input)
	}
}

// generateAggregate runs the slow external proof generation. Failure is
// non-fatal: the adjudicated result already stands.
func (s *MatchService) generateAggregate(m *domain.Match, input aggregate.TurnsInput) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	proof, err := s.prover.GenerateTurnsProof(ctx, input)
	if err != nil {
		s.log.Error("turns proof generation failed", "match_id", input.MatchID, "error", err)
		go s.alerter.AlertAggregateFailure(input.MatchID, err)
		s.sendBoth(m, aggregate.EvRevealError, map[string]any{
			"message": "aggregate proof generation failed",
		})
		return
	}

	s.log.Info("turns proof generated", "match_id", input.MatchID, "proof_size", len(proof))
	s.sendBoth(m, aggregate.EvTurnsProofReady, map[string]any{
		"match_id": input.MatchID,
		"proof":    proof,
	})
}

// verifyProof times a gate call, records the audit row and the metric.
// err is only non-nil for infrastructure failures, which are not held
// against the player.
func (s *MatchService) verifyProof(m *domain.Match, playerKey string, circuit zk.Circuit, check func(context.Context) (bool, error), proofSize int) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	valid, err := check(ctx)
	elapsed := time.Since(start)

	metrics.ProofVerifyDuration.WithLabelValues(string(circuit)).Observe(elapsed.Seconds())
	if err != nil {
		s.log.Error("proof verification failed", "circuit", circuit, "match_id", m.ID, "error", err)
		return false, err
	}

	verdict := "invalid"
	if valid {
		verdict = "valid"
	}
	metrics.ProofVerifications.WithLabelValues(string(circuit), verdict).Inc()

	go s.sink.RecordProofLog(&repository.ProofLog{
		MatchID:   m.ID,
		PlayerKey: playerKey,
		Circuit:   string(circuit),
		ProofSize: proofSize,
		ElapsedMs: elapsed.Milliseconds(),
		Valid:     valid,
	})
	return valid, nil
}

// applyTimerEffects executes the timer effects of an outcome. Must run
// under the match lock so cancel-then-arm is atomic with the transition.
func (s *MatchService) applyTimerEffects(m *domain.Match, o battle.Outcome) {
	for _, e := range o.Effects {
		switch e.Kind {
		case battle.EffectCancelTurnTimer:
			m.TurnTimer.Cancel()
		case battle.EffectCancelDefenderTimer:
			m.DefenderTimer.Cancel()
		case battle.EffectCancelAllTimers:
			m.TurnTimer.Cancel()
			m.DefenderTimer.Cancel()
			m.GraceTimer.Cancel()
		case battle.EffectArmTurnTimer:
			m.TurnTimer.Arm(s.cfg.TurnTimeout, func(gen uint64) {
				s.onTurnTimeout(m, gen)
			})
		case battle.EffectArmDefenderTimer:
			m.DefenderTimer.Arm(s.cfg.DefenderTimeout, func(gen uint64) {
				s.onDefenderTimeout(m, gen)
			})
		}
	}
}

// finishTransition delivers events and dispatches the non-timer effects
// after the lock is dropped.
func (s *MatchService) finishTransition(m *domain.Match, o battle.Outcome) {
	s.deliver(o)

	for _, e := range o.Effects {
		switch e.Kind {
		case battle.EffectPersistAttack:
			go s.sink.RecordAttack(m.ID, e.Attack)
		case battle.EffectPersistMatchEnded:
			go s.sink.RecordMatchEnded(m)
		case battle.EffectPersistOutcome:
			go s.sink.RecordPlayerOutcome(e.Player, e.Won)
		case battle.EffectAnchorOpen:
			go s.anchorOpen(m)
		case battle.EffectAnchorClose:
			go s.anchorClose(m)
		case battle.EffectAlertInvalidProof:
			go s.alertInvalidProof(m.ID, e.Player)
		}
	}

	if o.Ended {
		m.Lock()
		reason := m.EndReason
		m.Unlock()
		metrics.MatchesEnded.WithLabelValues(reason).Inc()
		s.registry.ReleasePlayers(m)
	}
}

// alertInvalidProof tags the ops alert with the offender's invalid-proof
// history. The cheater's latest row may or may not have landed yet; the
// count is advisory, not an adjudication input.
func (s *MatchService) alertInvalidProof(matchID, playerKey string) {
	prior := s.sink.CountInvalidProofs(playerKey)
	s.alerter.AlertInvalidProof(matchID, playerKey, string(zk.CircuitShotProof), prior)
}

func (s *MatchService) deliver(o battle.Outcome) {
	for _, ev := range o.Events {
		s.dispatch.Send(ev.To, ev.Type, ev.Payload)
	}
}

func (s *MatchService) sendBoth(m *domain.Match, eventType string, payload map[string]any) {
	m.Lock()
	p1 := m.Player1.PublicKey
	p2 := ""
	if m.Player2 != nil {
		p2 = m.Player2.PublicKey
	}
	m.Unlock()

	s.dispatch.Send(p1, eventType, payload)
	if p2 != "" {
		s.dispatch.Send(p2, eventType, payload)
	}
}

func (s *MatchService) onTurnTimeout(m *domain.Match, gen uint64) {
	m.Lock()
	if gen != m.TurnTimer.Gen() {
		m.Unlock()
		return
	}
	o := s.engine.TurnTimeout(m)
	s.applyTimerEffects(m, o)
	m.Unlock()

	s.finishTransition(m, o)
}

func (s *MatchService) onDefenderTimeout(m *domain.Match, gen uint64) {
	m.Lock()
	if gen != m.DefenderTimer.Gen() {
		m.Unlock()
		return
	}
	o := s.engine.DefenderTimeout(m)
	s.applyTimerEffects(m, o)
	m.Unlock()

	s.finishTransition(m, o)
}

func (s *MatchService) onGraceTimeout(m *domain.Match, absentKey string, gen uint64) {
	m.Lock()
	if gen != m.GraceTimer.Gen() {
		m.Unlock()
		return
	}
	o := s.engine.DisconnectTimeout(m, absentKey)
	s.applyTimerEffects(m, o)
	m.Unlock()

	s.finishTransition(m, o)
}

// StartSweeper periodically removes stale waiting and finished matches.
func (s *MatchService) StartSweeper(interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			s.registry.Sweep(maxAge)
			metrics.ActiveMatches.Set(float64(s.registry.Count()))
		}
	}()
}

func (s *MatchService) anchorOpen(m *domain.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if tx, err := s.anchor.OpenSession(ctx, m); err != nil {
		s.log.Warn("open anchor failed", "match_id", m.ID, "error", err)
	} else if tx != "" {
		s.log.Info("session anchored", "match_id", m.ID, "tx", tx)
	}
}

func (s *MatchService) anchorClose(m *domain.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if tx, err := s.anchor.CloseSession(ctx, m); err != nil {
		s.log.Warn("close anchor failed", "match_id", m.ID, "error", err)
	} else if tx != "" {
		s.log.Info("session outcome anchored", "match_id", m.ID, "tx", tx)
	}
}

func (s *MatchService) sendError(to, message string) {
	s.dispatch.Send(to, EvMatchError, map[string]any{"message": message})
}

// buildSnapshot assembles the reconnect state replay. Caller holds the
// match lock.
func buildSnapshot(m *domain.Match, viewer string) map[string]any {
	snapshot := map[string]any{
		"match_id":     m.ID,
		"status":       string(m.Status),
		"grid_size":    m.GridSize,
		"current_turn": m.CurrentTurn,
		"turn_number":  m.TurnNumber,
		"attacks":      append([]domain.Attack(nil), m.Attacks...),
	}
	if opp := m.OpponentOf(viewer); opp != nil {
		snapshot["opponent"] = opp.PublicKey
	}
	if m.Status == domain.StatusFinished {
		snapshot["winner"] = m.Winner
		snapshot["reason"] = m.EndReason
	}
	if m.Pending != nil {
		snapshot["pending_attack"] = *m.Pending
	}
	return snapshot
}

func validGridSize(size int) bool {
	return size == 6 || size == 10
}

func authFailCause(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return "expired"
	case errors.Is(err, auth.ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, auth.ErrBadPublicKey):
		return "bad_public_key"
	default:
		return "bad_signature"
	}
}

func shortKey(publicKey string) string {
	if len(publicKey) > 8 {
		return publicKey[:8]
	}
	return publicKey
}
