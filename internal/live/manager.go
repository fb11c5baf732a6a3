package live

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"playchess/internal/obslog"
	"playchess/internal/rating"
	"playchess/internal/rules"
	"playchess/internal/store"
	"playchess/internal/timecontrol"
	"playchess/pkg/gamedto"
)

const defaultTickInterval = 5 * time.Second

// Manager drives the live-session core: creation, the clock engine, the
// move pipeline and termination settlement.
type Manager struct {
	reg    *Registry
	engine rules.Engine
	rooms  Rooms
	snaps  *store.LiveStore
	repo   *store.Repository

	tick time.Duration
	eloK int
	now  func() time.Time
}

type Option func(*Manager)

// WithTickInterval overrides the periodic clock tick (default 5s).
func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.tick = d
		}
	}
}

// WithEloK overrides the rating K-factor.
func WithEloK(k int) Option {
	return func(m *Manager) {
		if k > 0 {
			m.eloK = k
		}
	}
}

func NewManager(engine rules.Engine, rooms Rooms, snaps *store.LiveStore, opts ...Option) *Manager {
	m := &Manager{
		reg:    NewRegistry(),
		engine: engine,
		rooms:  rooms,
		snaps:  snaps,
		tick:   defaultTickInterval,
		eloK:   rating.DefaultK,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AttachRepository wires the results repository. Optional: without it,
// settlement still broadcasts and keeps the Redis snapshot.
func (m *Manager) AttachRepository(r *store.Repository) {
	if m != nil {
		m.repo = r
	}
}

// Registry exposes the session registry for read access.
func (m *Manager) Registry() *Registry { return m.reg }

// StartMatch creates a session for an already-paired, color-assigned pair.
// If either participant's connection is gone the session is recorded as
// aborted and never becomes active; no clock starts.
func (m *Manager) StartMatch(white, black Participant, tc timecontrol.Info) (*Session, error) {
	id := uuid.NewString()
	if !connAlive(white.Conn) || !connAlive(black.Conn) {
		m.recordAborted(id, white, black, tc)
		return nil, ErrSetupAborted
	}

	now := m.now()
	s := &Session{
		ID:        id,
		Players:   [2]Participant{white, black},
		FEN:       m.engine.StartFEN(),
		Turn:      gamedto.White,
		Status:    StatusActive,
		TC:        tc,
		Clock:     Clock{WhiteMs: tc.BaseMs(), BlackMs: tc.BaseMs(), IncrementMs: tc.IncrementMs(), lastTick: now},
		CreatedAt: now,
		stopTick:  make(chan struct{}),
	}
	m.reg.add(s)

	obslog.L().Info("session_create",
		zap.String("game_id", s.ID),
		zap.String("white_id", white.UserID),
		zap.String("black_id", black.UserID),
		zap.String("time_control", tc.Canonical),
		zap.String("category", string(tc.Category)),
	)

	s.mu.Lock()
	snap := m.snapshotLocked(s)
	s.mu.Unlock()
	m.persistSnapshotAsync(snap)
	return s, nil
}

// Begin announces the match to the room and starts the session clock.
// Callers subscribe both connections to the room before invoking it so the
// matchFound broadcast reaches them.
func (m *Manager) Begin(s *Session) {
	s.mu.Lock()
	found := gamedto.MatchFound{
		GameID:       s.ID,
		Players:      s.playerInfoLocked(),
		TimeControl:  s.TC.Canonical,
		Category:     string(s.TC.Category),
		Turn:         s.Turn,
		FEN:          s.FEN,
		InitialTimes: s.timesLocked(),
	}
	s.Clock.lastTick = m.now()
	s.mu.Unlock()

	m.rooms.Broadcast(s.ID, gamedto.EventMatchFound, found)
	go m.runClock(s)
}

func (m *Manager) runClock(s *Session) {
	t := time.NewTicker(m.tick)
	defer t.Stop()
	for {
		select {
		case <-s.stopTick:
			return
		case <-t.C:
			m.tickSession(s)
		}
	}
}

// tickSession advances the clock cursor and charges the side to move. A
// side at or below zero forfeits on the spot; otherwise the fresh times go
// out to the room and clients re-anchor their local countdowns.
func (m *Manager) tickSession(s *Session) {
	s.mu.Lock()
	if s.Status != StatusActive {
		s.mu.Unlock()
		return
	}
	now := m.now()
	elapsed := now.Sub(s.Clock.lastTick).Milliseconds()
	s.Clock.lastTick = now
	if s.Turn == gamedto.White {
		s.Clock.WhiteMs -= elapsed
	} else {
		s.Clock.BlackMs -= elapsed
	}

	if s.Clock.WhiteMs <= 0 || s.Clock.BlackMs <= 0 {
		losing := gamedto.White
		if s.Clock.WhiteMs > 0 {
			losing = gamedto.Black
		}
		st := m.settleLocked(s, losing.Opponent(), gamedto.ReasonTimeout, "", "Game lost on time")
		s.mu.Unlock()
		m.completeSettlement(st)
		return
	}

	update := gamedto.TimeUpdate{White: clampMs(s.Clock.WhiteMs), Black: clampMs(s.Clock.BlackMs)}
	s.mu.Unlock()
	m.rooms.Broadcast(s.ID, gamedto.EventTimeUpdate, update)
}

// LiveState returns a resync snapshot for a room subscriber, or nil when
// the session is not live (after a restart clients fall back to the
// durable snapshot via the stores).
func (m *Manager) LiveState(sessionID string) *gamedto.GameUpdate {
	s := m.reg.Get(sessionID)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	update := &gamedto.GameUpdate{
		GameID: s.ID,
		FEN:    s.FEN,
		Turn:   s.Turn,
		Times:  s.timesLocked(),
	}
	if n := len(s.Moves); n > 0 {
		last := s.Moves[n-1]
		update.LastMove = &last
	}
	return update
}

// Close stops every live session's clock. Sessions are not settled; their
// snapshots stay in Redis for post-restart reads.
func (m *Manager) Close() {
	for _, s := range m.reg.all() {
		s.mu.Lock()
		s.stopClockLocked()
		s.mu.Unlock()
	}
}

func (m *Manager) snapshotLocked(s *Session) *store.GameSnapshot {
	return &store.GameSnapshot{
		ID:          s.ID,
		Players:     s.playerInfoLocked(),
		FEN:         s.FEN,
		MovesUCI:    append([]string(nil), s.MovesUCI...),
		Moves:       append([]gamedto.MoveRecord(nil), s.Moves...),
		Turn:        s.Turn,
		Status:      string(s.Status),
		TimeControl: s.TC.Canonical,
		Category:    string(s.TC.Category),
		WhiteMs:     clampMs(s.Clock.WhiteMs),
		BlackMs:     clampMs(s.Clock.BlackMs),
		IncrementMs: s.Clock.IncrementMs,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   m.now(),
	}
}

// persistSnapshotAsync writes the snapshot off the event path. Failures are
// logged and swallowed: the in-memory session stays authoritative for the
// rest of the game.
func (m *Manager) persistSnapshotAsync(snap *store.GameSnapshot) {
	if m.snaps == nil || snap == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.snaps.Save(ctx, snap); err != nil {
			obslog.L().Error("snapshot_persist_error", zap.String("game_id", snap.ID), zap.Error(err))
		}
	}()
}

func (m *Manager) recordAborted(id string, white, black Participant, tc timecontrol.Info) {
	now := m.now()
	snap := &store.GameSnapshot{
		ID: id,
		Players: [2]gamedto.PlayerInfo{
			{UserID: white.UserID, Username: white.Username, Color: white.Color, Rating: white.Rating},
			{UserID: black.UserID, Username: black.Username, Color: black.Color, Rating: black.Rating},
		},
		FEN:         m.engine.StartFEN(),
		Turn:        gamedto.White,
		Status:      string(StatusAborted),
		TimeControl: tc.Canonical,
		Category:    string(tc.Category),
		EndReason:   gamedto.ReasonAborted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	obslog.L().Warn("session_setup_aborted",
		zap.String("game_id", id),
		zap.String("white_id", white.UserID),
		zap.String("black_id", black.UserID),
	)
	m.persistSnapshotAsync(snap)
	if m.repo != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.repo.SaveResult(ctx, snap, store.BuildPGN(snap, "Aborted")); err != nil {
				obslog.L().Error("abort_persist_error", zap.String("game_id", id), zap.Error(err))
			}
		}()
	}
}

func connAlive(c Conn) bool { return c != nil && !c.Closed() }
