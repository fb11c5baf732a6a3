package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"playchess/internal/rules"
	"playchess/internal/store"
	"playchess/internal/timecontrol"
	"playchess/pkg/gamedto"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []gamedto.Frame
	closed bool
}

func (c *fakeConn) Send(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, gamedto.Frame{Event: event, Data: data})
	return nil
}

func (c *fakeConn) Closed() bool { return c.closed }

func (c *fakeConn) countEvent(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if f.Event == event {
			n++
		}
	}
	return n
}

type roomsRecorder struct {
	mu     sync.Mutex
	frames []gamedto.Frame
}

func (r *roomsRecorder) Broadcast(sessionID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, gamedto.Frame{Event: event, Data: data})
}

func (r *roomsRecorder) countEvent(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		if f.Event == event {
			n++
		}
	}
	return n
}

func (r *roomsRecorder) lastEvent(event string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i].Event == event {
			return r.frames[i].Data
		}
	}
	return nil
}

func newTestManager(t *testing.T) (*Manager, *roomsRecorder, *store.LiveStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb, err := store.OpenRedis("redis://" + mr.Addr() + "/0")
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	snaps := store.NewLiveStore(rdb, 0)
	rooms := &roomsRecorder{}
	m := NewManager(rules.NewChessEngine(), rooms, snaps, WithTickInterval(time.Hour))
	return m, rooms, snaps
}

func startSession(t *testing.T, m *Manager, tc string) (*Session, *fakeConn, *fakeConn) {
	t.Helper()
	info := timecontrol.Parse(tc)
	wc, bc := &fakeConn{}, &fakeConn{}
	white := Participant{UserID: "u-white", Username: "Alice", Color: gamedto.White, Rating: 1200, Conn: wc}
	black := Participant{UserID: "u-black", Username: "Bob", Color: gamedto.Black, Rating: 1200, Conn: bc}
	s, err := m.StartMatch(white, black, info)
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	m.Begin(s)
	return s, wc, bc
}

func TestMoveAppendsLogAndFlipsTurn(t *testing.T) {
	m, rooms, _ := newTestManager(t)
	s, _, _ := startSession(t, m, "10+0")

	if err := m.SubmitMove(s.ID, "u-white", gamedto.MoveRequest{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	s.mu.Lock()
	moves, turn := len(s.Moves), s.Turn
	s.mu.Unlock()
	if moves != 1 || turn != gamedto.Black {
		t.Fatalf("expected 1 move and black to play, got %d / %s", moves, turn)
	}
	if rooms.countEvent(gamedto.EventGameUpdate) != 1 {
		t.Fatalf("expected one gameUpdate broadcast")
	}
}

func TestMoveRejections(t *testing.T) {
	m, _, _ := newTestManager(t)
	s, _, _ := startSession(t, m, "10+0")

	if err := m.SubmitMove("no-such-id", "u-white", gamedto.MoveRequest{From: "e2", To: "e4"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := m.SubmitMove(s.ID, "stranger", gamedto.MoveRequest{From: "e2", To: "e4"}); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if err := m.SubmitMove(s.ID, "u-black", gamedto.MoveRequest{From: "e7", To: "e5"}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if err := m.SubmitMove(s.ID, "u-white", gamedto.MoveRequest{From: "e2", To: "e5"}); !errors.Is(err, rules.ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	// nothing should have been applied
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Moves) != 0 || s.Turn != gamedto.White {
		t.Fatalf("rejections must not mutate: %d moves, turn %s", len(s.Moves), s.Turn)
	}
}

func TestCheckmateSettlesExactlyOnce(t *testing.T) {
	m, rooms, snaps := newTestManager(t)
	s, _, _ := startSession(t, m, "10+0")

	seq := []struct {
		user string
		req  gamedto.MoveRequest
	}{
		{"u-white", gamedto.MoveRequest{From: "f2", To: "f3"}},
		{"u-black", gamedto.MoveRequest{From: "e7", To: "e5"}},
		{"u-white", gamedto.MoveRequest{From: "g2", To: "g4"}},
		{"u-black", gamedto.MoveRequest{From: "d8", To: "h4"}},
	}
	for _, step := range seq {
		if err := m.SubmitMove(s.ID, step.user, step.req); err != nil {
			t.Fatalf("SubmitMove %v: %v", step.req, err)
		}
	}

	if n := rooms.countEvent(gamedto.EventGameOver); n != 1 {
		t.Fatalf("expected exactly one gameOver, got %d", n)
	}
	over := rooms.lastEvent(gamedto.EventGameOver).(gamedto.GameOver)
	if over.Reason != gamedto.ReasonCheckmate || over.Winner != gamedto.Black {
		t.Fatalf("unexpected outcome: %+v", over)
	}
	// winner gains, loser drops, from the pre-game pair
	for _, p := range over.Players {
		if p.Color == gamedto.Black && p.NewRating != 1216 {
			t.Fatalf("winner rating should be 1216, got %d", p.NewRating)
		}
		if p.Color == gamedto.White && p.NewRating != 1184 {
			t.Fatalf("loser rating should be 1184, got %d", p.NewRating)
		}
	}

	if m.Registry().Get(s.ID) != nil {
		t.Fatal("settled session must leave the registry")
	}
	if err := m.SubmitMove(s.ID, "u-white", gamedto.MoveRequest{From: "a2", To: "a3"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("post-settlement move should be rejected, got %v", err)
	}

	snap, err := snaps.Load(context.Background(), s.ID)
	if err != nil || snap == nil {
		t.Fatalf("final snapshot missing: %v", err)
	}
	if snap.Status != string(StatusCompleted) || snap.Winner != gamedto.Black {
		t.Fatalf("unexpected final snapshot: %+v", snap)
	}
}

func TestTimeForfeit(t *testing.T) {
	m, rooms, _ := newTestManager(t)
	s, _, _ := startSession(t, m, "1+0")

	s.mu.Lock()
	s.Clock.WhiteMs = 10
	s.Clock.lastTick = time.Now().Add(-time.Second)
	s.mu.Unlock()

	m.tickSession(s)
	if n := rooms.countEvent(gamedto.EventGameOver); n != 1 {
		t.Fatalf("expected one gameOver, got %d", n)
	}
	over := rooms.lastEvent(gamedto.EventGameOver).(gamedto.GameOver)
	if over.Reason != gamedto.ReasonTimeout || over.Winner != gamedto.Black {
		t.Fatalf("unexpected forfeit outcome: %+v", over)
	}

	// late tick after settlement is a no-op
	m.tickSession(s)
	if n := rooms.countEvent(gamedto.EventGameOver); n != 1 {
		t.Fatalf("second tick must not settle again, got %d gameOver", n)
	}
}

func TestTickBroadcastsClampedTimes(t *testing.T) {
	m, rooms, _ := newTestManager(t)
	s, _, _ := startSession(t, m, "10+0")

	s.mu.Lock()
	s.Clock.lastTick = time.Now().Add(-2 * time.Second)
	s.mu.Unlock()
	m.tickSession(s)

	if rooms.countEvent(gamedto.EventTimeUpdate) != 1 {
		t.Fatal("expected a timeUpdate broadcast")
	}
	tu := rooms.lastEvent(gamedto.EventTimeUpdate).(gamedto.TimeUpdate)
	if tu.White < 0 || tu.Black < 0 {
		t.Fatalf("observable times must never be negative: %+v", tu)
	}
	if tu.White >= 600_000 {
		t.Fatalf("white should have been charged, got %d", tu.White)
	}
}

func TestIncrementCreditedToMoverOnly(t *testing.T) {
	m, _, _ := newTestManager(t)
	s, _, _ := startSession(t, m, "10+5")

	if err := m.SubmitMove(s.ID, "u-white", gamedto.MoveRequest{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Clock.WhiteMs <= s.TC.BaseMs() {
		t.Fatalf("mover should have gained increment, got %d", s.Clock.WhiteMs)
	}
	if s.Clock.BlackMs != s.TC.BaseMs() {
		t.Fatalf("opponent clock must be untouched, got %d", s.Clock.BlackMs)
	}
}

func TestLiveStateClampsAndResyncs(t *testing.T) {
	m, _, _ := newTestManager(t)
	s, _, _ := startSession(t, m, "10+0")

	if err := m.SubmitMove(s.ID, "u-white", gamedto.MoveRequest{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	s.mu.Lock()
	s.Clock.BlackMs = -500 // internal dip must not be observable
	s.mu.Unlock()

	state := m.LiveState(s.ID)
	if state == nil {
		t.Fatal("expected live state")
	}
	if state.Times.Black != 0 {
		t.Fatalf("clamp failed: %d", state.Times.Black)
	}
	if state.LastMove == nil || state.LastMove.SAN != "e4" {
		t.Fatalf("resync should carry the last move, got %+v", state.LastMove)
	}
	if m.LiveState("missing") != nil {
		t.Fatal("unknown session should yield nil state")
	}
}

func TestResign(t *testing.T) {
	m, rooms, _ := newTestManager(t)
	s, _, _ := startSession(t, m, "10+0")

	if err := m.Resign(s.ID, "u-black"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	over := rooms.lastEvent(gamedto.EventGameOver).(gamedto.GameOver)
	if over.Reason != gamedto.ReasonResignation || over.Winner != gamedto.White {
		t.Fatalf("unexpected resignation outcome: %+v", over)
	}
	if err := m.Resign(s.ID, "u-white"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second resign should fail, got %v", err)
	}
}

func TestDrawOfferAndAccept(t *testing.T) {
	m, rooms, _ := newTestManager(t)
	s, wc, bc := startSession(t, m, "10+0")

	if err := m.AcceptDraw(s.ID, "u-black"); !errors.Is(err, ErrNoDrawOffer) {
		t.Fatalf("accept without offer should fail, got %v", err)
	}
	if err := m.OfferDraw(s.ID, "u-white"); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	if bc.countEvent(gamedto.EventDrawOffered) != 1 {
		t.Fatal("opponent should receive drawOffered")
	}
	if wc.countEvent(gamedto.EventDrawOffered) != 0 {
		t.Fatal("offering side must not receive drawOffered")
	}
	if err := m.AcceptDraw(s.ID, "u-white"); !errors.Is(err, ErrNoDrawOffer) {
		t.Fatalf("offerer cannot accept own offer, got %v", err)
	}
	if err := m.AcceptDraw(s.ID, "u-black"); err != nil {
		t.Fatalf("AcceptDraw: %v", err)
	}
	over := rooms.lastEvent(gamedto.EventGameOver).(gamedto.GameOver)
	if over.Reason != gamedto.ReasonDraw || over.Detail != gamedto.DrawAgreement || over.Winner != "" {
		t.Fatalf("unexpected draw outcome: %+v", over)
	}
	// equal ratings: a draw moves nothing
	for _, p := range over.Players {
		if p.NewRating != p.Rating {
			t.Fatalf("draw between equals should not move ratings: %+v", p)
		}
	}
}

func TestMoveWithdrawsDrawOffer(t *testing.T) {
	m, _, _ := newTestManager(t)
	s, _, _ := startSession(t, m, "10+0")

	if err := m.OfferDraw(s.ID, "u-white"); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	if err := m.SubmitMove(s.ID, "u-white", gamedto.MoveRequest{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if err := m.AcceptDraw(s.ID, "u-black"); !errors.Is(err, ErrNoDrawOffer) {
		t.Fatalf("offer should be withdrawn by the move, got %v", err)
	}
}

func TestSetupAbortWithDeadConnection(t *testing.T) {
	m, rooms, _ := newTestManager(t)
	info := timecontrol.Parse("10+0")
	white := Participant{UserID: "u1", Username: "u1", Color: gamedto.White, Rating: 1200, Conn: &fakeConn{closed: true}}
	black := Participant{UserID: "u2", Username: "u2", Color: gamedto.Black, Rating: 1200, Conn: &fakeConn{}}

	if _, err := m.StartMatch(white, black, info); !errors.Is(err, ErrSetupAborted) {
		t.Fatalf("expected ErrSetupAborted, got %v", err)
	}
	if m.Registry().Len() != 0 {
		t.Fatal("aborted setup must not register a session")
	}
	if rooms.countEvent(gamedto.EventMatchFound) != 0 {
		t.Fatal("aborted setup must not announce a match")
	}
}
