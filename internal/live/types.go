package live

import (
	"errors"
	"sync"
	"time"

	"playchess/internal/timecontrol"
	"playchess/pkg/gamedto"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session not active")
	ErrNotParticipant   = errors.New("not a participant of this session")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrNoDrawOffer      = errors.New("no pending draw offer from opponent")
	ErrSetupAborted     = errors.New("session setup aborted")
)

// Status is the session lifecycle state. Completed and aborted are
// terminal; no transition ever leaves them.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusAborted   Status = "ABORTED"
)

// Conn is one participant's connection as seen by the session core.
type Conn interface {
	Send(event string, data any) error
	Closed() bool
}

// Rooms broadcasts an event to every subscriber of a session's room.
type Rooms interface {
	Broadcast(sessionID, event string, data any)
}

// Participant is one side of a session. Color and rating are fixed at
// creation; Conn may be swapped on reconnect.
type Participant struct {
	UserID   string
	Username string
	Color    gamedto.Color
	Rating   int
	Conn     Conn
}

// Clock tracks both remaining times. lastTick is the shared monotonic
// cursor advanced by ticks and by moves; remaining values may dip below
// zero internally but are clamped before leaving the session.
type Clock struct {
	WhiteMs     int64
	BlackMs     int64
	IncrementMs int64
	lastTick    time.Time
}

// Session is the authoritative state of one match. All fields are guarded
// by mu; interleaved handlers for the same session serialize on it, and
// every handler re-checks Status after acquiring it.
type Session struct {
	mu sync.Mutex

	ID        string
	Players   [2]Participant // [0] white, [1] black
	FEN       string
	MovesUCI  []string
	Moves     []gamedto.MoveRecord
	Turn      gamedto.Color
	Status    Status
	TC        timecontrol.Info
	Clock     Clock
	CreatedAt time.Time

	drawOfferBy string

	stopTick chan struct{}
	stopOnce sync.Once
}

func (s *Session) participant(userID string) *Participant {
	for i := range s.Players {
		if s.Players[i].UserID == userID {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *Session) opponentOf(userID string) *Participant {
	for i := range s.Players {
		if s.Players[i].UserID != userID {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *Session) stopClockLocked() {
	s.stopOnce.Do(func() { close(s.stopTick) })
}

// timesLocked returns both remaining times clamped to zero.
func (s *Session) timesLocked() gamedto.ClockTimes {
	return gamedto.ClockTimes{White: clampMs(s.Clock.WhiteMs), Black: clampMs(s.Clock.BlackMs)}
}

func (s *Session) playerInfoLocked() [2]gamedto.PlayerInfo {
	var out [2]gamedto.PlayerInfo
	for i, p := range s.Players {
		out[i] = gamedto.PlayerInfo{UserID: p.UserID, Username: p.Username, Color: p.Color, Rating: p.Rating}
	}
	return out
}

func clampMs(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
