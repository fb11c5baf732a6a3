package gamedto

import "encoding/json"

// Event names carried in the envelope. Inbound events are client requests,
// outbound events are server pushes scoped to a pool or a game room.
const (
	// inbound
	EventJoinPool      = "joinPool"
	EventLeavePool     = "leavePool"
	EventJoinGameRoom  = "joinGameRoom"
	EventLeaveGameRoom = "leaveGameRoom"
	EventMove          = "move"
	EventResign        = "resign"
	EventOfferDraw     = "offerDraw"
	EventAcceptDraw    = "acceptDraw"

	// outbound
	EventMatchFound  = "matchFound"
	EventGameUpdate  = "gameUpdate"
	EventTimeUpdate  = "timeUpdate"
	EventGameOver    = "gameOver"
	EventInvalidMove = "invalidMove"
	EventDrawOffered = "drawOffered"
	EventPoolJoined  = "poolJoined"
	EventError       = "error"
)

// Envelope is the inbound frame. Data stays raw until the event name selects
// the payload variant; unknown events are rejected at the gateway boundary.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is the outbound counterpart with an already-typed payload.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound payloads.

type JoinPool struct {
	TimeControl string `json:"timeControl"`
}

type GameRef struct {
	GameID string `json:"gameId"`
}

type MoveSubmit struct {
	GameID string      `json:"gameId"`
	Move   MoveRequest `json:"move"`
}

// Outbound payloads.

type PoolJoined struct {
	TimeControl string `json:"timeControl"`
	Category    string `json:"category"`
	Rating      int    `json:"rating"`
}

type MatchFound struct {
	GameID       string        `json:"gameId"`
	Players      [2]PlayerInfo `json:"players"`
	TimeControl  string        `json:"timeControl"`
	Category     string        `json:"category"`
	Turn         Color         `json:"turn"`
	FEN          string        `json:"fen"`
	InitialTimes ClockTimes    `json:"initialTimes"`
}

type GameUpdate struct {
	GameID   string      `json:"gameId"`
	FEN      string      `json:"fen"`
	Turn     Color       `json:"turn"`
	Times    ClockTimes  `json:"times"`
	LastMove *MoveRecord `json:"lastMove,omitempty"`
}

type TimeUpdate struct {
	White int64 `json:"white"`
	Black int64 `json:"black"`
}

type GameOver struct {
	GameID  string        `json:"gameId"`
	Reason  EndReason     `json:"reason"`
	Detail  DrawDetail    `json:"detail,omitempty"`
	Winner  Color         `json:"winner,omitempty"`
	Players [2]PlayerInfo `json:"players"`
	FEN     string        `json:"fen"`
	PGN     string        `json:"pgn"`
}

type InvalidMove struct {
	GameID  string `json:"gameId,omitempty"`
	Message string `json:"message"`
}

type DrawOffered struct {
	GameID string `json:"gameId"`
	From   string `json:"from"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
