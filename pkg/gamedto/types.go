package gamedto

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// EndReason is the primary termination cause of a game.
type EndReason string

const (
	ReasonCheckmate   EndReason = "checkmate"
	ReasonTimeout     EndReason = "timeout"
	ReasonResignation EndReason = "resignation"
	ReasonDraw        EndReason = "draw"
	ReasonAborted     EndReason = "aborted"
)

// DrawDetail qualifies ReasonDraw.
type DrawDetail string

const (
	DrawStalemate    DrawDetail = "stalemate"
	DrawThreefold    DrawDetail = "threefold_repetition"
	DrawInsufficient DrawDetail = "insufficient_material"
	DrawAgreement    DrawDetail = "agreement"
)

// MoveRequest is a candidate move as submitted by a client.
type MoveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// MoveRecord is one applied move as appended to the game log.
type MoveRecord struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	FEN       string `json:"fen"`
	Captured  string `json:"captured,omitempty"`
}

// PlayerInfo describes one participant, including rating movement once the
// game has been settled.
type PlayerInfo struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Color     Color  `json:"color"`
	Rating    int    `json:"rating"`
	NewRating int    `json:"newRating,omitempty"`
}

// ClockTimes is a snapshot of both remaining times in milliseconds. Values
// are clamped to zero before leaving the server.
type ClockTimes struct {
	White int64 `json:"white"`
	Black int64 `json:"black"`
}
