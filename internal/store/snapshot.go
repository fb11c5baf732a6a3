package store

import (
	"time"

	"playchess/pkg/gamedto"
)

// GameSnapshot is the persisted state of one game, keyed by session id.
// While a game runs it is refreshed after every accepted move; at
// settlement it carries the final outcome and rating movement.
type GameSnapshot struct {
	ID          string                  `json:"id"`
	Players     [2]gamedto.PlayerInfo   `json:"players"`
	FEN         string                  `json:"fen"`
	MovesUCI    []string                `json:"moves_uci"`
	Moves       []gamedto.MoveRecord    `json:"moves"`
	Turn        gamedto.Color           `json:"turn"`
	Status      string                  `json:"status"`
	TimeControl string                  `json:"time_control"`
	Category    string                  `json:"category"`
	WhiteMs     int64                   `json:"white_ms"`
	BlackMs     int64                   `json:"black_ms"`
	IncrementMs int64                   `json:"increment_ms"`
	Winner      gamedto.Color           `json:"winner,omitempty"`
	EndReason   gamedto.EndReason       `json:"end_reason,omitempty"`
	EndDetail   gamedto.DrawDetail      `json:"end_detail,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// White returns the white-side participant.
func (s *GameSnapshot) White() gamedto.PlayerInfo { return s.byColor(gamedto.White) }

// Black returns the black-side participant.
func (s *GameSnapshot) Black() gamedto.PlayerInfo { return s.byColor(gamedto.Black) }

func (s *GameSnapshot) byColor(c gamedto.Color) gamedto.PlayerInfo {
	for _, p := range s.Players {
		if p.Color == c {
			return p
		}
	}
	return gamedto.PlayerInfo{}
}
