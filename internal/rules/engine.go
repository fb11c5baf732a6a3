package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"playchess/pkg/gamedto"
)

// ErrIllegalMove is returned for any candidate move the engine refuses.
var ErrIllegalMove = errors.New("illegal move")

// Result is the engine's verdict on one applied move: the successor
// position plus the terminal predicates evaluated against it.
type Result struct {
	FEN      string
	UCI      string
	SAN      string
	Captured string
	Turn     gamedto.Color

	Checkmate            bool
	Stalemate            bool
	InsufficientMaterial bool
	ThreefoldRepetition  bool
}

// Terminal reports whether any end condition holds.
func (r *Result) Terminal() bool {
	return r.Checkmate || r.Stalemate || r.InsufficientMaterial || r.ThreefoldRepetition
}

// Engine evaluates move legality and terminal states. Board rules are never
// implemented in this repository; everything is delegated here.
type Engine interface {
	StartFEN() string
	Apply(movesUCI []string, req gamedto.MoveRequest) (*Result, error)
}

// ChessEngine adapts corentings/chess/v2.
type ChessEngine struct{}

func NewChessEngine() *ChessEngine { return &ChessEngine{} }

func (e *ChessEngine) StartFEN() string {
	return nchess.NewGame().FEN()
}

// Apply replays the game's UCI history from the start position and then
// attempts the candidate move. Replaying rather than loading the stored FEN
// keeps the repetition counter intact.
func (e *ChessEngine) Apply(movesUCI []string, req gamedto.MoveRequest) (*Result, error) {
	game, err := replay(movesUCI)
	if err != nil {
		return nil, err
	}
	pos := game.Position()

	uci := strings.ToLower(strings.TrimSpace(req.From) + strings.TrimSpace(req.To) + strings.TrimSpace(req.Promotion))
	if len(uci) < 4 {
		return nil, ErrIllegalMove
	}
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return nil, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	captured := capturedPiece(pos, mv)
	if err := game.Move(mv, nil); err != nil {
		return nil, ErrIllegalMove
	}

	res := &Result{
		FEN:      game.FEN(),
		UCI:      uci,
		SAN:      san,
		Captured: captured,
		Turn:     colorFrom(game.Position().Turn()),
	}

	switch game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		if game.Method() == nchess.Checkmate {
			res.Checkmate = true
		}
	case nchess.Draw:
		switch game.Method() {
		case nchess.Stalemate:
			res.Stalemate = true
		case nchess.InsufficientMaterial:
			res.InsufficientMaterial = true
		case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
			res.ThreefoldRepetition = true
		}
	}
	// Threefold is claimable rather than automatic in the library; surface it
	// as terminal the moment it becomes available.
	for _, m := range game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition {
			res.ThreefoldRepetition = true
		}
	}

	return res, nil
}

func replay(movesUCI []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for i, u := range movesUCI {
		if err := game.PushNotationMove(u, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d (%s): %w", i+1, u, err)
		}
	}
	return game, nil
}

func capturedPiece(pos *nchess.Position, mv *nchess.Move) string {
	if !mv.HasTag(nchess.Capture) && !mv.HasTag(nchess.EnPassant) {
		return ""
	}
	if mv.HasTag(nchess.EnPassant) {
		return "p"
	}
	return pieceLetter(pos.Board().Piece(mv.S2()).Type())
}

func pieceLetter(t nchess.PieceType) string {
	switch t {
	case nchess.King:
		return "k"
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	case nchess.Pawn:
		return "p"
	default:
		return ""
	}
}

func colorFrom(c nchess.Color) gamedto.Color {
	if c == nchess.White {
		return gamedto.White
	}
	return gamedto.Black
}
