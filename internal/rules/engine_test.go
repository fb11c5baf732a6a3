package rules

import (
	"errors"
	"testing"

	"playchess/pkg/gamedto"
)

func TestApplyLegalMove(t *testing.T) {
	e := NewChessEngine()
	res, err := e.Apply(nil, gamedto.MoveRequest{From: "e2", To: "e4"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.SAN != "e4" || res.UCI != "e2e4" {
		t.Fatalf("unexpected notation: san=%q uci=%q", res.SAN, res.UCI)
	}
	if res.Turn != gamedto.Black {
		t.Fatalf("turn should pass to black, got %s", res.Turn)
	}
	if res.Terminal() {
		t.Fatal("opening move must not be terminal")
	}
}

func TestApplyIllegalMove(t *testing.T) {
	e := NewChessEngine()
	if _, err := e.Apply(nil, gamedto.MoveRequest{From: "e2", To: "e5"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, err := e.Apply(nil, gamedto.MoveRequest{From: "zz", To: "xx"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove for garbage squares, got %v", err)
	}
}

func TestApplyOutOfTurn(t *testing.T) {
	e := NewChessEngine()
	// black piece while it is white to move
	if _, err := e.Apply(nil, gamedto.MoveRequest{From: "e7", To: "e5"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
}

func TestApplyCapture(t *testing.T) {
	e := NewChessEngine()
	history := []string{"e2e4", "d7d5"}
	res, err := e.Apply(history, gamedto.MoveRequest{From: "e4", To: "d5"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Captured != "p" {
		t.Fatalf("expected captured pawn, got %q", res.Captured)
	}
}

func TestApplyCheckmate(t *testing.T) {
	e := NewChessEngine()
	history := []string{"f2f3", "e7e5", "g2g4"}
	res, err := e.Apply(history, gamedto.MoveRequest{From: "d8", To: "h4"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Checkmate || !res.Terminal() {
		t.Fatalf("expected checkmate, got %+v", res)
	}
}

func TestApplyPromotion(t *testing.T) {
	e := NewChessEngine()
	history := []string{"h2h4", "g7g5", "h4g5", "b8c6", "g5g6", "c6b8", "g6h7", "b8c6"}
	res, err := e.Apply(history, gamedto.MoveRequest{From: "h7", To: "g8", Promotion: "q"})
	if err != nil {
		t.Fatalf("Apply promotion: %v", err)
	}
	if res.SAN == "" || res.UCI != "h7g8q" {
		t.Fatalf("unexpected promotion result: %+v", res)
	}
}

func TestStartFEN(t *testing.T) {
	e := NewChessEngine()
	if got := e.StartFEN(); got == "" {
		t.Fatal("start FEN must not be empty")
	}
}
