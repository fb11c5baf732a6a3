package live

import (
	"go.uber.org/zap"

	"playchess/internal/obslog"
	"playchess/pkg/gamedto"
)

// SubmitMove runs the move pipeline for one submission. Rejections come
// back as sentinel errors (session absent or finished, wrong player, wrong
// turn, illegal move) and leave the session untouched; the caller reports
// them to the submitter only.
//
// On acceptance the session is mutated synchronously under its lock, the
// snapshot persist is detached, the room sees the board update, and only
// then is any terminal condition settled — participants always observe the
// final position before the gameOver event.
func (m *Manager) SubmitMove(sessionID, userID string, req gamedto.MoveRequest) error {
	s := m.reg.Get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	if s.Status != StatusActive {
		s.mu.Unlock()
		return ErrSessionNotActive
	}
	p := s.participant(userID)
	if p == nil {
		s.mu.Unlock()
		return ErrNotParticipant
	}
	if p.Color != s.Turn {
		s.mu.Unlock()
		return ErrNotYourTurn
	}

	res, err := m.engine.Apply(s.MovesUCI, req)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	record := gamedto.MoveRecord{
		From:      req.From,
		To:        req.To,
		Promotion: req.Promotion,
		SAN:       res.SAN,
		FEN:       res.FEN,
		Captured:  res.Captured,
	}
	s.FEN = res.FEN
	s.Turn = res.Turn
	s.MovesUCI = append(s.MovesUCI, res.UCI)
	s.Moves = append(s.Moves, record)
	s.drawOfferBy = "" // a move on the board withdraws any pending offer

	// Move completion charges the mover for the time since the last cursor
	// advance, clamps at zero, then credits the increment to the mover only.
	now := m.now()
	elapsed := now.Sub(s.Clock.lastTick).Milliseconds()
	if p.Color == gamedto.White {
		s.Clock.WhiteMs = clampMs(s.Clock.WhiteMs-elapsed) + s.Clock.IncrementMs
	} else {
		s.Clock.BlackMs = clampMs(s.Clock.BlackMs-elapsed) + s.Clock.IncrementMs
	}
	s.Clock.lastTick = now

	update := gamedto.GameUpdate{
		GameID:   s.ID,
		FEN:      s.FEN,
		Turn:     s.Turn,
		Times:    s.timesLocked(),
		LastMove: &record,
	}
	var snap = m.snapshotLocked(s)

	// Settle terminal positions under the same lock as the mutation so no
	// tick can slip in between the move and the termination decision.
	var st *settlement
	if res.Terminal() {
		winner := gamedto.Color("")
		reason := gamedto.ReasonDraw
		detail := gamedto.DrawDetail("")
		text := ""
		switch {
		case res.Checkmate:
			// side to move after the mate is the losing side
			winner = s.Turn.Opponent()
			reason = gamedto.ReasonCheckmate
			text = "Checkmate"
		case res.Stalemate:
			detail = gamedto.DrawStalemate
			text = "Stalemate"
		case res.ThreefoldRepetition:
			detail = gamedto.DrawThreefold
			text = "Threefold repetition"
		case res.InsufficientMaterial:
			detail = gamedto.DrawInsufficient
			text = "Insufficient material"
		}
		st = m.settleLocked(s, winner, reason, detail, text)
	}
	s.mu.Unlock()

	obslog.L().Info("move_applied",
		zap.String("game_id", s.ID),
		zap.String("user_id", userID),
		zap.String("san", res.SAN),
		zap.String("uci", res.UCI),
		zap.Bool("terminal", st != nil),
	)

	if st == nil {
		m.persistSnapshotAsync(snap)
	}
	m.rooms.Broadcast(s.ID, gamedto.EventGameUpdate, update)
	m.completeSettlement(st)
	return nil
}
