package live

import (
	"context"
	"time"

	"go.uber.org/zap"

	"playchess/internal/obslog"
	"playchess/internal/rating"
	"playchess/internal/store"
	"playchess/pkg/gamedto"
)

// settlement is everything computed at the status transition, handed to the
// IO phase after the session lock is released.
type settlement struct {
	sessionID string
	ratingKey string
	snap      *store.GameSnapshot
	over      gamedto.GameOver
}

// settleLocked is the single point where a session leaves the active state.
// It must run with s.mu held. The status check-and-set makes every
// termination entry point idempotent: the second caller sees a terminal
// status and gets nil. The clock stops here, synchronously with the status
// transition, so no late tick can fire after settlement.
func (m *Manager) settleLocked(s *Session, winner gamedto.Color, reason gamedto.EndReason, detail gamedto.DrawDetail, terminationText string) *settlement {
	if s.Status != StatusActive {
		return nil
	}
	s.Status = StatusCompleted
	s.stopClockLocked()
	s.Clock.WhiteMs = clampMs(s.Clock.WhiteMs)
	s.Clock.BlackMs = clampMs(s.Clock.BlackMs)

	whiteScore, blackScore := rating.Scores(winner == gamedto.White, winner == gamedto.Black)

	// Both updates are computed from the pre-game rating pair.
	white, black := &s.Players[0], &s.Players[1]
	newWhite := rating.Elo(white.Rating, black.Rating, whiteScore, m.eloK)
	newBlack := rating.Elo(black.Rating, white.Rating, blackScore, m.eloK)

	players := s.playerInfoLocked()
	players[0].NewRating = newWhite
	players[1].NewRating = newBlack

	snap := m.snapshotLocked(s)
	snap.Players = players
	snap.Winner = winner
	snap.EndReason = reason
	snap.EndDetail = detail

	pgn := store.BuildPGN(snap, terminationText)
	return &settlement{
		sessionID: s.ID,
		ratingKey: s.TC.RatingKey(),
		snap:      snap,
		over: gamedto.GameOver{
			GameID:  s.ID,
			Reason:  reason,
			Detail:  detail,
			Winner:  winner,
			Players: players,
			FEN:     snap.FEN,
			PGN:     pgn,
		},
	}
}

// completeSettlement performs the IO half: persist the final record,
// broadcast the outcome, retire the session. The final write is retried
// once; a second failure is logged and the broadcast still goes out.
func (m *Manager) completeSettlement(st *settlement) {
	if st == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if m.snaps != nil {
		if err := m.snaps.Save(ctx, st.snap); err != nil {
			if err = m.snaps.Save(ctx, st.snap); err != nil {
				obslog.L().Error("final_snapshot_error", zap.String("game_id", st.sessionID), zap.Error(err))
			}
		}
	}
	if m.repo != nil {
		if err := m.repo.SaveResult(ctx, st.snap, st.over.PGN); err != nil {
			if err = m.repo.SaveResult(ctx, st.snap, st.over.PGN); err != nil {
				obslog.L().Error("result_persist_error", zap.String("game_id", st.sessionID), zap.Error(err))
			}
		}
		for _, p := range st.snap.Players {
			if err := m.repo.UpdateRating(ctx, p.UserID, st.ratingKey, p.NewRating); err != nil {
				obslog.L().Error("rating_persist_error",
					zap.String("game_id", st.sessionID),
					zap.String("user_id", p.UserID),
					zap.Error(err),
				)
			}
		}
	}

	m.rooms.Broadcast(st.sessionID, gamedto.EventGameOver, st.over)
	m.reg.Remove(st.sessionID)

	obslog.L().Info("session_settled",
		zap.String("game_id", st.sessionID),
		zap.String("reason", string(st.over.Reason)),
		zap.String("detail", string(st.over.Detail)),
		zap.String("winner", string(st.over.Winner)),
	)
}

// Resign ends the game in favor of the opponent.
func (m *Manager) Resign(sessionID, userID string) error {
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
	st := m.settleLocked(s, p.Color.Opponent(), gamedto.ReasonResignation, "", "Game terminated by resignation")
	s.mu.Unlock()
	m.completeSettlement(st)
	return nil
}

// OfferDraw records a pending offer and notifies only the opponent.
func (m *Manager) OfferDraw(sessionID, userID string) error {
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
	s.drawOfferBy = userID
	opp := s.opponentOf(userID)
	offer := gamedto.DrawOffered{GameID: s.ID, From: p.Username}
	s.mu.Unlock()

	if opp != nil && connAlive(opp.Conn) {
		if err := opp.Conn.Send(gamedto.EventDrawOffered, offer); err != nil {
			obslog.L().Warn("draw_offer_send_error", zap.String("game_id", sessionID), zap.Error(err))
		}
	}
	return nil
}

// AcceptDraw settles the game by agreement. Valid only while the
// opponent's offer is pending.
func (m *Manager) AcceptDraw(sessionID, userID string) error {
	s := m.reg.Get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	if s.Status != StatusActive {
		s.mu.Unlock()
		return ErrSessionNotActive
	}
	if s.participant(userID) == nil {
		s.mu.Unlock()
		return ErrNotParticipant
	}
	if s.drawOfferBy == "" || s.drawOfferBy == userID {
		s.mu.Unlock()
		return ErrNoDrawOffer
	}
	st := m.settleLocked(s, "", gamedto.ReasonDraw, gamedto.DrawAgreement, "Game drawn by mutual agreement")
	s.mu.Unlock()
	m.completeSettlement(st)
	return nil
}
