package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository persists settled games and rating movements in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts the final record of a game.
func (r *Repository) SaveResult(ctx context.Context, snap *GameSnapshot, pgn string) error {
	if r == nil || r.db == nil || snap == nil {
		return nil
	}
	white, black := snap.White(), snap.Black()
	movesRaw, _ := json.Marshal(snap.Moves)
	movesUCIRaw, _ := json.Marshal(snap.MovesUCI)
	duration := snap.UpdatedAt.Sub(snap.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO games (
	    game_id, white_id, white_name, black_id, black_name,
	    white_rating, black_rating, white_new_rating, black_new_rating,
	    time_control, category, status, winner, end_reason, end_detail,
	    final_fen, moves, moves_uci, pgn, started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
	  ) ON CONFLICT (game_id) DO UPDATE SET
	    status=EXCLUDED.status,
	    winner=EXCLUDED.winner,
	    end_reason=EXCLUDED.end_reason,
	    end_detail=EXCLUDED.end_detail,
	    white_new_rating=EXCLUDED.white_new_rating,
	    black_new_rating=EXCLUDED.black_new_rating,
	    final_fen=EXCLUDED.final_fen,
	    moves=EXCLUDED.moves,
	    moves_uci=EXCLUDED.moves_uci,
	    pgn=EXCLUDED.pgn,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		snap.ID,
		white.UserID, white.Username, black.UserID, black.Username,
		white.Rating, black.Rating, white.NewRating, black.NewRating,
		snap.TimeControl, snap.Category, snap.Status,
		string(snap.Winner), string(snap.EndReason), string(snap.EndDetail),
		snap.FEN, string(movesRaw), string(movesUCIRaw), pgn,
		snap.CreatedAt, snap.UpdatedAt, duration,
	)
	return err
}

// UpdateRating upserts a player's rating for one category bucket.
func (r *Repository) UpdateRating(ctx context.Context, userID, category string, newRating int) error {
	if r == nil || r.db == nil {
		return nil
	}
	q := `INSERT INTO user_ratings (user_id, category, rating, updated_at)
	  VALUES ($1,$2,$3,$4)
	  ON CONFLICT (user_id, category) DO UPDATE SET
	    rating=EXCLUDED.rating,
	    updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, strings.TrimSpace(userID), strings.TrimSpace(category), newRating, time.Now())
	return err
}
