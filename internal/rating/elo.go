package rating

import "math"

// DefaultK is the K-factor applied when none is configured.
const DefaultK = 32

// Elo computes a player's updated rating from one game result. score is 1
// for a win, 0 for a loss, 0.5 for a draw. Both sides of a game must be
// evaluated from the same pre-game rating pair; never feed one side's
// updated rating into the other's expectation.
func Elo(playerRating, opponentRating int, score float64, k int) int {
	if k <= 0 {
		k = DefaultK
	}
	expected := 1 / (1 + math.Pow(10, float64(opponentRating-playerRating)/400))
	return int(math.Round(float64(playerRating) + float64(k)*(score-expected)))
}

// Scores returns the (white, black) score pair for a winner color token.
// An empty winner means a draw.
func Scores(winnerWhite, winnerBlack bool) (float64, float64) {
	switch {
	case winnerWhite:
		return 1, 0
	case winnerBlack:
		return 0, 1
	default:
		return 0.5, 0.5
	}
}
