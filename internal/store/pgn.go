package store

import (
	"fmt"
	"strings"
	"time"

	"playchess/pkg/gamedto"
)

// BuildPGN renders the settled game as annotated PGN text.
func BuildPGN(snap *GameSnapshot, terminationText string) string {
	if snap == nil {
		return ""
	}
	white, black := snap.White(), snap.Black()
	result := resultTag(snap.Winner, snap.EndReason)

	var b strings.Builder
	date := snap.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"PlayChess\"]\n")
	b.WriteString("[Site \"PlayChess\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString("[Round \"1\"]\n")
	b.WriteString(fmt.Sprintf("[White \"%s (%d)\"]\n", sanitizePGN(white.Username), white.Rating))
	b.WriteString(fmt.Sprintf("[Black \"%s (%d)\"]\n", sanitizePGN(black.Username), black.Rating))
	if strings.TrimSpace(snap.TimeControl) != "" {
		b.WriteString(fmt.Sprintf("[TimeControl \"%s\"]\n", sanitizePGN(snap.TimeControl)))
	}
	if strings.TrimSpace(terminationText) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(terminationText)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(snap.Moves); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(snap.Moves[i].SAN)))
		if i+1 < len(snap.Moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(snap.Moves[i+1].SAN))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func resultTag(winner gamedto.Color, reason gamedto.EndReason) string {
	switch {
	case reason == gamedto.ReasonAborted:
		return "*"
	case winner == gamedto.White:
		return "1-0"
	case winner == gamedto.Black:
		return "0-1"
	case reason != "":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
