package match

import (
	"errors"
	"time"
)

var (
	ErrInvalidArgs = errors.New("invalid arguments")
)

// Conn is the minimal connection surface the pool needs to hold on to a
// waiting player.
type Conn interface {
	Send(event string, data any) error
	Closed() bool
}

// Entry is one waiting player in a time-control bucket.
type Entry struct {
	UserID     string
	Username   string
	Rating     int
	EnqueuedAt time.Time
	Conn       Conn
}

// PairFunc receives a matched pair with colors already assigned. It is
// invoked outside the pool lock.
type PairFunc func(bucket string, white, black Entry)

// PairingConfig tunes the widening acceptance window.
type PairingConfig struct {
	// BaseRange is the rating difference accepted with zero wait.
	BaseRange int
	// WidenStep is added to the range for every full WidenEvery waited.
	WidenStep  int
	WidenEvery time.Duration
}

// DefaultPairingConfig mirrors the production pairing curve: 100 points,
// widening by 50 per 10 seconds in queue.
func DefaultPairingConfig() PairingConfig {
	return PairingConfig{BaseRange: 100, WidenStep: 50, WidenEvery: 10 * time.Second}
}
