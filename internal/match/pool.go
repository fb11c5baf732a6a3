package match

import (
	"crypto/rand"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"playchess/internal/obslog"
)

// Pool owns the per-time-control waiting queues. All state is guarded by a
// single mutex; pairing callbacks run after the lock is released so session
// creation can never re-enter the pool.
type Pool struct {
	mu      sync.Mutex
	buckets map[string][]*Entry

	cfg    PairingConfig
	onPair PairFunc
	now    func() time.Time
}

func NewPool(cfg PairingConfig, onPair PairFunc) *Pool {
	if cfg.BaseRange <= 0 {
		cfg = DefaultPairingConfig()
	}
	return &Pool{
		buckets: make(map[string][]*Entry),
		cfg:     cfg,
		onPair:  onPair,
		now:     time.Now,
	}
}

// AcceptableRange returns the rating window granted after the given wait.
func (p *Pool) AcceptableRange(wait time.Duration) int {
	steps := 0
	if p.cfg.WidenEvery > 0 {
		steps = int(wait / p.cfg.WidenEvery)
	}
	if steps < 0 {
		steps = 0
	}
	return p.cfg.BaseRange + p.cfg.WidenStep*steps
}

// Enqueue adds a waiting player to a bucket and immediately attempts
// pairing. Pairing is opportunistic: it runs on every enqueue rather than
// on a timer, so the widening window is the only anti-starvation mechanism.
func (p *Pool) Enqueue(bucket string, e Entry) error {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" || strings.TrimSpace(e.UserID) == "" {
		return ErrInvalidArgs
	}
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = p.now()
	}

	p.mu.Lock()
	p.buckets[bucket] = append(p.buckets[bucket], &e)
	pairs := p.pairLocked(bucket)
	p.mu.Unlock()

	obslog.L().Info("pool_enqueue",
		zap.String("bucket", bucket),
		zap.String("user_id", e.UserID),
		zap.Int("rating", e.Rating),
	)
	p.emit(bucket, pairs)
	return nil
}

// TryPair re-runs the pairing scan for one bucket. Enqueue calls it
// implicitly; it is exposed for callers that want to retry after a widening
// interval has passed.
func (p *Pool) TryPair(bucket string) {
	p.mu.Lock()
	pairs := p.pairLocked(bucket)
	p.mu.Unlock()
	p.emit(bucket, pairs)
}

// Dequeue removes every entry of the identity from all buckets. Used on
// explicit leave and on disconnect.
func (p *Pool) Dequeue(userID string) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return
	}
	p.mu.Lock()
	p.removeEverywhereLocked(userID)
	p.mu.Unlock()
	obslog.L().Info("pool_dequeue", zap.String("user_id", userID))
}

// Waiting reports the current size of a bucket.
func (p *Pool) Waiting(bucket string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buckets[bucket])
}

// pairLocked runs the pairing scan until no further pairing is found and
// returns the matched pairs. Each success removes both identities from all
// buckets, so one queue action can never feed two sessions. The restart
// after each success is quadratic in the bucket size; fine at the pool
// sizes a single process serves.
func (p *Pool) pairLocked(bucket string) [][2]*Entry {
	var pairs [][2]*Entry
	for {
		entries := p.buckets[bucket]
		if len(entries) < 2 {
			return pairs
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rating < entries[j].Rating })

		paired := false
		for i := 0; i < len(entries)-1 && !paired; i++ {
			a := entries[i]
			var best *Entry
			bestDiff := int(^uint(0) >> 1)
			for j := i + 1; j < len(entries); j++ {
				b := entries[j]
				if b.UserID == a.UserID {
					continue
				}
				diff := abs(a.Rating - b.Rating)
				switch {
				case diff < bestDiff:
					best, bestDiff = b, diff
				case diff == bestDiff && best != nil && b.EnqueuedAt.Before(best.EnqueuedAt):
					best = b
				}
			}
			if best == nil {
				continue
			}
			wait := p.now().Sub(a.EnqueuedAt)
			if bestDiff > p.AcceptableRange(wait) {
				continue
			}
			p.removeEverywhereLocked(a.UserID)
			p.removeEverywhereLocked(best.UserID)
			pairs = append(pairs, [2]*Entry{a, best})
			paired = true
		}
		if !paired {
			return pairs
		}
	}
}

func (p *Pool) removeEverywhereLocked(userID string) {
	for bucket, entries := range p.buckets {
		kept := entries[:0]
		for _, e := range entries {
			if e.UserID != userID {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(p.buckets, bucket)
		} else {
			p.buckets[bucket] = kept
		}
	}
}

func (p *Pool) emit(bucket string, pairs [][2]*Entry) {
	for _, pair := range pairs {
		white, black := pair[0], pair[1]
		if coinFlip() {
			white, black = black, white
		}
		obslog.L().Info("pool_pair",
			zap.String("bucket", bucket),
			zap.String("white_id", white.UserID),
			zap.String("black_id", black.UserID),
			zap.Int("rating_diff", abs(white.Rating-black.Rating)),
		)
		if p.onPair != nil {
			p.onPair(bucket, *white, *black)
		}
	}
}

func coinFlip() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return false
	}
	return n.Int64() == 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
