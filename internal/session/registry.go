package session

import (
	"math/rand"
	"sync"
	"time"

	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

const (
	// DefaultCooldown keeps a failed identity out of rotation until the gateway releases its slot.
	DefaultCooldown = 60 * time.Second
	// DefaultMinClientID and DefaultMaxClientID bound generated identities.
	DefaultMinClientID = 100
	DefaultMaxClientID = 9999

	generateAttempts = 1000
)

// ProcessRegistry is the process-wide record of client identities held by live sessions
// and of recently failed identities. One instance is shared by every session manager
// of a process; tests create their own.
type ProcessRegistry struct {
	mu       sync.Mutex
	inUse    map[int]struct{}
	cooldown map[int]time.Time

	cooldownFor time.Duration
	minID       int
	maxID       int
	rng         *rand.Rand
	now         func() time.Time
}

// RegistryOption configures a ProcessRegistry.
type RegistryOption func(*ProcessRegistry)

// WithCooldown sets how long a failed identity stays unusable.
func WithCooldown(d time.Duration) RegistryOption {
	return func(r *ProcessRegistry) { r.cooldownFor = d }
}

// WithIDRange bounds generated identities to [minID, maxID].
func WithIDRange(minID, maxID int) RegistryOption {
	return func(r *ProcessRegistry) {
		r.minID = minID
		r.maxID = maxID
	}
}

// WithRand seeds identity generation.
func WithRand(rng *rand.Rand) RegistryOption {
	return func(r *ProcessRegistry) { r.rng = rng }
}

// WithClock replaces the wall clock used for cooldown expiry.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *ProcessRegistry) { r.now = now }
}

// NewProcessRegistry creates an empty registry.
func NewProcessRegistry(opts ...RegistryOption) *ProcessRegistry {
	r := &ProcessRegistry{
		mu:          sync.Mutex{},
		inUse:       make(map[int]struct{}),
		cooldown:    make(map[int]time.Time),
		cooldownFor: DefaultCooldown,
		minID:       DefaultMinClientID,
		maxID:       DefaultMaxClientID,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // identities are not secrets
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Acquire marks id as held. It fails when another session holds it or it is cooling down.
func (r *ProcessRegistry) Acquire(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.availableLocked(id) {
		return false
	}

	r.inUse[id] = struct{}{}

	return true
}

// Release frees id. Releasing an identity that is not held is a no-op.
func (r *ProcessRegistry) Release(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inUse, id)
}

// MarkFailed releases id and keeps it out of use for the cooldown period.
func (r *ProcessRegistry) MarkFailed(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inUse, id)
	r.cooldown[id] = r.now().Add(r.cooldownFor)
}

// InCooldown reports whether id failed recently.
func (r *ProcessRegistry) InCooldown(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.inCooldownLocked(id)
}

// InUse reports whether a live session holds id.
func (r *ProcessRegistry) InUse(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.inUse[id]

	return ok
}

// Generate picks a fresh identity that is neither held nor cooling down and acquires it.
func (r *ProcessRegistry) Generate() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := r.maxID - r.minID + 1
	if span <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "invalid client id range [%d, %d]", r.minID, r.maxID)
	}

	for range generateAttempts {
		id := r.minID + r.rng.Intn(span)
		if r.availableLocked(id) {
			r.inUse[id] = struct{}{}

			return id, nil
		}
	}

	// random probing failed; fall back to a linear scan so a nearly full range still works
	for id := r.minID; id <= r.maxID; id++ {
		if r.availableLocked(id) {
			r.inUse[id] = struct{}{}

			return id, nil
		}
	}

	return 0, errors.Newf(errors.ErrCodeRegistryExhausted, "no free client id in [%d, %d]", r.minID, r.maxID)
}

func (r *ProcessRegistry) availableLocked(id int) bool {
	if _, held := r.inUse[id]; held {
		return false
	}

	return !r.inCooldownLocked(id)
}

func (r *ProcessRegistry) inCooldownLocked(id int) bool {
	until, ok := r.cooldown[id]
	if !ok {
		return false
	}

	if !r.now().Before(until) {
		delete(r.cooldown, id)

		return false
	}

	return true
}
