// Package retry holds the retry/backoff policy shared by the session manager and the bracket executor.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// EscalationFunc decides, after a failed attempt, whether the caller should escalate
// (for example rotate its client identity) before the next attempt.
type EscalationFunc func(consecutiveFailures int, err error) bool

// Policy is a bounded fixed-delay retry with additive jitter.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Jitter is the upper bound of the random delay added to BaseDelay.
	Jitter time.Duration
	// Counts selects the failures that extend the consecutive run seen by Escalate.
	// Any other failure resets the run. Nil counts every failure.
	Counts   func(err error) bool
	Escalate EscalationFunc
}

// Attempt describes one failed try, passed to the OnFailure hook.
type Attempt struct {
	Number      int
	Err         error
	Escalate    bool
	Final       bool
	NextWait    time.Duration
	Consecutive int
}

// Delay returns BaseDelay plus a random jitter in [0, Jitter).
func (p Policy) Delay(rng *rand.Rand) time.Duration {
	if p.Jitter <= 0 {
		return p.BaseDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(p.Jitter)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(p.Jitter))) //nolint:gosec // jitter does not need a CSPRNG
	}

	return p.BaseDelay + jitter
}

// Attempts returns MaxAttempts, never less than one.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}

	return p.MaxAttempts
}

// ShouldEscalate applies the escalation predicate, false when none is configured.
func (p Policy) ShouldEscalate(consecutiveFailures int, err error) bool {
	if p.Escalate == nil {
		return false
	}

	return p.Escalate(consecutiveFailures, err)
}

// Runner executes a function under a Policy.
type Runner struct {
	Policy Policy
	Rand   *rand.Rand
	// Sleep waits between attempts; tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnFailure is called after every failed attempt, before sleeping.
	OnFailure func(a Attempt)
}

// Do calls fn until it succeeds, the attempt budget is spent, or ctx is done.
// fn receives the 1-based attempt number. The last error is returned on exhaustion.
func (r Runner) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	attempts := r.Policy.Attempts()
	consecutive := 0

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		lastErr = err

		if r.Policy.Counts == nil || r.Policy.Counts(err) {
			consecutive++
		} else {
			consecutive = 0
		}

		final := attempt == attempts
		wait := time.Duration(0)

		if !final {
			wait = r.Policy.Delay(r.Rand)
		}

		escalate := !final && r.Policy.ShouldEscalate(consecutive, err)

		if r.OnFailure != nil {
			r.OnFailure(Attempt{
				Number:      attempt,
				Err:         err,
				Escalate:    escalate,
				Final:       final,
				NextWait:    wait,
				Consecutive: consecutive,
			})
		}

		if escalate {
			consecutive = 0
		}

		if final {
			break
		}

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	return lastErr
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
