package session

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

type ProcessRegistryTestSuite struct {
	suite.Suite
	now time.Time
}

func TestProcessRegistrySuite(t *testing.T) {
	suite.Run(t, new(ProcessRegistryTestSuite))
}

func (s *ProcessRegistryTestSuite) SetupTest() {
	s.now = time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
}

func (s *ProcessRegistryTestSuite) newRegistry(opts ...RegistryOption) *ProcessRegistry {
	base := []RegistryOption{
		WithClock(func() time.Time { return s.now }),
		WithRand(rand.New(rand.NewSource(3))),
	}

	return NewProcessRegistry(append(base, opts...)...)
}

func (s *ProcessRegistryTestSuite) TestAcquireRelease() {
	r := s.newRegistry()

	s.True(r.Acquire(7))
	s.False(r.Acquire(7), "held identities cannot be acquired twice")
	s.True(r.InUse(7))

	r.Release(7)
	s.False(r.InUse(7))
	s.True(r.Acquire(7))

	r.Release(12345)
}

func (s *ProcessRegistryTestSuite) TestCooldownExpires() {
	r := s.newRegistry(WithCooldown(time.Minute))

	s.Require().True(r.Acquire(7))
	r.MarkFailed(7)

	s.False(r.InUse(7))
	s.True(r.InCooldown(7))
	s.False(r.Acquire(7))

	s.now = s.now.Add(59 * time.Second)
	s.True(r.InCooldown(7))

	s.now = s.now.Add(time.Second)
	s.False(r.InCooldown(7))
	s.True(r.Acquire(7))
}

func (s *ProcessRegistryTestSuite) TestGenerateSkipsHeldAndCoolingIDs() {
	r := s.newRegistry(WithIDRange(1, 3))

	s.Require().True(r.Acquire(1))
	r.MarkFailed(2)

	id, err := r.Generate()
	s.Require().NoError(err)
	s.Equal(3, id)
	s.True(r.InUse(3))

	_, err = r.Generate()
	s.True(errors.HasCode(err, errors.ErrCodeRegistryExhausted))
}

func (s *ProcessRegistryTestSuite) TestGenerateInvalidRange() {
	r := s.newRegistry(WithIDRange(10, 1))

	_, err := r.Generate()
	s.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (s *ProcessRegistryTestSuite) TestGenerateIsUniqueUnderConcurrency() {
	r := s.newRegistry(WithIDRange(1, 64))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		ids = map[int]int{}
	)

	for range 64 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			id, err := r.Generate()
			s.NoError(err)

			mu.Lock()
			ids[id]++
			mu.Unlock()
		}()
	}

	wg.Wait()

	s.Len(ids, 64)

	for id, n := range ids {
		s.Equal(1, n, "client id %d handed out twice", id)
	}
}
