// Package rng wraps the process-wide pseudo-random source the engine uses
// for every variation operator. A single Source instance is threaded
// through the scheduler so a campaign seeded identically reproduces the
// identical sequence of admitted chromosomes (see determinism property in
// the design notes).
package rng

import (
	"fmt"
	"math/rand/v2"
)

// Source is the engine's PRNG. It is not safe for concurrent use — the
// engine is single-threaded cooperative between trials, and within a trial
// only one operator draws from it at a time.
type Source struct {
	pcg *rand.PCG
	r   *rand.Rand
}

// New creates a Source seeded deterministically from seed.
func New(seed uint64) *Source {
	pcg := rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)
	return &Source{pcg: pcg, r: rand.New(pcg)}
}

// Intn returns a pseudo-random int in [0, n).
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with n <= 0")
	}
	return s.r.IntN(n)
}

// Float64 returns a pseudo-random float64 in [0, 1).
func (s *Source) Float64() float64 {
	return s.r.Float64()
}

// Bytes fills buf with pseudo-random bytes.
func (s *Source) Bytes(buf []byte) {
	for i := range buf {
		buf[i] = byte(s.r.IntN(256))
	}
}

// Bool returns true with probability p.
func (s *Source) Bool(p float64) bool {
	return s.r.Float64() < p
}

// MarshalBinary serializes the PRNG's internal state for checkpointing.
func (s *Source) MarshalBinary() ([]byte, error) {
	return s.pcg.MarshalBinary()
}

// UnmarshalBinary restores PRNG state saved by MarshalBinary, continuing
// the exact sequence that would have followed at save time.
func (s *Source) UnmarshalBinary(data []byte) error {
	if s.pcg == nil {
		s.pcg = &rand.PCG{}
	}
	if err := s.pcg.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("rng: restore state: %w", err)
	}
	s.r = rand.New(s.pcg)
	return nil
}
