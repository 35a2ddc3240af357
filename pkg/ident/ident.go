package ident

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts wall-clock time so services can be tested
// against a fixed instant.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// NewClock returns the process wall clock.
func NewClock() Clock { return wallClock{} }

// FixedClock always reports the same instant. Test helper.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }

// ReferenceAllocator hands out globally unique, non-repeating
// reference numbers for appointments.
type ReferenceAllocator struct {
	clock Clock

	mu   sync.Mutex
	last time.Time
	seq  uint32
}

func NewReferenceAllocator(clock Clock) *ReferenceAllocator {
	return &ReferenceAllocator{clock: clock}
}

// Next returns a reference of the form APT-20060102150405-0001-ab12cd34.
// The sequence disambiguates allocations within the same second and the
// uuid fragment keeps references unique across restarts.
func (a *ReferenceAllocator) Next() string {
	a.mu.Lock()
	now := a.clock.Now().UTC()
	if now.Truncate(time.Second).Equal(a.last) {
		a.seq++
	} else {
		a.last = now.Truncate(time.Second)
		a.seq = 1
	}
	seq := a.seq
	a.mu.Unlock()

	return fmt.Sprintf("APT-%s-%04d-%s", now.Format("20060102150405"), seq, uuid.NewString()[:8])
}
