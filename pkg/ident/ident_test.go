package ident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReferenceAllocatorUnique(t *testing.T) {
	alloc := NewReferenceAllocator(NewClock())

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := alloc.Next()
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestReferenceAllocatorSequenceWithinSecond(t *testing.T) {
	clock := FixedClock{Instant: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	alloc := NewReferenceAllocator(clock)

	first := alloc.Next()
	second := alloc.Next()

	assert.Contains(t, first, "APT-20250301090000-0001-")
	assert.Contains(t, second, "APT-20250301090000-0002-")
}
