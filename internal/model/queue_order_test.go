package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func entry(priority PriorityClass, number int, enqueued time.Time) *QueueEntry {
	return &QueueEntry{
		ID:            uuid.New(),
		PriorityClass: priority,
		QueueNumber:   number,
		EnqueuedAt:    enqueued,
		Status:        QueueStatusWaiting,
	}
}

func TestSortQueueEntriesPriorityPreemptsArrival(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	normal := entry(PriorityNormal, 1, base)
	pwd := entry(PriorityPWD, 2, base.Add(time.Minute))

	entries := []*QueueEntry{normal, pwd}
	SortQueueEntries(entries, nil)

	assert.Equal(t, pwd.ID, entries[0].ID, "pwd entry should preempt an earlier normal entry")
	assert.Equal(t, normal.ID, entries[1].ID)
}

func TestSortQueueEntriesEmergencyFirst(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	entries := []*QueueEntry{
		entry(PrioritySenior, 1, base),
		entry(PriorityPregnant, 2, base.Add(time.Minute)),
		entry(PriorityEmergency, 3, base.Add(2*time.Minute)),
	}
	SortQueueEntries(entries, nil)

	assert.Equal(t, PriorityEmergency, entries[0].PriorityClass)
}

func TestSortQueueEntriesFIFOWithinClass(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	first := entry(PrioritySenior, 5, base)
	second := entry(PriorityPregnant, 6, base.Add(time.Second))

	entries := []*QueueEntry{second, first}
	SortQueueEntries(entries, nil)

	// Senior and pregnant share a weight, so arrival order decides.
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, second.ID, entries[1].ID)
}

func TestSortQueueEntriesQueueNumberBreaksTies(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	a := entry(PriorityNormal, 2, at)
	b := entry(PriorityNormal, 1, at)

	entries := []*QueueEntry{a, b}
	SortQueueEntries(entries, nil)

	assert.Equal(t, 1, entries[0].QueueNumber)
	assert.Equal(t, 2, entries[1].QueueNumber)
}

func TestSortQueueEntriesCustomWeights(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	senior := entry(PrioritySenior, 1, base)
	pwd := entry(PriorityPWD, 2, base.Add(time.Minute))

	weights := map[PriorityClass]int{
		PriorityPWD:    50,
		PrioritySenior: 10,
		PriorityNormal: 0,
	}

	entries := []*QueueEntry{senior, pwd}
	SortQueueEntries(entries, weights)

	assert.Equal(t, pwd.ID, entries[0].ID)
}
