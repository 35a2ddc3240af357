package model

import "sort"

// DefaultPriorityWeights is used when no weight table is configured.
// Emergency preempts everything; the other special classes share a
// weight and preempt normal.
var DefaultPriorityWeights = map[PriorityClass]int{
	PriorityEmergency: 100,
	PriorityPWD:       10,
	PrioritySenior:    10,
	PriorityPregnant:  10,
	PriorityNormal:    0,
}

// SortQueueEntries orders entries by priority weight, then enqueue
// time, then queue number. The same ordering drives both the list view
// and head selection, so they can never disagree.
func SortQueueEntries(entries []*QueueEntry, weights map[PriorityClass]int) {
	if weights == nil {
		weights = DefaultPriorityWeights
	}
	sort.SliceStable(entries, func(i, j int) bool {
		wi, wj := weights[entries[i].PriorityClass], weights[entries[j].PriorityClass]
		if wi != wj {
			return wi > wj
		}
		if !entries[i].EnqueuedAt.Equal(entries[j].EnqueuedAt) {
			return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt)
		}
		return entries[i].QueueNumber < entries[j].QueueNumber
	})
}
