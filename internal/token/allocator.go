// Package token manages the per-activity sequences of allocation tickets.
// One ticket is one unit of one prize, claimable no earlier than its release
// time. The allocator is the authoritative scarcity control: once its
// tickets are drained, the prizes are gone, whatever the advisory remaining
// counts on the Prize entities say.
package token

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"prizedraw/internal/model"
	"prizedraw/pkg/log"
)

// SeedItem pairs a prize with the number of tickets to generate for it.
type SeedItem struct {
	Prize  *model.Prize
	Amount int
}

// Allocator holds one activity's unclaimed tickets in a time-ordered deque.
// Claim pops the head under the mutex, so a peek-then-pop never races with
// another claimer; Release pushes a rolled-back ticket to the front where it
// is preferentially retried instead of waiting for its original slot.
type Allocator struct {
	activityID uint64

	mu      sync.Mutex
	tickets []*model.Ticket
	head    int

	idGen atomic.Int64
	rng   *rand.Rand
}

// NewAllocator creates an empty allocator for one activity.
func NewAllocator(activityID uint64) *Allocator {
	return &Allocator{
		activityID: activityID,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(activityID))),
	}
}

// ActivityID returns the owning activity.
func (a *Allocator) ActivityID() uint64 {
	return a.activityID
}

// Seed replaces the allocator's content with freshly generated tickets, one
// per prize unit, spread across [windowStart, windowEnd).
//
// Scheduled mode first interleaves all prizes by a random shuffle, then maps
// sorted position i of n to windowStart + i/n of the window plus a bounded
// random jitter, so the release schedule looks uniform and a ticket's slot
// leaks nothing about which prize it carries. FCFS mode stamps every ticket
// with windowStart, preserving insertion order.
//
// Re-seeding replaces, never appends: preheat is safe to run again.
func (a *Allocator) Seed(items []SeedItem, windowStart, windowEnd time.Time, mode int8) int {
	start := windowStart.Unix()
	duration := windowEnd.Unix() - start
	if duration < 1 {
		duration = 1
	}

	var tickets []*model.Ticket
	for _, item := range items {
		if item.Prize == nil {
			continue
		}
		amount := item.Amount
		if item.Prize.RemainingAmount < amount {
			amount = item.Prize.RemainingAmount
		}
		for i := 0; i < amount; i++ {
			tickets = append(tickets, &model.Ticket{
				ID:         a.idGen.Add(1),
				ActivityID: a.activityID,
				PrizeID:    item.Prize.ID,
				PrizeName:  item.Prize.Name,
			})
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch mode {
	case model.ActivityModeFCFS:
		for _, t := range tickets {
			t.ReleaseTime = start
		}
	default:
		a.rng.Shuffle(len(tickets), func(i, j int) {
			tickets[i], tickets[j] = tickets[j], tickets[i]
		})
		n := int64(len(tickets))
		interval := duration / maxInt64(n, 1)
		jitterMax := interval * 8 / 10
		for i, t := range tickets {
			release := start + int64(i)*duration/maxInt64(n, 1)
			if jitterMax > 0 {
				release += a.rng.Int63n(jitterMax + 1)
			}
			if release < start {
				release = start
			}
			if release > start+duration {
				release = start + duration
			}
			t.ReleaseTime = release
		}
		// The jitter is bounded by the slot width, but clamping can still
		// swap neighbors; a stable sort restores the head-is-minimum
		// invariant without undoing the interleave.
		sort.SliceStable(tickets, func(i, j int) bool {
			return tickets[i].ReleaseTime < tickets[j].ReleaseTime
		})
	}

	a.tickets = tickets
	a.head = 0

	log.WithFields(map[string]interface{}{
		"activity_id": a.activityID,
		"tickets":     len(tickets),
		"mode":        mode,
	}).Info("Allocator seeded")
	return len(tickets)
}

// Claim atomically removes and returns the earliest ticket whose release
// time has passed. It returns nil when the allocator is empty or the head
// ticket is not releasable yet; both are normal no-win outcomes, not errors.
func (a *Allocator) Claim(now int64) *model.Ticket {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.head >= len(a.tickets) {
		return nil
	}
	t := a.tickets[a.head]
	if !t.Releasable(now) {
		return nil
	}
	a.tickets[a.head] = nil
	a.head++

	// Drop the consumed prefix once it dominates the backing array.
	if a.head > 64 && a.head*2 >= len(a.tickets) {
		a.tickets = append([]*model.Ticket(nil), a.tickets[a.head:]...)
		a.head = 0
	}
	return t
}

// Release reinserts a previously claimed ticket at the front. The ticket
// jumps the schedule on purpose: a rollback should be retried first, not
// pushed back to its original slot.
func (a *Allocator) Release(t *model.Ticket) {
	if t == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.head > 0 {
		a.head--
		a.tickets[a.head] = t
		return
	}
	a.tickets = append([]*model.Ticket{t}, a.tickets...)
}

// Size returns the number of unclaimed tickets.
func (a *Allocator) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tickets) - a.head
}

// Clear drops all unclaimed tickets.
func (a *Allocator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tickets = nil
	a.head = 0
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
