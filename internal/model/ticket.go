package model

// Ticket is one claimable unit of one prize, tagged with the earliest time
// (unix seconds) at which it may be handed out. Tickets are immutable after
// seeding and consumed at most once. They are not persisted: the allocator
// regenerates them from the plans on every preheat.
type Ticket struct {
	ID          int64  `json:"id"`
	ActivityID  uint64 `json:"activity_id"`
	PrizeID     uint64 `json:"prize_id"`
	PrizeName   string `json:"prize_name"`
	ReleaseTime int64  `json:"release_time"`
}

// Releasable reports whether the ticket may be claimed at the given unix
// second.
func (t *Ticket) Releasable(now int64) bool {
	return t.ReleaseTime <= now
}
