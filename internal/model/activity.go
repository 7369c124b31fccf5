package model

import (
	"time"
)

// Activity model
type Activity struct {
	ID               uint64    `json:"id"`
	Title            string    `json:"title"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Mode             int8      `json:"mode"`
	Status           int8      `json:"status"`
	ProbabilityBasis int       `json:"probability_basis,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ActivityStatus activity status const
const (
	ActivityStatusNotStarted = 0 // not preheated yet
	ActivityStatusActive     = 1 // preheated, draws accepted
	ActivityStatusEnded      = 2 // past end time or closed by admin
)

// ActivityMode ticket scheduling mode const
const (
	ActivityModeScheduled = 1 // tickets released across the window
	ActivityModeFCFS      = 2 // all tickets releasable at window start
)

// IsActive reports whether the activity accepts draws at the given time.
func (a *Activity) IsActive(now time.Time) bool {
	return a.Status == ActivityStatusActive && !now.Before(a.StartTime) && now.Before(a.EndTime)
}

// HasEnded reports whether the activity window has closed.
func (a *Activity) HasEnded(now time.Time) bool {
	return a.Status == ActivityStatusEnded || !now.Before(a.EndTime)
}

// AllocationPlan binds an amount of one prize to one activity.
type AllocationPlan struct {
	ActivityID uint64 `json:"activity_id"`
	PrizeID    uint64 `json:"prize_id"`
	Amount     int    `json:"amount"`
}

// Key returns the store key for the plan: the activity ID in the upper half,
// the prize ID in the lower half, so scans group plans by activity.
func (p *AllocationPlan) Key() int64 {
	return int64(p.ActivityID)<<32 | int64(p.PrizeID&0xFFFFFFFF)
}
