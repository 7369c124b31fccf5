package model

import (
	"time"
)

// QuotaCount is one user's consumed draw/win counts for one activity and
// calendar day. It is stored apart from the user profile so counter flushes
// never overwrite profile writes, and one activity's spending never seeds
// another's bucket.
type QuotaCount struct {
	UserID     uint64    `json:"user_id"`
	ActivityID uint64    `json:"activity_id"`
	Day        string    `json:"day"`
	Draws      int       `json:"draws"`
	Wins       int       `json:"wins"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key packs user and activity into the store key, mirroring AllocationPlan.
func (q *QuotaCount) Key() int64 {
	return int64(q.UserID)<<32 | int64(q.ActivityID&0xFFFFFFFF)
}
