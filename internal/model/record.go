package model

import (
	"time"
)

// WinRecord is the append-only record of one successful draw. Produced
// exactly once per claim and written asynchronously by the write-behind
// recorder; never mutated or deleted afterwards.
type WinRecord struct {
	ID         int64     `json:"id"`
	UserID     uint64    `json:"user_id"`
	ActivityID uint64    `json:"activity_id"`
	PrizeID    uint64    `json:"prize_id"`
	PrizeName  string    `json:"prize_name"`
	WinTime    time.Time `json:"win_time"`
}

// WinEvent is the message enqueued on the write-behind queue when a draw
// wins. The recorder turns it into a WinRecord.
type WinEvent struct {
	UserID     uint64    `json:"user_id"`
	ActivityID uint64    `json:"activity_id"`
	PrizeID    uint64    `json:"prize_id"`
	PrizeName  string    `json:"prize_name"`
	WinTime    time.Time `json:"win_time"`
}
