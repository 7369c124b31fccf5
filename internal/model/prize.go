package model

import (
	"time"
)

// Prize model
//
// RemainingAmount is advisory bookkeeping for admin views and stats; prize
// scarcity is enforced by the number of tickets seeded, never by this field.
type Prize struct {
	ID              uint64    `json:"id"`
	Name            string    `json:"name"`
	TotalAmount     int       `json:"total_amount"`
	RemainingAmount int       `json:"remaining_amount"`
	ImageURL        string    `json:"image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PrizeVO is the trimmed prize view returned inside a winning draw response.
type PrizeVO struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}
