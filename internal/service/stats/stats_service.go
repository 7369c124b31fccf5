// Package stats aggregates read-only operational numbers for admin views.
package stats

import (
	"context"
	"encoding/json"
	"time"

	"prizedraw/internal/event"
	"prizedraw/internal/model"
	"prizedraw/internal/store"
	"prizedraw/internal/token"
	"prizedraw/pkg/utils"
)

// ActivityStats summarizes one activity's live state.
type ActivityStats struct {
	ActivityID       uint64         `json:"activity_id"`
	Title            string         `json:"title"`
	Status           int8           `json:"status"`
	TicketsRemaining int            `json:"tickets_remaining"`
	WinsRecorded     int            `json:"wins_recorded"`
	WinsByPrize      map[uint64]int `json:"wins_by_prize,omitempty"`
	PlannedByPrize   map[uint64]int `json:"planned_by_prize,omitempty"`
}

// Overview summarizes the whole process. DrawsToday and WinsToday sum the
// per-user counters flushed by the quota tracker, so they cover the current
// calendar day only.
type Overview struct {
	Activities       int            `json:"activities"`
	Prizes           int            `json:"prizes"`
	Users            int            `json:"users"`
	WinRecords       int            `json:"win_records"`
	DrawsToday       int            `json:"draws_today"`
	WinsToday        int            `json:"wins_today"`
	WinRate          float64        `json:"win_rate"`
	TicketsRemaining int            `json:"tickets_remaining"`
	QueueDepth       int            `json:"queue_depth"`
	StoreEntries     map[string]int `json:"store_entries"`
}

// Service stats service interface
type Service interface {
	ActivityStats(ctx context.Context, activityID uint64) (*ActivityStats, error)
	Overview(ctx context.Context) (*Overview, error)
}

type service struct {
	store  *store.TreeStore
	tokens *token.Registry
	events *event.Queue
	now    func() time.Time
}

// NewService creates a stats service
func NewService(st *store.TreeStore, registry *token.Registry, events *event.Queue) Service {
	return &service{store: st, tokens: registry, events: events, now: time.Now}
}

func (s *service) ActivityStats(ctx context.Context, activityID uint64) (*ActivityStats, error) {
	var a model.Activity
	found, err := s.store.Get(store.NamespaceActivities, int64(activityID), &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrActivityNotFound
	}

	stats := &ActivityStats{
		ActivityID:     activityID,
		Title:          a.Title,
		Status:         a.Status,
		WinsByPrize:    make(map[uint64]int),
		PlannedByPrize: make(map[uint64]int),
	}

	if allocator, ok := s.tokens.Peek(activityID); ok {
		stats.TicketsRemaining = allocator.Size()
	}

	var decodeErr error
	s.store.Scan(store.NamespacePlans, 0, func(key int64, value []byte) bool {
		if uint64(key>>32) != activityID {
			return uint64(key>>32) < activityID
		}
		var p model.AllocationPlan
		if err := json.Unmarshal(value, &p); err != nil {
			decodeErr = utils.WrapError(err, utils.CodeEncodingError, "decode allocation plan")
			return false
		}
		stats.PlannedByPrize[p.PrizeID] = p.Amount
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	s.store.Scan(store.NamespaceWinRecords, 0, func(key int64, value []byte) bool {
		var r model.WinRecord
		if err := json.Unmarshal(value, &r); err != nil {
			decodeErr = utils.WrapError(err, utils.CodeEncodingError, "decode win record")
			return false
		}
		if r.ActivityID == activityID {
			stats.WinsRecorded++
			stats.WinsByPrize[r.PrizeID]++
		}
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return stats, nil
}

func (s *service) Overview(ctx context.Context) (*Overview, error) {
	entries := make(map[string]int, len(store.Namespaces))
	for _, ns := range store.Namespaces {
		entries[ns] = s.store.Size(ns)
	}

	today := utils.DayKey(s.now())
	var draws, wins int
	var decodeErr error
	s.store.Scan(store.NamespaceQuotaCounters, 0, func(key int64, value []byte) bool {
		var q model.QuotaCount
		if err := json.Unmarshal(value, &q); err != nil {
			decodeErr = utils.WrapError(err, utils.CodeEncodingError, "decode quota counter")
			return false
		}
		if q.Day == today {
			draws += q.Draws
			wins += q.Wins
		}
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	ov := &Overview{
		Activities:       entries[store.NamespaceActivities],
		Prizes:           entries[store.NamespacePrizes],
		Users:            entries[store.NamespaceUsers],
		WinRecords:       entries[store.NamespaceWinRecords],
		DrawsToday:       draws,
		WinsToday:        wins,
		TicketsRemaining: s.tokens.TotalSize(),
		QueueDepth:       s.events.Size(),
		StoreEntries:     entries,
	}
	if draws > 0 {
		ov.WinRate = float64(wins) / float64(draws)
	}
	return ov, nil
}
