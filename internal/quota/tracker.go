// Package quota enforces the per-user, per-activity, per-day caps on draw
// attempts and wins. Counters live in an in-memory fast path keyed on
// (user, activity, calendar day), so day rollover is implicit in the key and
// needs no reset job. Every successful increment is flushed to a QuotaCount
// entity under the same composite key, so a restart resumes the same day's
// counts and no activity ever sees another activity's spending.
package quota

import (
	"sync"
	"time"

	"prizedraw/internal/model"
	"prizedraw/internal/store"
	"prizedraw/pkg/log"
	"prizedraw/pkg/utils"
)

type counterKey struct {
	userID     uint64
	activityID uint64
	day        string
}

// counter is one user's bucket for one activity and day. Check-then-increment
// runs under the counter's own mutex, so two concurrent calls can never both
// pass the last quota slot. Quotas are captured from the user profile when
// the bucket is built; the consumed counts live in the QuotaCount entity.
type counter struct {
	mu        sync.Mutex
	drawQuota int
	winQuota  int
	count     *model.QuotaCount
}

// Tracker tracks draw/win quota consumption.
type Tracker struct {
	store *store.TreeStore

	mu       sync.RWMutex
	counters map[counterKey]*counter

	now func() time.Time
}

// NewTracker creates a tracker backed by the given store.
func NewTracker(st *store.TreeStore) *Tracker {
	return &Tracker{
		store:    st,
		counters: make(map[counterKey]*counter),
		now:      time.Now,
	}
}

// counterFor returns the bucket for (user, activity, today), creating it on
// first touch from the user profile (quotas) and the stored QuotaCount
// entity (consumed counts). A bucket whose stored entity carries an older
// day starts from zero; one flushed earlier the same day resumes its counts,
// so restarts do not hand quota back.
func (t *Tracker) counterFor(userID, activityID uint64) (*counter, error) {
	day := utils.DayKey(t.now())
	key := counterKey{userID: userID, activityID: activityID, day: day}

	t.mu.RLock()
	c, ok := t.counters[key]
	t.mu.RUnlock()
	if ok {
		return c, nil
	}

	var user model.User
	found, err := t.store.Get(store.NamespaceUsers, int64(userID), &user)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeEncodingError, "load user")
	}
	if !found {
		return nil, utils.ErrUserNotFound
	}

	count, err := t.loadCount(userID, activityID, day)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.counters[key]; ok {
		return c, nil
	}
	c = &counter{drawQuota: user.DrawQuota, winQuota: user.WinQuota, count: count}
	t.counters[key] = c
	return c, nil
}

// loadCount reads the persisted bucket for (user, activity), resetting it
// when the stored day is not today.
func (t *Tracker) loadCount(userID, activityID uint64, day string) (*model.QuotaCount, error) {
	count := &model.QuotaCount{UserID: userID, ActivityID: activityID, Day: day}
	found, err := t.store.Get(store.NamespaceQuotaCounters, count.Key(), count)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeEncodingError, "load quota counter")
	}
	if !found || count.Day != day {
		*count = model.QuotaCount{UserID: userID, ActivityID: activityID, Day: day}
	}
	return count, nil
}

// Preload warms the cache for one activity so the first draws of the day do
// not all fault through to the store. Called during preheat.
func (t *Tracker) Preload(activityID uint64, users []*model.User) {
	day := utils.DayKey(t.now())

	t.mu.Lock()
	defer t.mu.Unlock()
	loaded := 0
	for _, u := range users {
		if u == nil {
			continue
		}
		key := counterKey{userID: u.ID, activityID: activityID, day: day}
		if _, ok := t.counters[key]; ok {
			continue
		}
		count, err := t.loadCount(u.ID, activityID, day)
		if err != nil {
			log.WithFields(map[string]interface{}{
				"user_id":     u.ID,
				"activity_id": activityID,
				"error":       err.Error(),
			}).Warn("Skipping unreadable quota counter during preload")
			continue
		}
		t.counters[key] = &counter{drawQuota: u.DrawQuota, winQuota: u.WinQuota, count: count}
		loaded++
	}

	log.WithFields(map[string]interface{}{
		"activity_id": activityID,
		"users":       loaded,
	}).Info("Quota cache preloaded")
}

// TryDraw consumes one draw attempt. Returns false when the daily draw
// quota is spent; that is a business outcome, not an error. The only error
// is an unknown user.
func (t *Tracker) TryDraw(userID, activityID uint64) (bool, error) {
	c, err := t.counterFor(userID, activityID)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count.Draws >= c.drawQuota {
		return false, nil
	}
	c.count.Draws++
	t.flush(c.count)
	return true, nil
}

// TryWin consumes one win slot. Same contract as TryDraw against the win
// quota. Callers invoke it before claiming a ticket so an over-quota user
// never consumes a ticket meant for someone else.
func (t *Tracker) TryWin(userID, activityID uint64) (bool, error) {
	c, err := t.counterFor(userID, activityID)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count.Wins >= c.winQuota {
		return false, nil
	}
	c.count.Wins++
	t.flush(c.count)
	return true, nil
}

// RemainingDraws returns the draw attempts left today.
func (t *Tracker) RemainingDraws(userID, activityID uint64) (int, error) {
	c, err := t.counterFor(userID, activityID)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.drawQuota - c.count.Draws; n > 0 {
		return n, nil
	}
	return 0, nil
}

// RemainingWins returns the wins left today.
func (t *Tracker) RemainingWins(userID, activityID uint64) (int, error) {
	c, err := t.counterFor(userID, activityID)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.winQuota - c.count.Wins; n > 0 {
		return n, nil
	}
	return 0, nil
}

// flush writes the bucket's QuotaCount entity back to the store. Called with
// the counter lock held; the store write is an in-memory tree insert, no I/O.
// The user profile is never written here, so profile updates cannot be
// reverted by a counter flush.
func (t *Tracker) flush(q *model.QuotaCount) {
	q.UpdatedAt = t.now()
	if err := t.store.Put(store.NamespaceQuotaCounters, q.Key(), q); err != nil {
		log.WithFields(map[string]interface{}{
			"user_id":     q.UserID,
			"activity_id": q.ActivityID,
			"error":       err.Error(),
		}).Error("Failed to flush quota counter")
	}
}
