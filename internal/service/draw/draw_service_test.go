package draw

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prizedraw/internal/event"
	"prizedraw/internal/model"
	"prizedraw/internal/quota"
	"prizedraw/internal/store"
	"prizedraw/internal/token"
	"prizedraw/pkg/utils"
)

type fixture struct {
	svc    *service
	store  *store.TreeStore
	quota  *quota.Tracker
	tokens *token.Registry
	events *event.Queue
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewTreeStore()
	tracker := quota.NewTracker(st)
	registry := token.NewRegistry()
	events := event.NewQueue(64)

	svc := NewService(st, tracker, registry, events).(*service)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	svc.chance = func(int) bool { return true }

	return &fixture{svc: svc, store: st, quota: tracker, tokens: registry, events: events, now: now}
}

func (f *fixture) addActivity(t *testing.T, id uint64, status int8) *model.Activity {
	t.Helper()
	a := &model.Activity{
		ID:        id,
		Title:     "summer draw",
		StartTime: f.now.Add(-time.Hour),
		EndTime:   f.now.Add(time.Hour),
		Mode:      model.ActivityModeFCFS,
		Status:    status,
	}
	require.NoError(t, f.store.Put(store.NamespaceActivities, int64(id), a))
	return a
}

func (f *fixture) addUser(t *testing.T, id uint64, drawQuota, winQuota int) {
	t.Helper()
	u := &model.User{ID: id, Username: "u", DrawQuota: drawQuota, WinQuota: winQuota, Status: model.UserStatusNormal}
	require.NoError(t, f.store.Put(store.NamespaceUsers, int64(id), u))
}

// seedTickets makes count tickets for one prize claimable immediately.
func (f *fixture) seedTickets(t *testing.T, activityID, prizeID uint64, name string, count int) {
	t.Helper()
	prize := &model.Prize{ID: prizeID, Name: name, TotalAmount: count, RemainingAmount: count}
	require.NoError(t, f.store.Put(store.NamespacePrizes, int64(prizeID), prize))

	items := []token.SeedItem{{Prize: prize, Amount: count}}
	seeded := f.tokens.Get(activityID).Seed(items, f.now.Add(-time.Hour), f.now.Add(time.Hour), model.ActivityModeFCFS)
	require.Equal(t, count, seeded)
}

func TestDrawWin(t *testing.T) {
	f := newFixture(t)
	f.addActivity(t, 1, model.ActivityStatusActive)
	f.addUser(t, 10, 5, 5)
	f.seedTickets(t, 1, 7, "mug", 3)

	res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.Prize)
	assert.Equal(t, uint64(7), res.Prize.PrizeID)
	assert.Equal(t, "mug", res.Prize.PrizeName)

	ev, ok := f.events.TryTake()
	require.True(t, ok, "win event enqueued")
	assert.Equal(t, uint64(10), ev.UserID)
	assert.Equal(t, uint64(7), ev.PrizeID)

	var prize model.Prize
	found, err := f.store.Get(store.NamespacePrizes, 7, &prize)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, prize.RemainingAmount, "advisory count lowered on win")
}

func TestDrawActivityMissing(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, 10, 5, 5)

	res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 99, UserID: 10})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, utils.CodeActivityNotFound, res.Code)
}

func TestDrawActivityWindow(t *testing.T) {
	t.Run("NotStarted", func(t *testing.T) {
		f := newFixture(t)
		a := f.addActivity(t, 1, model.ActivityStatusActive)
		a.StartTime = f.now.Add(time.Minute)
		require.NoError(t, f.store.Put(store.NamespaceActivities, 1, a))
		f.addUser(t, 10, 5, 5)

		res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, utils.CodeActivityNotStarted, res.Code)
	})

	t.Run("NotPreheated", func(t *testing.T) {
		f := newFixture(t)
		f.addActivity(t, 1, model.ActivityStatusNotStarted)
		f.addUser(t, 10, 5, 5)

		res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, utils.CodeActivityNotStarted, res.Code)
	})

	t.Run("Ended", func(t *testing.T) {
		f := newFixture(t)
		a := f.addActivity(t, 1, model.ActivityStatusActive)
		a.EndTime = f.now.Add(-time.Minute)
		require.NoError(t, f.store.Put(store.NamespaceActivities, 1, a))
		f.addUser(t, 10, 5, 5)

		res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, utils.CodeActivityEnded, res.Code)
	})
}

func TestDrawUserMissing(t *testing.T) {
	f := newFixture(t)
	f.addActivity(t, 1, model.ActivityStatusActive)

	res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 404})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, utils.CodeUserNotFound, res.Code)
}

func TestDrawInvalidRequest(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 0, UserID: 0})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, utils.CodeInvalidParam, res.Code)
}

// A user with one draw per day gets a hard rejection on the second attempt,
// no matter how the first one went.
func TestSecondDrawExhaustsQuota(t *testing.T) {
	f := newFixture(t)
	f.addActivity(t, 1, model.ActivityStatusActive)
	f.addUser(t, 10, 1, 1)
	f.seedTickets(t, 1, 7, "mug", 10)

	first, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
	require.NoError(t, err)
	assert.True(t, first.Success)

	second, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, utils.CodeDrawQuotaExhausted, second.Code)
	assert.Equal(t, "draw quota exhausted", second.Message)
}

func TestWinCapYieldsLose(t *testing.T) {
	f := newFixture(t)
	f.addActivity(t, 1, model.ActivityStatusActive)
	f.addUser(t, 10, 10, 0)
	f.seedTickets(t, 1, 7, "mug", 10)

	res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
	require.NoError(t, err)
	assert.True(t, res.Success, "hitting the win cap is a lose, not a rejection")
	assert.Nil(t, res.Prize)
	assert.Equal(t, "already at win cap", res.Message)
	assert.Equal(t, 10, f.tokens.Get(1).Size(), "no ticket consumed")
}

func TestProbabilityGateLosesBeforeWinQuota(t *testing.T) {
	f := newFixture(t)
	a := f.addActivity(t, 1, model.ActivityStatusActive)
	a.ProbabilityBasis = 100
	require.NoError(t, f.store.Put(store.NamespaceActivities, 1, a))
	f.addUser(t, 10, 5, 5)
	f.seedTickets(t, 1, 7, "mug", 10)
	f.svc.chance = func(basis int) bool { return false }

	res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.Prize)

	// The gate fires before the win-side state is touched.
	remaining, err := f.quota.RemainingWins(10, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
	assert.Equal(t, 10, f.tokens.Get(1).Size())
}

func TestNoTicketIsLose(t *testing.T) {
	f := newFixture(t)
	f.addActivity(t, 1, model.ActivityStatusActive)
	f.addUser(t, 10, 5, 5)

	res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.Prize)
	assert.Equal(t, "no prize currently available", res.Message)
}

func TestFullQueueDeclinesBeforeClaim(t *testing.T) {
	f := newFixture(t)
	f.addActivity(t, 1, model.ActivityStatusActive)
	f.addUser(t, 10, 5, 5)
	f.seedTickets(t, 1, 7, "mug", 10)

	for f.events.Size() < f.events.Cap() {
		require.NoError(t, f.events.TryOffer(&model.WinEvent{UserID: 1}))
	}

	res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.Prize)
	assert.Equal(t, 10, f.tokens.Get(1).Size(), "no ticket touched while the queue is full")
}

func TestClosedQueueReleasesTicket(t *testing.T) {
	f := newFixture(t)
	f.addActivity(t, 1, model.ActivityStatusActive)
	f.addUser(t, 10, 5, 5)
	f.seedTickets(t, 1, 7, "mug", 3)
	f.events.Close()

	res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: 10})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.Prize)
	assert.Equal(t, 3, f.tokens.Get(1).Size(), "claimed ticket went back")
}

// Wins across all users never exceed the seeded ticket count, even under
// heavy concurrency.
func TestWinsNeverExceedSeededTickets(t *testing.T) {
	const (
		tickets = 5
		users   = 50
	)
	f := newFixture(t)
	f.addActivity(t, 1, model.ActivityStatusActive)
	for i := uint64(1); i <= users; i++ {
		f.addUser(t, i, 10, 10)
	}
	f.seedTickets(t, 1, 7, "mug", tickets)

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := uint64(1); i <= users; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				res, err := f.svc.Draw(context.Background(), &Request{ActivityID: 1, UserID: userID})
				assert.NoError(t, err)
				if res != nil && res.Prize != nil {
					wins.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(tickets), wins.Load())
	assert.Equal(t, tickets, f.events.Size(), "one event per win")
}
