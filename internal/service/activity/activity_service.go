// Package activity holds the administrative side of the campaign engine:
// activity and prize CRUD, allocation plans, and the preheat step that turns
// a configured activity into a live one.
package activity

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"prizedraw/internal/model"
	"prizedraw/internal/monitor"
	"prizedraw/internal/quota"
	"prizedraw/internal/store"
	"prizedraw/internal/token"
	"prizedraw/pkg/log"
	"prizedraw/pkg/utils"
)

// Service activity administration interface
type Service interface {
	CreateActivity(ctx context.Context, req *CreateActivityRequest) (*model.Activity, error)
	UpdateActivity(ctx context.Context, req *UpdateActivityRequest) (*model.Activity, error)
	GetActivity(ctx context.Context, id uint64) (*model.Activity, error)
	ListActivities(ctx context.Context, limit int) ([]*model.Activity, error)
	EndActivity(ctx context.Context, id uint64) error

	CreatePrize(ctx context.Context, req *CreatePrizeRequest) (*model.Prize, error)
	GetPrize(ctx context.Context, id uint64) (*model.Prize, error)
	ListPrizes(ctx context.Context, limit int) ([]*model.Prize, error)

	SetAllocationPlan(ctx context.Context, activityID, prizeID uint64, amount int) error
	ListAllocationPlans(ctx context.Context, activityID uint64) ([]*model.AllocationPlan, error)

	// Preheat seeds the activity's tickets, warms the quota cache, and
	// flips the activity to active. Safe to re-run; re-seeding replaces
	// the previous ticket set.
	Preheat(ctx context.Context, activityID uint64) error
}

// CreateActivityRequest create activity request
type CreateActivityRequest struct {
	Title            string    `json:"title" binding:"required"`
	StartTime        time.Time `json:"start_time" binding:"required"`
	EndTime          time.Time `json:"end_time" binding:"required"`
	Mode             int8      `json:"mode"`
	ProbabilityBasis int       `json:"probability_basis"`
}

// UpdateActivityRequest update activity request
type UpdateActivityRequest struct {
	ID               uint64    `json:"-"`
	Title            string    `json:"title"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	ProbabilityBasis int       `json:"probability_basis"`
}

// CreatePrizeRequest create prize request
type CreatePrizeRequest struct {
	Name        string `json:"name" binding:"required"`
	TotalAmount int    `json:"total_amount" binding:"required,min=1"`
	ImageURL    string `json:"image_url"`
}

type service struct {
	store  *store.TreeStore
	quota  *quota.Tracker
	tokens *token.Registry

	now func() time.Time
}

// NewService creates an activity service
func NewService(st *store.TreeStore, tracker *quota.Tracker, registry *token.Registry) Service {
	return &service{
		store:  st,
		quota:  tracker,
		tokens: registry,
		now:    time.Now,
	}
}

// nextID allocates the next key in a namespace: highest existing key plus
// one. Admin writes are rare and serialized per namespace, so a floor query
// at the top of the key space is enough.
func (s *service) nextID(namespace string) uint64 {
	var discard json.RawMessage
	key, found, err := s.store.Floor(namespace, math.MaxInt64, &discard)
	if err != nil || !found {
		return 1
	}
	return uint64(key) + 1
}

func (s *service) CreateActivity(ctx context.Context, req *CreateActivityRequest) (*model.Activity, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, utils.NewError(utils.CodeInvalidParam, "end time must be after start time")
	}
	mode := req.Mode
	if mode == 0 {
		mode = model.ActivityModeScheduled
	}

	now := s.now()
	a := &model.Activity{
		ID:               s.nextID(store.NamespaceActivities),
		Title:            req.Title,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Mode:             mode,
		Status:           model.ActivityStatusNotStarted,
		ProbabilityBasis: req.ProbabilityBasis,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Put(store.NamespaceActivities, int64(a.ID), a); err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"activity_id": a.ID,
		"title":       a.Title,
		"start_time":  a.StartTime,
		"end_time":    a.EndTime,
	}).Info("Activity created")
	return a, nil
}

func (s *service) UpdateActivity(ctx context.Context, req *UpdateActivityRequest) (*model.Activity, error) {
	var a model.Activity
	found, err := s.store.Get(store.NamespaceActivities, int64(req.ID), &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrActivityNotFound
	}
	if a.Status == model.ActivityStatusEnded {
		return nil, utils.ErrActivityEnded
	}

	if req.Title != "" {
		a.Title = req.Title
	}
	if !req.StartTime.IsZero() {
		a.StartTime = req.StartTime
	}
	if !req.EndTime.IsZero() {
		a.EndTime = req.EndTime
	}
	if req.ProbabilityBasis != 0 {
		a.ProbabilityBasis = req.ProbabilityBasis
	}
	if !a.EndTime.After(a.StartTime) {
		return nil, utils.NewError(utils.CodeInvalidParam, "end time must be after start time")
	}
	a.UpdatedAt = s.now()

	if err := s.store.Put(store.NamespaceActivities, int64(a.ID), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *service) GetActivity(ctx context.Context, id uint64) (*model.Activity, error) {
	var a model.Activity
	found, err := s.store.Get(store.NamespaceActivities, int64(id), &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrActivityNotFound
	}
	return &a, nil
}

func (s *service) ListActivities(ctx context.Context, limit int) ([]*model.Activity, error) {
	var out []*model.Activity
	var decodeErr error
	s.store.Scan(store.NamespaceActivities, limit, func(key int64, value []byte) bool {
		var a model.Activity
		if err := json.Unmarshal(value, &a); err != nil {
			decodeErr = utils.WrapError(err, utils.CodeEncodingError, "decode activity")
			return false
		}
		out = append(out, &a)
		return true
	})
	return out, decodeErr
}

// EndActivity closes the activity and drops its unclaimed tickets.
func (s *service) EndActivity(ctx context.Context, id uint64) error {
	var a model.Activity
	found, err := s.store.Get(store.NamespaceActivities, int64(id), &a)
	if err != nil {
		return err
	}
	if !found {
		return utils.ErrActivityNotFound
	}
	if a.Status == model.ActivityStatusEnded {
		return nil
	}

	a.Status = model.ActivityStatusEnded
	a.UpdatedAt = s.now()
	if err := s.store.Put(store.NamespaceActivities, int64(id), &a); err != nil {
		return err
	}

	if allocator, ok := s.tokens.Peek(id); ok {
		dropped := allocator.Size()
		allocator.Clear()
		log.WithFields(map[string]interface{}{
			"activity_id": id,
			"dropped":     dropped,
		}).Info("Activity ended, unclaimed tickets dropped")
	}
	return nil
}

func (s *service) CreatePrize(ctx context.Context, req *CreatePrizeRequest) (*model.Prize, error) {
	now := s.now()
	p := &model.Prize{
		ID:              s.nextID(store.NamespacePrizes),
		Name:            req.Name,
		TotalAmount:     req.TotalAmount,
		RemainingAmount: req.TotalAmount,
		ImageURL:        req.ImageURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Put(store.NamespacePrizes, int64(p.ID), p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) GetPrize(ctx context.Context, id uint64) (*model.Prize, error) {
	var p model.Prize
	found, err := s.store.Get(store.NamespacePrizes, int64(id), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.ErrPrizeNotFound
	}
	return &p, nil
}

func (s *service) ListPrizes(ctx context.Context, limit int) ([]*model.Prize, error) {
	var out []*model.Prize
	var decodeErr error
	s.store.Scan(store.NamespacePrizes, limit, func(key int64, value []byte) bool {
		var p model.Prize
		if err := json.Unmarshal(value, &p); err != nil {
			decodeErr = utils.WrapError(err, utils.CodeEncodingError, "decode prize")
			return false
		}
		out = append(out, &p)
		return true
	})
	return out, decodeErr
}

// SetAllocationPlan binds amount tickets of a prize to an activity. Amount
// zero removes the binding.
func (s *service) SetAllocationPlan(ctx context.Context, activityID, prizeID uint64, amount int) error {
	if amount < 0 {
		return utils.NewError(utils.CodeInvalidParam, "amount must not be negative")
	}
	if _, err := s.GetActivity(ctx, activityID); err != nil {
		return err
	}
	if _, err := s.GetPrize(ctx, prizeID); err != nil {
		return err
	}

	plan := &model.AllocationPlan{ActivityID: activityID, PrizeID: prizeID, Amount: amount}
	if amount == 0 {
		s.store.Remove(store.NamespacePlans, plan.Key())
		return nil
	}
	return s.store.Put(store.NamespacePlans, plan.Key(), plan)
}

// ListAllocationPlans returns the plans for one activity. Plan keys group by
// activity in the upper 32 bits, so the scan filters on that prefix.
func (s *service) ListAllocationPlans(ctx context.Context, activityID uint64) ([]*model.AllocationPlan, error) {
	var out []*model.AllocationPlan
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
		out = append(out, &p)
		return true
	})
	return out, decodeErr
}

func (s *service) Preheat(ctx context.Context, activityID uint64) error {
	a, err := s.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	now := s.now()
	if a.Status == model.ActivityStatusEnded || a.HasEnded(now) {
		return utils.ErrActivityEnded
	}

	plans, err := s.ListAllocationPlans(ctx, activityID)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		return utils.NewError(utils.CodeServiceError, "activity has no allocation plans")
	}

	items := make([]token.SeedItem, 0, len(plans))
	for _, plan := range plans {
		prize, err := s.GetPrize(ctx, plan.PrizeID)
		if err != nil {
			return err
		}
		items = append(items, token.SeedItem{Prize: prize, Amount: plan.Amount})
	}

	seeded := s.tokens.Get(activityID).Seed(items, a.StartTime, a.EndTime, a.Mode)
	monitor.TicketsSeededTotal.WithLabelValues(strconv.FormatUint(activityID, 10)).Add(float64(seeded))

	users, err := s.loadUsers()
	if err != nil {
		return err
	}
	s.quota.Preload(activityID, users)

	if a.Status != model.ActivityStatusActive {
		a.Status = model.ActivityStatusActive
		a.UpdatedAt = now
		if err := s.store.Put(store.NamespaceActivities, int64(activityID), a); err != nil {
			return err
		}
	}
	monitor.ActivitiesPreheatedTotal.Inc()

	log.WithFields(map[string]interface{}{
		"activity_id": activityID,
		"tickets":     seeded,
		"plans":       len(plans),
		"users":       len(users),
	}).Info("Activity preheated")
	return nil
}

func (s *service) loadUsers() ([]*model.User, error) {
	var users []*model.User
	var decodeErr error
	s.store.Scan(store.NamespaceUsers, 0, func(key int64, value []byte) bool {
		var u model.User
		if err := json.Unmarshal(value, &u); err != nil {
			decodeErr = utils.WrapError(err, utils.CodeEncodingError, "decode user")
			return false
		}
		users = append(users, &u)
		return true
	})
	return users, decodeErr
}
