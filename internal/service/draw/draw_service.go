// Package draw implements the admission pipeline for a draw request. One
// call runs validation, quota checks, and a ticket claim, then hands the win
// to the event queue and returns without waiting for persistence.
package draw

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"prizedraw/internal/event"
	"prizedraw/internal/model"
	"prizedraw/internal/monitor"
	"prizedraw/internal/quota"
	"prizedraw/internal/store"
	"prizedraw/internal/token"
	"prizedraw/pkg/log"
	"prizedraw/pkg/utils"
)

// Service draw service interface
type Service interface {
	// Execute one draw attempt
	Draw(ctx context.Context, req *Request) (*Result, error)
}

// Request draw request
type Request struct {
	ActivityID uint64 `json:"activity_id" binding:"required"`
	UserID     uint64 `json:"user_id"`
}

// PrizeInfo identifies the prize attached to a winning draw
type PrizeInfo struct {
	PrizeID   uint64 `json:"prize_id"`
	PrizeName string `json:"prize_name"`
}

// Result draw result. Success=false means the request was rejected before a
// draw attempt happened; Success=true with a nil Prize is an ordinary lose.
type Result struct {
	Success bool               `json:"success"`
	Code    utils.ResponseCode `json:"code"`
	Message string             `json:"message"`
	Prize   *PrizeInfo         `json:"prize,omitempty"`
}

type service struct {
	store  *store.TreeStore
	quota  *quota.Tracker
	tokens *token.Registry
	events *event.Queue

	now    func() time.Time
	chance func(basis int) bool
}

// NewService creates a draw service
func NewService(st *store.TreeStore, tracker *quota.Tracker, registry *token.Registry, events *event.Queue) Service {
	return &service{
		store:  st,
		quota:  tracker,
		tokens: registry,
		events: events,
		now:    time.Now,
		chance: func(basis int) bool { return rand.Intn(basis) == 0 },
	}
}

func rejected(code utils.ResponseCode, message string) *Result {
	return &Result{Success: false, Code: code, Message: message}
}

func lost(message string) *Result {
	return &Result{Success: true, Code: utils.CodeSuccess, Message: message}
}

// Draw runs the full pipeline. Business rejections come back as results,
// never as errors; the returned error is reserved for internal failures.
func (s *service) Draw(ctx context.Context, req *Request) (*Result, error) {
	start := s.now()
	actLabel := strconv.FormatUint(req.ActivityID, 10)
	outcome := "error"
	defer func() {
		monitor.DrawRequestsTotal.WithLabelValues(actLabel, outcome).Inc()
		monitor.DrawDuration.WithLabelValues(actLabel).Observe(time.Since(start).Seconds())
		monitor.EventQueueDepth.Set(float64(s.events.Size()))
	}()

	if req.ActivityID == 0 || req.UserID == 0 {
		outcome = "invalid"
		return rejected(utils.CodeInvalidParam, "missing activity or user"), nil
	}

	// Validating
	var activity model.Activity
	found, err := s.store.Get(store.NamespaceActivities, int64(req.ActivityID), &activity)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "load activity")
	}
	if !found {
		outcome = "not_found"
		return rejected(utils.CodeActivityNotFound, "activity not found"), nil
	}

	now := s.now()
	switch {
	case activity.HasEnded(now):
		outcome = "ended"
		return rejected(utils.CodeActivityEnded, "activity has ended"), nil
	case !activity.IsActive(now):
		outcome = "not_started"
		return rejected(utils.CodeActivityNotStarted, "activity has not started"), nil
	}

	// QuotaCheck: the draw attempt itself
	ok, err := s.quota.TryDraw(req.UserID, req.ActivityID)
	if err != nil {
		if utils.GetErrorCode(err) == utils.CodeUserNotFound {
			outcome = "user_not_found"
			return rejected(utils.CodeUserNotFound, "user not found"), nil
		}
		return nil, err
	}
	if !ok {
		outcome = "draw_quota_exhausted"
		return rejected(utils.CodeDrawQuotaExhausted, "draw quota exhausted"), nil
	}

	// An optional random gate thins the field before any win-side state is
	// touched. basis<=1 disables it.
	if activity.ProbabilityBasis > 1 && !s.chance(activity.ProbabilityBasis) {
		outcome = "lose"
		return lost("no prize this time"), nil
	}

	// QuotaCheck: the win cap, checked before the claim. Hitting the cap
	// here can cost the slot even when no ticket turns out to be claimable;
	// claim-first would change which prizes land where, so the check stays
	// in front.
	ok, err = s.quota.TryWin(req.UserID, req.ActivityID)
	if err != nil {
		return nil, err
	}
	if !ok {
		outcome = "win_quota_exhausted"
		return lost("already at win cap"), nil
	}

	// Back off before claiming when the recorder cannot keep up, so a
	// claimed ticket never waits on a full queue.
	if s.events.Size() >= s.events.Cap() {
		outcome = "busy"
		log.WithFields(map[string]interface{}{
			"activity_id": req.ActivityID,
			"queue_depth": s.events.Size(),
		}).Warn("Event queue full, declining draw")
		return lost("no prize this time"), nil
	}

	// TicketClaim
	allocator := s.tokens.Get(req.ActivityID)
	ticket := allocator.Claim(now.Unix())
	if ticket == nil {
		outcome = "no_ticket"
		return lost("no prize currently available"), nil
	}
	monitor.TicketsClaimedTotal.WithLabelValues(actLabel).Inc()

	if err := s.events.TryOffer(&model.WinEvent{
		UserID:     req.UserID,
		ActivityID: req.ActivityID,
		PrizeID:    ticket.PrizeID,
		PrizeName:  ticket.PrizeName,
		WinTime:    now,
	}); err != nil {
		// Recorder gone or capacity raced away since the precheck. Put the
		// ticket back so the prize is not lost with the event.
		allocator.Release(ticket)
		monitor.TicketsReturnedTotal.WithLabelValues(actLabel).Inc()
		outcome = "busy"
		log.WithFields(map[string]interface{}{
			"activity_id": req.ActivityID,
			"user_id":     req.UserID,
			"error":       err.Error(),
		}).Warn("Failed to enqueue win event, ticket released")
		return lost("no prize this time"), nil
	}

	s.deductPrize(ticket.PrizeID)

	outcome = "win"
	log.WithFields(map[string]interface{}{
		"activity_id": req.ActivityID,
		"user_id":     req.UserID,
		"prize_id":    ticket.PrizeID,
		"prize_name":  ticket.PrizeName,
	}).Info("Draw won")

	return &Result{
		Success: true,
		Code:    utils.CodeSuccess,
		Message: "congratulations",
		Prize:   &PrizeInfo{PrizeID: ticket.PrizeID, PrizeName: ticket.PrizeName},
	}, nil
}

// deductPrize lowers the advisory remaining count on the prize entity. The
// ticket count is the authoritative scarcity control, so a failure here is
// logged and swallowed.
func (s *service) deductPrize(prizeID uint64) {
	var prize model.Prize
	found, err := s.store.Get(store.NamespacePrizes, int64(prizeID), &prize)
	if err != nil || !found {
		return
	}
	if prize.RemainingAmount > 0 {
		prize.RemainingAmount--
	}
	if err := s.store.Put(store.NamespacePrizes, int64(prizeID), &prize); err != nil {
		log.WithFields(map[string]interface{}{
			"prize_id": prizeID,
			"error":    err.Error(),
		}).Error("Failed to update prize remaining amount")
	}
}
