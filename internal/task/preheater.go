// Package task holds the background jobs that keep campaigns moving without
// operator action: preheating activities shortly before their window opens
// and closing them once it has passed.
package task

import (
	"context"
	"sync"
	"time"

	"prizedraw/internal/model"
	"prizedraw/internal/service/activity"
	"prizedraw/pkg/log"
)

// Preheater periodically scans activities and preheats any whose start time
// falls within the lookahead window. Activities past their end time are
// closed on the same sweep.
type Preheater struct {
	activities activity.Service

	interval  time.Duration
	lookahead time.Duration

	now func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewPreheater creates a preheater scanning every interval, preheating
// activities that start within lookahead.
func NewPreheater(svc activity.Service, interval, lookahead time.Duration) *Preheater {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if lookahead <= 0 {
		lookahead = time.Minute
	}
	return &Preheater{
		activities: svc,
		interval:   interval,
		lookahead:  lookahead,
		now:        time.Now,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the scan loop. One sweep runs immediately so a restart
// mid-campaign does not wait a full interval to re-arm live activities.
func (p *Preheater) Start() {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.Sweep(context.Background())
		for {
			select {
			case <-ticker.C:
				p.Sweep(context.Background())
			case <-p.stopCh:
				return
			}
		}
	}()
	log.WithFields(map[string]interface{}{
		"interval":  p.interval.String(),
		"lookahead": p.lookahead.String(),
	}).Info("Activity preheater started")
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (p *Preheater) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		<-p.done
		log.Info("Activity preheater stopped")
	})
}

// Sweep runs one pass over all activities. Exported so the admin API can
// trigger it on demand.
func (p *Preheater) Sweep(ctx context.Context) {
	all, err := p.activities.ListActivities(ctx, 0)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Error("Preheater failed to list activities")
		return
	}

	now := p.now()
	for _, a := range all {
		switch {
		case a.Status == model.ActivityStatusActive && a.HasEnded(now):
			if err := p.activities.EndActivity(ctx, a.ID); err != nil {
				log.WithFields(map[string]interface{}{
					"activity_id": a.ID,
					"error":       err.Error(),
				}).Error("Preheater failed to end activity")
			}
		case a.Status == model.ActivityStatusNotStarted && !a.StartTime.After(now.Add(p.lookahead)) && !a.HasEnded(now):
			if err := p.activities.Preheat(ctx, a.ID); err != nil {
				log.WithFields(map[string]interface{}{
					"activity_id": a.ID,
					"error":       err.Error(),
				}).Warn("Preheat failed, will retry on next sweep")
			}
		}
	}
}
