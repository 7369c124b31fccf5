package event

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"prizedraw/internal/model"
	"prizedraw/internal/monitor"
	"prizedraw/internal/store"
	"prizedraw/pkg/log"
)

// Recorder is the queue's single consumer. It assigns each win event a
// snowflake ID and persists it as a win record. One consumer means records
// land in the store in the order wins were admitted.
type Recorder struct {
	queue *Queue
	store *store.TreeStore
	node  *snowflake.Node

	stopOnce sync.Once
	done     chan struct{}
}

// NewRecorder creates a recorder consuming from q and writing to st.
// nodeID distinguishes instances if several processes ever share an ID
// space; a single deployment passes 1.
func NewRecorder(q *Queue, st *store.TreeStore, nodeID int64) (*Recorder, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		queue: q,
		store: st,
		node:  node,
		done:  make(chan struct{}),
	}, nil
}

// Start launches the consumer goroutine. A panic in event handling is
// logged and the loop restarts; one poison event must not stop all
// recording.
func (r *Recorder) Start() {
	go func() {
		defer close(r.done)
		for {
			if exited := r.consume(); exited {
				return
			}
			log.Warn("Win recorder restarting after panic")
		}
	}()
	log.Info("Win recorder started")
}

// consume runs the take loop. Returns true on clean queue shutdown, false
// after recovering from a panic.
func (r *Recorder) consume() (exited bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithFields(map[string]interface{}{
				"panic": rec,
			}).Error("Win recorder panicked")
			exited = false
		}
	}()

	for {
		ev, ok := r.queue.Take()
		if !ok {
			return true
		}
		r.record(ev)
	}
}

// Stop closes the queue, waits for the consumer to drain what is buffered,
// and then performs one last non-blocking sweep in case the consumer died
// between the close and the wait. Blocks at most until the consumer exits.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.queue.Close()
		<-r.done

		drained := 0
		for {
			ev, ok := r.queue.TryTake()
			if !ok {
				break
			}
			r.record(ev)
			drained++
		}
		if drained > 0 {
			log.WithFields(map[string]interface{}{
				"events": drained,
			}).Info("Win recorder drained remaining events on shutdown")
		}
		log.Info("Win recorder stopped")
	})
}

func (r *Recorder) record(ev *model.WinEvent) {
	if ev == nil {
		return
	}

	rec := &model.WinRecord{
		ID:         r.node.Generate().Int64(),
		UserID:     ev.UserID,
		ActivityID: ev.ActivityID,
		PrizeID:    ev.PrizeID,
		PrizeName:  ev.PrizeName,
		WinTime:    ev.WinTime,
	}
	if rec.WinTime.IsZero() {
		rec.WinTime = time.Now()
	}

	if err := r.store.Put(store.NamespaceWinRecords, rec.ID, rec); err != nil {
		log.WithFields(map[string]interface{}{
			"user_id":     rec.UserID,
			"activity_id": rec.ActivityID,
			"prize_id":    rec.PrizeID,
			"error":       err.Error(),
		}).Error("Failed to persist win record")
		return
	}
	monitor.WinRecordsTotal.Inc()

	log.WithFields(map[string]interface{}{
		"record_id":   rec.ID,
		"user_id":     rec.UserID,
		"activity_id": rec.ActivityID,
		"prize_id":    rec.PrizeID,
		"prize_name":  rec.PrizeName,
	}).Info("Win record persisted")
}
