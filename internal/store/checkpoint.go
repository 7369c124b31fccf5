package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"prizedraw/internal/monitor"
	"prizedraw/pkg/log"
)

// CheckpointConfig checkpoint manager configuration
type CheckpointConfig struct {
	Dir        string        `mapstructure:"dir"`
	Filename   string        `mapstructure:"filename"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// Checkpoint periodically serializes the store to disk and restores it at
// startup. Writes go to a temp file first and replace the live file with an
// atomic rename; a failed replace is retried with backoff. Checkpoint
// failures are logged and retried on the next tick; they never surface into
// draw traffic.
type Checkpoint struct {
	store  *TreeStore
	cfg    CheckpointConfig
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu sync.Mutex // serializes Flush against the periodic loop
}

// NewCheckpoint creates a checkpoint manager for the store.
func NewCheckpoint(store *TreeStore, cfg CheckpointConfig) *Checkpoint {
	if cfg.Filename == "" {
		cfg.Filename = "prizedraw.snapshot"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Checkpoint{
		store:  store,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

func (c *Checkpoint) path() string {
	return filepath.Join(c.cfg.Dir, c.cfg.Filename)
}

// Load restores the store from the last checkpoint file, if one exists.
// Called once at startup before any draw traffic is accepted.
func (c *Checkpoint) Load() error {
	data, err := os.ReadFile(c.path())
	if err != nil {
		if os.IsNotExist(err) {
			log.WithFields(map[string]interface{}{
				"path": c.path(),
			}).Info("No checkpoint file, starting with an empty store")
			return nil
		}
		return fmt.Errorf("read checkpoint: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}

	c.store.Restore(&snap)
	log.WithFields(map[string]interface{}{
		"path":      c.path(),
		"timestamp": snap.Timestamp.Format(time.RFC3339),
	}).Info("Store restored from checkpoint")
	return nil
}

// Start runs the periodic checkpoint loop until Stop is called.
func (c *Checkpoint) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.Flush(false); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err.Error(),
					}).Error("Periodic checkpoint failed")
				}
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the loop and writes a final checkpoint.
func (c *Checkpoint) Stop() {
	close(c.stopCh)
	c.wg.Wait()
	if err := c.Flush(true); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Error("Final checkpoint failed")
	}
}

// Flush writes a checkpoint now. Unless force is set, it is skipped when the
// store has not changed since the last snapshot.
func (c *Checkpoint) Flush(force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && !c.store.IsDirty() {
		log.Debug("Store unchanged, skipping checkpoint")
		return nil
	}

	start := time.Now()
	if err := c.write(); err != nil {
		monitor.CheckpointsTotal.WithLabelValues("error").Inc()
		return err
	}
	monitor.CheckpointsTotal.WithLabelValues("success").Inc()
	monitor.CheckpointDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (c *Checkpoint) write() error {
	snap := c.store.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(c.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.cfg.Dir, c.cfg.Filename+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := c.replace(tmpName); err != nil {
		os.Remove(tmpName)
		return err
	}

	log.WithFields(map[string]interface{}{
		"path":  c.path(),
		"bytes": len(data),
	}).Info("Checkpoint written")
	return nil
}

// replace renames the temp file over the live checkpoint, retrying with
// backoff when the rename fails.
func (c *Checkpoint) replace(tmpName string) error {
	var err error
	delay := c.cfg.RetryDelay
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err = os.Rename(tmpName, c.path()); err == nil {
			return nil
		}
		log.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Checkpoint replace failed, retrying")
		time.Sleep(delay)
		delay *= 2
	}
	return fmt.Errorf("replace checkpoint after %d attempts: %w", c.cfg.MaxRetries, err)
}
