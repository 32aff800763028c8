/*
scheduler.go - Periodic Jira sync

PURPOSE:
  Keeps Jira-linked projects current without a manual POST /api/jira/sync
  per project. Every interval it syncs each linked project with the
  configured Jira credentials.

DESIGN:
  - Runs a background goroutine with a ticker
  - Runs once immediately on Start
  - A failing project is logged and does not stop the others
  - Each run is bounded by the interval so runs never overlap

CONFIGURATION:
  - Interval: How often to sync (jira-sync-interval, 0 disables)

USAGE:
  scheduler := NewJiraSyncScheduler(importer, log, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - jira.go: Manual sync endpoint
  - jira/importer.go: SyncAll
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Syncer syncs every linked project. *jira.Importer satisfies it.
type Syncer interface {
	SyncAll(ctx context.Context) (int, error)
}

// JiraSyncScheduler periodically runs a Syncer.
type JiraSyncScheduler struct {
	Syncer   Syncer
	Log      *zap.Logger
	Interval time.Duration

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewJiraSyncScheduler creates a scheduler; it does nothing until Start.
func NewJiraSyncScheduler(syncer Syncer, log *zap.Logger, interval time.Duration) *JiraSyncScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &JiraSyncScheduler{
		Syncer:   syncer,
		Log:      log,
		Interval: interval,
	}
}

// Start begins the scheduler. A non-positive interval leaves it disabled.
func (s *JiraSyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Interval <= 0 {
		s.Log.Info("jira sync scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.Log.Info("jira sync scheduler started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for a running sync to finish.
func (s *JiraSyncScheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker = nil
	s.mu.Unlock()
	if ticker == nil {
		return
	}

	ticker.Stop()
	close(stop)
	s.wg.Wait()
	s.Log.Info("jira sync scheduler stopped")
}

// LastRun returns when the last sync finished, zero before the first.
func (s *JiraSyncScheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *JiraSyncScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	s.syncOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.syncOnce(ctx)
		case <-stop:
			return
		}
	}
}

func (s *JiraSyncScheduler) syncOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Interval)
	defer cancel()

	started := time.Now()
	synced, err := s.Syncer.SyncAll(ctx)
	if err != nil {
		s.Log.Warn("jira sync finished with errors",
			zap.Int("projects", synced),
			zap.Duration("took", time.Since(started)),
			zap.Error(err))
	} else {
		s.Log.Info("jira sync finished",
			zap.Int("projects", synced),
			zap.Duration("took", time.Since(started)))
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()
}
