// Package sweep implements the lifecycle sweeper (C10): a periodic
// background task that reconciles the on-disk restore store against its
// configured retention, cooperating with in-flight restores via the
// manager's reader/writer lock.
package sweep

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/TilBlechschmidt/restic-dl/internal/metrics"
	"github.com/TilBlechschmidt/restic-dl/internal/store"
)

// Locker is the subset of sync.RWMutex the sweeper needs — satisfied by
// engine.Manager.PurgeLock().
type Locker interface {
	Lock()
	Unlock()
}

// Sweeper periodically reconciles a Store's meta/ and data/ directories.
type Sweeper struct {
	store    *store.Store
	lock     Locker
	lifetime time.Duration
	interval time.Duration
	logger   *zap.Logger

	cron gocron.Scheduler
}

// New returns a Sweeper over st, guarded by lock for writing, purging
// metadata older than lifetime, waking up every interval.
func New(st *store.Store, lock Locker, lifetime, interval time.Duration, logger *zap.Logger) (*Sweeper, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Sweeper{
		store:    st,
		lock:     lock,
		lifetime: lifetime,
		interval: interval,
		logger:   logger.Named("sweeper"),
		cron:     cron,
	}, nil
}

// Start registers the recurring sweep job and starts the scheduler. Call
// Stop to shut it down gracefully.
func (s *Sweeper) Start() error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.runSweep),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for an in-progress sweep to finish.
func (s *Sweeper) Stop() error {
	return s.cron.Shutdown()
}

func (s *Sweeper) runSweep() {
	s.lock.Lock()
	defer s.lock.Unlock()

	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	active, removed, err := s.expiryPass()
	if err != nil {
		s.logger.Error("expiry pass failed", zap.Error(err))
		return
	}

	orphaned, err := s.orphanDataPass(active)
	if err != nil {
		s.logger.Error("orphan data pass failed", zap.Error(err))
		return
	}

	dangling, err := s.danglingMetadataPass(active)
	if err != nil {
		s.logger.Error("dangling metadata pass failed", zap.Error(err))
		return
	}

	s.logger.Info("sweep complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("expired", removed),
		zap.Int("orphaned_data", orphaned),
		zap.Int("dangling_metadata", dangling),
		zap.Int("active", len(active)),
	)
}

// expiryPass enumerates meta/*.json, dropping corrupt or aged-out entries
// and returning the surviving metadata keyed by restore id.
func (s *Sweeper) expiryPass() (map[string]*store.Metadata, int, error) {
	metaDir := filepath.Join(s.store.Root(), "meta")
	entries, err := os.ReadDir(metaDir)
	if err != nil {
		return nil, 0, err
	}

	active := make(map[string]*store.Metadata)
	removed := 0
	now := time.Now()

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		path := filepath.Join(metaDir, name)

		meta, err := readMetadataFile(path)
		if err != nil {
			os.Remove(path)
			removed++
			continue
		}

		if now.Sub(meta.CreatedAt) > s.lifetime {
			os.Remove(filepath.Join(s.store.Root(), "data", id+".bin"))
			os.Remove(path)
			removed++
			continue
		}

		active[id] = meta
	}

	return active, removed, nil
}

// orphanDataPass removes any data/*.bin file whose id has no surviving
// metadata entry — a placeholder that expired, or a leftover from a write
// that never committed metadata at all.
func (s *Sweeper) orphanDataPass(active map[string]*store.Metadata) (int, error) {
	dataDir := filepath.Join(s.store.Root(), "data")
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".bin") {
			continue
		}
		id := strings.TrimSuffix(name, ".bin")
		if _, ok := active[id]; !ok {
			os.Remove(filepath.Join(dataDir, name))
			removed++
		}
	}
	return removed, nil
}

// danglingMetadataPass removes committed metadata whose data file has gone
// missing — the artifact was committed then lost; a fresh request rebuilds
// it under the same deterministic id.
func (s *Sweeper) danglingMetadataPass(active map[string]*store.Metadata) (int, error) {
	removed := 0
	for id, meta := range active {
		if !meta.Committed() {
			continue
		}
		dataPath := filepath.Join(s.store.Root(), "data", id+".bin")
		if _, err := os.Stat(dataPath); err != nil {
			os.Remove(filepath.Join(s.store.Root(), "meta", id+".json"))
			removed++
		}
	}
	return removed, nil
}

func readMetadataFile(path string) (*store.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m store.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
