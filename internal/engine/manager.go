package engine

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TilBlechschmidt/restic-dl/internal/backend"
	"github.com/TilBlechschmidt/restic-dl/internal/destination"
	"github.com/TilBlechschmidt/restic-dl/internal/ident"
	"github.com/TilBlechschmidt/restic-dl/internal/iowrap"
	"github.com/TilBlechschmidt/restic-dl/internal/metrics"
	"github.com/TilBlechschmidt/restic-dl/internal/progress"
	"github.com/TilBlechschmidt/restic-dl/internal/restore"
	"github.com/TilBlechschmidt/restic-dl/internal/store"
)

// Manager is the restore engine. One Manager is shared by every request
// goroutine; its PurgeLock is also taken (for writing) by the lifecycle
// sweeper, so a worker's read lock blocks a concurrent sweep for exactly as
// long as the worker runs.
type Manager struct {
	store         *store.Store
	keepFullPaths bool
	logger        *zap.Logger

	purgeLock sync.RWMutex

	mu       sync.Mutex
	progress map[ident.RestoreID]*progress.Tracker
}

// New returns a Manager backed by st. keepFullPaths controls whether
// directory restores preserve the full source path inside the archive or
// are rooted at the restored directory's own name.
func New(st *store.Store, keepFullPaths bool, logger *zap.Logger) *Manager {
	return &Manager{
		store:         st,
		keepFullPaths: keepFullPaths,
		logger:        logger,
		progress:      make(map[ident.RestoreID]*progress.Tracker),
	}
}

// PurgeLock exposes the reader/writer lock coordinating workers (readers)
// with the lifecycle sweeper (writer).
func (m *Manager) PurgeLock() *sync.RWMutex { return &m.purgeLock }

// Restore derives the deterministic ID for (repoID, snapshotID, sourcePath),
// short-circuiting if an artifact already exists. Otherwise it registers a
// progress tracker and dispatches a worker, waiting for the worker's first
// progress emission before returning so a caller never observes a
// not-found window for an ID it just requested.
func (m *Manager) Restore(ctx context.Context, repo backend.Repository, repoID, snapshotID, sourcePath string) (ident.RestoreID, error) {
	id := ident.NewRestoreID(repoID, snapshotID, sourcePath)

	if m.store.Exists(id) {
		return id, nil
	}

	tracker, started := m.registerWorker(id)
	if !started {
		// Another goroutine already dispatched a worker for this id between
		// our Exists check and now — collapse onto it.
		return id, nil
	}

	sub := tracker.Handle().Subscribe()
	defer sub.Close()

	go m.runWorker(id, repo, snapshotID, sourcePath, tracker)

	<-sub.C()
	return id, nil
}

func (m *Manager) registerWorker(id ident.RestoreID) (*progress.Tracker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.progress[id]; exists {
		return nil, false
	}
	tracker := progress.NewTracker()
	m.progress[id] = tracker
	return tracker, true
}

func (m *Manager) deregisterWorker(id ident.RestoreID) {
	m.mu.Lock()
	delete(m.progress, id)
	m.mu.Unlock()
}

func (m *Manager) runWorker(id ident.RestoreID, repo backend.Repository, snapshotID, sourcePath string, tracker *progress.Tracker) {
	m.purgeLock.RLock()
	releaseRead := sync.OnceFunc(m.purgeLock.RUnlock)
	defer releaseRead()

	ctx := context.Background()
	metrics.RestoresStarted.Inc()

	if err := m.work(ctx, id, repo, snapshotID, sourcePath, tracker); err != nil {
		m.logger.Warn("restore worker failed",
			zap.String("restore_id", id.String()),
			zap.String("source", sourcePath),
			zap.Error(err),
		)
		tracker.SetStatus(progress.StatusFailed)
		m.deregisterWorker(id)
		metrics.RestoresFailed.Inc()
		return
	}

	releaseRead()
	tracker.SetStatus(progress.StatusCompleted)
	m.deregisterWorker(id)
	metrics.RestoresCompleted.Inc()
}

func (m *Manager) work(ctx context.Context, id ident.RestoreID, repo backend.Repository, snapshotID, sourcePath string, tracker *progress.Tracker) error {
	plan, err := restore.NewPlan(ctx, repo, snapshotID, sourcePath)
	if err != nil {
		return err
	}
	content := plan.Content()
	source := plan.Source()

	if err := m.store.WriteMetadata(id, &store.Metadata{
		ID:        id.String(),
		Source:    source.Path,
		Content:   content,
		Hash:      nil,
		CreatedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("engine: failed to write placeholder metadata: %w", err)
	}

	tracker.SetState(progressFromContent(content))

	file, err := m.store.CreateData(id)
	if err != nil {
		return fmt.Errorf("engine: failed to create data file: %w", err)
	}

	hw := iowrap.NewHashWriter(file)
	bw := bufio.NewWriter(hw)

	var dest destination.Destination
	switch content.Kind {
	case restore.ContentFile:
		dest = destination.NewFileDestination(bw, tracker)
	case restore.ContentArchive:
		// Strip the parent, not the directory itself, so the archive is
		// rooted at the restored directory's own name.
		pathBase := path.Dir(source.Path)
		if m.keepFullPaths {
			pathBase = ""
		}
		dest = destination.NewArchiveDestination(bw, pathBase, tracker)
	}

	execErr := plan.Execute(ctx, dest)
	flushErr := bw.Flush()
	hash, _ := hw.Finalize()
	closeErr := file.Close()

	if execErr != nil {
		return fmt.Errorf("engine: restore execution failed: %w", execErr)
	}
	if flushErr != nil {
		return fmt.Errorf("engine: failed to flush restore output: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("engine: failed to close data file: %w", closeErr)
	}

	hashHex := hex.EncodeToString(hash[:])
	if err := m.store.WriteMetadata(id, &store.Metadata{
		ID:        id.String(),
		Source:    source.Path,
		Content:   content,
		Hash:      &hashHex,
		CreatedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("engine: failed to write committed metadata: %w", err)
	}

	return nil
}

func progressFromContent(c restore.Content) progress.Progress {
	p := progress.Progress{
		Data:   progress.Variable{Total: c.Size},
		Status: progress.StatusRestoring,
	}
	if c.Kind == restore.ContentArchive {
		files := progress.Variable{Total: c.Files}
		dirs := progress.Variable{Total: c.Directories}
		p.Files = &files
		p.Directories = &dirs
	}
	return p
}

// Progress returns the tracker for an in-flight restore, if one exists.
func (m *Manager) Progress(id ident.RestoreID) (*progress.Tracker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, ok := m.progress[id]
	return tr, ok
}

// FetchStatus describes the outcome of a Fetch call.
type FetchStatus int

const (
	FetchReady FetchStatus = iota
	FetchInProgress
)

// FetchResult is the outcome of looking up a restore by ID.
type FetchResult struct {
	Status   FetchStatus
	DataPath string
	Source   string
	Hash     string
	Content  restore.Content
	Tracker  *progress.Tracker
}

// Fetch resolves the current state of a restore ID: a committed artifact
// ready to stream, an in-flight worker to watch, or ErrNotFound/ErrGone.
func (m *Manager) Fetch(id ident.RestoreID) (FetchResult, error) {
	meta, err := m.store.ReadMetadata(id)
	if err != nil {
		if tr, ok := m.Progress(id); ok {
			return FetchResult{Status: FetchInProgress, Tracker: tr}, nil
		}
		return FetchResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if meta.Committed() {
		return FetchResult{
			Status:   FetchReady,
			DataPath: m.store.DataPath(id),
			Source:   meta.Source,
			Hash:     *meta.Hash,
			Content:  meta.Content,
		}, nil
	}

	if tr, ok := m.Progress(id); ok {
		return FetchResult{Status: FetchInProgress, Tracker: tr}, nil
	}
	return FetchResult{}, fmt.Errorf("%w: %s", ErrGone, id)
}
