// Package session tracks per-upload processing progress in a process-wide
// registry. The pipeline is the single writer for a session; any number of
// concurrent readers observe snapshots through Watch without ever blocking
// the writer.
package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sentinel errors for registry operations.
var (
	// ErrDuplicateSession marks a create for an id that is still registered.
	ErrDuplicateSession = errors.New("session id already active")
	// ErrUnknownSession marks lookups for ids never created or already evicted.
	ErrUnknownSession = errors.New("unknown session")
)

// Clock abstracts time for TTL eviction tests.
type Clock interface {
	Now() time.Time
}

// Snapshot is one observation of a session's progress.
type Snapshot struct {
	TotalFiles   int  `json:"total_files"`
	CurrentIndex int  `json:"current_index"`
	Done         bool `json:"done"`
}

// Config controls registry lifecycle behavior.
//   - Grace: how long completed sessions stay resident (default 60s).
//   - MaxAge: unconditional eviction age for sessions that never finish
//     (default 30m).
//   - SweepInterval: janitor cadence (default 15s).
type Config struct {
	Grace         time.Duration
	MaxAge        time.Duration
	SweepInterval time.Duration
	Clock         Clock
	Logger        *zap.Logger
}

const (
	defaultGrace         = time.Minute
	defaultMaxAge        = 30 * time.Minute
	defaultSweepInterval = 15 * time.Second

	// watchBuffer bounds each subscriber channel; the publisher coalesces by
	// dropping the oldest pending snapshot, so a slow reader only skips
	// intermediate states and still observes a monotonic sequence.
	watchBuffer = 16
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Registry is the process-wide session table. Safe for concurrent use;
// sessions are independent, so there is no cross-session contention beyond
// the map lookup.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session

	cfg    Config
	clock  Clock
	logger *zap.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

type session struct {
	mu        sync.Mutex
	total     int
	current   int
	done      bool
	createdAt time.Time
	doneAt    time.Time
	watchers  map[chan Snapshot]struct{}
}

// NewRegistry constructs a Registry and starts its eviction janitor.
func NewRegistry(cfg Config) *Registry {
	if cfg.Grace <= 0 {
		cfg.Grace = defaultGrace
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultMaxAge
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		sessions: make(map[string]*session),
		cfg:      cfg,
		clock:    cfg.Clock,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go r.janitor()
	return r
}

// Create registers a new session with zero progress. It fails with
// ErrDuplicateSession while the id is still resident.
func (r *Registry) Create(id string, totalFiles int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return ErrDuplicateSession
	}
	r.sessions[id] = &session{
		total:     totalFiles,
		createdAt: r.clock.Now(),
		watchers:  make(map[chan Snapshot]struct{}),
	}
	return nil
}

// Advance increments the session's progress index by one and publishes a
// snapshot. Advancing an unknown session logs a warning and is otherwise a
// no-op: the pipeline must never fail because its session was evicted.
func (r *Registry) Advance(id string) {
	s := r.lookup(id)
	if s == nil {
		r.logger.Warn("advance on unknown session", zap.String("session_id", id))
		return
	}
	s.mu.Lock()
	if !s.done && s.current < s.total {
		s.current++
	}
	snap := s.snapshotLocked()
	s.publishLocked(snap)
	s.mu.Unlock()
}

// Complete marks the session done with a full index, publishes the terminal
// snapshot, and closes all watcher channels.
func (r *Registry) Complete(id string) {
	s := r.lookup(id)
	if s == nil {
		r.logger.Warn("complete on unknown session", zap.String("session_id", id))
		return
	}
	s.mu.Lock()
	s.done = true
	s.current = s.total
	s.doneAt = r.clock.Now()
	s.publishLocked(s.snapshotLocked())
	s.closeWatchersLocked()
	s.mu.Unlock()
}

// Evict removes the session immediately, closing any watcher channels without
// a terminal done snapshot. The pipeline uses this on failure so progress
// streams end rather than idle.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	s := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closeWatchersLocked()
	s.mu.Unlock()
}

// Peek returns the current snapshot for a session.
func (r *Registry) Peek(id string) (Snapshot, error) {
	s := r.lookup(id)
	if s == nil {
		return Snapshot{}, ErrUnknownSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// Watch returns a snapshot stream for the session. The first element is the
// state at subscription time; subsequent elements follow each advancement.
// The channel closes after the element carrying done=true, or when the
// session is evicted. An unknown id yields an immediately closed channel; the
// stream is finite and a fresh Watch must be issued to observe a later
// session under the same id.
func (r *Registry) Watch(id string) <-chan Snapshot {
	ch := make(chan Snapshot, watchBuffer)
	s := r.lookup(id)
	if s == nil {
		close(ch)
		return ch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch <- s.snapshotLocked()
	if s.done {
		close(ch)
		return ch
	}
	s.watchers[ch] = struct{}{}
	return ch
}

// Unwatch detaches a subscriber early, e.g. when the remote reader
// disconnects mid-stream. The channel is closed; the session keeps running.
func (r *Registry) Unwatch(id string, ch <-chan Snapshot) {
	s := r.lookup(id)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.watchers {
		if w == ch {
			delete(s.watchers, w)
			close(w)
			return
		}
	}
}

// Len reports the number of resident sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops the janitor and evicts all resident sessions.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.doneCh
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Evict(id)
	}
}

func (r *Registry) lookup(id string) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

func (r *Registry) janitor() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep evicts completed sessions past the grace period and any session past
// the maximum age, bounding memory growth under churn.
func (r *Registry) sweep() {
	now := r.clock.Now()
	var expired []string
	r.mu.RLock()
	for id, s := range r.sessions {
		s.mu.Lock()
		stale := (s.done && now.Sub(s.doneAt) >= r.cfg.Grace) ||
			now.Sub(s.createdAt) >= r.cfg.MaxAge
		s.mu.Unlock()
		if stale {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()
	for _, id := range expired {
		r.logger.Debug("evicting session", zap.String("session_id", id))
		r.Evict(id)
	}
}

func (s *session) snapshotLocked() Snapshot {
	return Snapshot{
		TotalFiles:   s.total,
		CurrentIndex: s.current,
		Done:         s.done,
	}
}

// publishLocked delivers snap to every watcher without blocking: when a
// subscriber buffer is full the oldest pending snapshot is dropped, so
// readers may skip intermediate states but never observe a regression and
// never see the terminal snapshot displaced.
func (s *session) publishLocked(snap Snapshot) {
	for ch := range s.watchers {
		for {
			select {
			case ch <- snap:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (s *session) closeWatchersLocked() {
	for ch := range s.watchers {
		close(ch)
	}
	s.watchers = make(map[chan Snapshot]struct{})
}
