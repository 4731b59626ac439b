// Package service owns the process's single scoring ledger and implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/biggame/internal/adapters/broker"
	changequeue "github.com/okian/biggame/internal/adapters/mq/queue"
	workerpool "github.com/okian/biggame/internal/adapters/mq/worker"
	"github.com/okian/biggame/internal/adapters/repository"
	"github.com/okian/biggame/internal/domain/dedupe"
	"github.com/okian/biggame/internal/domain/ledger"
	"github.com/okian/biggame/internal/domain/model"
	"github.com/okian/biggame/internal/domain/types"
	"github.com/okian/biggame/pkg/logger"
	"github.com/okian/biggame/pkg/metrics"
)

const stopTimeout = 10 * time.Second

// Service serializes access to the ledger and mirrors every change to the
// store and to live subscribers.
type Service struct {
	// Lock order: persistMu before mu.
	mu sync.RWMutex

	// Ledger state, guarded by mu.
	ledger  *ledger.Ledger
	seq     uint64
	started bool
	// unqueued is the kind of the newest change the queue rejected, empty
	// once a later change is queued.
	unqueued model.ChangeKind

	// Catalog
	games []model.Game
	teams []model.Team

	// Core components
	store       repository.Store
	ownsStore   bool
	mirror      *repository.Mirror
	deduper     dedupe.Deduper
	changeQueue *changequeue.InMemoryQueue
	workerPool  *workerpool.Pool
	broker      *broker.Broker

	// Mirror bookkeeping, guarded by persistMu.
	persistMu    sync.Mutex
	persistedSeq uint64
	knownRev     uint64

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	watchInterval time.Duration

	stopCh    chan struct{}
	watchDone chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCatalog sets the games and teams the ledger scores.
func WithCatalog(games []model.Game, teams []model.Team) Option {
	return func(s *Service) {
		s.games = games
		s.teams = teams
	}
}

// WithStore sets the mirror store. The caller keeps ownership and closes it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithBroker sets the broker changes are published to.
func WithBroker(b *broker.Broker) Option {
	return func(s *Service) {
		if b != nil {
			s.broker = b
		}
	}
}

// WithWorkerCount sets the number of mirror workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the change queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many placement request ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithWatchInterval sets how often the store revision is polled. Zero disables the watcher.
func WithWatchInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.watchInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   2,
		queueSize:     1024,
		dedupeSize:    1024,
		watchInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.broker == nil {
		s.broker = broker.New()
	}
	return s
}

// Start builds the ledger, restores it from the store and starts the mirror
// workers and the store watcher.
func (s *Service) Start(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting scoreboard service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.ownsStore = true
	}
	s.mirror = repository.NewMirror(s.store)
	s.ledger = ledger.New(s.games, s.teams)
	s.unqueued = ""
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.restoreLocked(ctx)

	s.changeQueue = changequeue.NewInMemoryQueue(changequeue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.changeQueue, persister{s}, publisher{s})
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.stopCh = make(chan struct{})
	s.watchDone = make(chan struct{})
	if s.watchInterval > 0 {
		go s.watch(context.WithoutCancel(ctx), s.stopCh, s.watchDone)
	} else {
		close(s.watchDone)
	}

	s.started = true
	s.updateScoreMetricsLocked()
	s.logger.Info(ctx, "scoreboard service started",
		logger.Int("games", len(s.games)),
		logger.Int("teams", len(s.teams)),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("watchInterval", s.watchInterval),
	)
	return nil
}

// restoreLocked loads saved results into the fresh ledger. Failures leave the
// ledger empty. Must be called with mu and persistMu held.
func (s *Service) restoreLocked(ctx context.Context) {
	results, err := s.mirror.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrCorruptBlob):
		s.logger.Warn(ctx, "discarded corrupt saved results", logger.Error(err))
	case err != nil:
		metrics.RecordErrorByComponent("store", "load")
		s.logger.Error(ctx, "could not load saved results", logger.Error(err))
	}
	if len(results) > 0 {
		if err := s.ledger.Restore(results); err != nil {
			s.logger.Warn(ctx, "discarding saved results that do not fit the catalog", logger.Error(err))
			if derr := s.mirror.Discard(ctx); derr != nil {
				s.logger.Error(ctx, "could not discard saved results", logger.Error(derr))
			}
		} else {
			metrics.RecordReload("start")
			s.logger.Info(ctx, "restored saved results", logger.Int("games", len(results)))
		}
	}

	rev, err := s.mirror.Revision(ctx)
	if err != nil {
		s.logger.Error(ctx, "could not read store revision", logger.Error(err))
	}
	s.knownRev = rev
	s.persistedSeq = s.seq
}

// Stop drains pending changes to the store and stops the watcher.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping scoreboard service...")

	close(s.stopCh)
	<-s.watchDone

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "mirror workers did not drain", logger.Error(err))
	}
	s.flushUnqueued(ctx)
	if s.ownsStore {
		_ = s.store.Close()
		s.store, s.ownsStore = nil, false
	}
	s.logger.Info(ctx, "scoreboard service stopped")
}

// AssignPlace applies req to the ledger.
func (s *Service) AssignPlace(ctx context.Context, req types.PlacementRequest) (types.PlacementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return types.PlacementResult{}, ErrNotStarted
	}

	if req.RequestID != "" {
		if original, ok := s.deduper.Lookup(ctx, req.RequestID); ok {
			metrics.RecordDuplicatePlacement()
			s.logger.Debug(ctx, "duplicate placement request", logger.String("request_id", req.RequestID))
			return types.PlacementResult{
				Outcome:    model.OutcomeDuplicate,
				Original:   original,
				Scoreboard: types.NewScoreboard(s.ledger, s.seq),
			}, nil
		}
	}

	out := s.ledger.AssignPlace(req.GameID, req.TeamID, req.Place)
	metrics.RecordPlacement(string(out), req.Place.String())
	if req.RequestID != "" {
		s.deduper.Record(ctx, req.RequestID, out)
	}
	if out.Changed() {
		s.commitLocked(ctx, model.ChangePlacement)
	}
	s.logger.Debug(ctx, "placement",
		logger.Int("game_id", req.GameID),
		logger.Int("team_id", req.TeamID),
		logger.String("place", req.Place.String()),
		logger.String("outcome", string(out)),
	)
	return types.PlacementResult{Outcome: out, Scoreboard: types.NewScoreboard(s.ledger, s.seq)}, nil
}

// Reset clears every placement.
func (s *Service) Reset(ctx context.Context) (types.Scoreboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return types.Scoreboard{}, ErrNotStarted
	}

	s.ledger.Reset()
	metrics.RecordReset()
	s.commitLocked(ctx, model.ChangeReset)
	s.logger.Info(ctx, "ledger reset")
	return types.NewScoreboard(s.ledger, s.seq), nil
}

// Scoreboard returns a snapshot of the ledger.
func (s *Service) Scoreboard(_ context.Context) (types.Scoreboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.Scoreboard{}, ErrNotStarted
	}
	return types.NewScoreboard(s.ledger, s.seq), nil
}

// Standings returns the ranked standings.
func (s *Service) Standings(_ context.Context) ([]types.Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return types.NewStandings(s.ledger.Standings()), nil
}

// commitLocked records a new change and hands it to the mirror workers. A
// rejected change is retried by the watcher and on Stop. Must be called with
// mu held.
func (s *Service) commitLocked(ctx context.Context, kind model.ChangeKind) {
	s.seq++
	s.enqueueLocked(ctx, s.snapshotLocked(kind))
	s.updateScoreMetricsLocked()
}

func (s *Service) snapshotLocked(kind model.ChangeKind) model.Change {
	return model.Change{
		ID:       uuid.NewString(),
		Seq:      s.seq,
		Kind:     kind,
		Results:  s.ledger.Results(),
		Totals:   s.ledger.TotalScore(),
		Detailed: s.ledger.DetailedScore(),
	}
}

func (s *Service) enqueueLocked(ctx context.Context, c model.Change) {
	if s.changeQueue.Enqueue(ctx, c) {
		s.unqueued = ""
		return
	}
	s.unqueued = c.Kind
	s.logger.Warn(ctx, "change queue rejected change",
		logger.String("change_id", c.ID),
		logger.Uint64("seq", c.Seq),
	)
}

func (s *Service) updateScoreMetricsLocked() {
	for team, total := range s.ledger.TotalScore() {
		metrics.UpdateTeamScore(strconv.Itoa(team), total)
	}
	metrics.UpdateCompletion(s.ledger.CompletedGames(), s.ledger.IsComplete())
}

// Subscribe registers a live subscriber on the broker.
func (s *Service) Subscribe(transport string) chan broker.Event {
	return s.broker.Subscribe(transport)
}

// Unsubscribe removes a live subscriber.
func (s *Service) Unsubscribe(ch chan broker.Event) {
	s.broker.Unsubscribe(ch)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.persistMu.Lock()
	persistedSeq, knownRev := s.persistedSeq, s.knownRev
	s.persistMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"games":       len(s.games),
		"teams":       len(s.teams),
	}
	if !s.started {
		return stats
	}

	stats["seq"] = s.seq
	stats["queueLength"] = s.changeQueue.Len(ctx)
	stats["dedupeEntries"] = s.deduper.Size()
	stats["subscribers"] = s.broker.Subscribers()
	stats["completedGames"] = s.ledger.CompletedGames()
	stats["complete"] = s.ledger.IsComplete()
	stats["persistedSeq"] = persistedSeq
	stats["storeRevision"] = knownRev
	return stats
}
