package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/biggame/internal/adapters/repository"
	"github.com/okian/biggame/internal/domain/ledger"
	"github.com/okian/biggame/internal/domain/model"
	"github.com/okian/biggame/internal/domain/types"
	"github.com/okian/biggame/pkg/logger"
	"github.com/okian/biggame/pkg/metrics"
)

// persister writes changes to the store for the worker pool.
type persister struct{ s *Service }

// Persist writes c unless a newer change has already been written. Reload
// changes came from the store and are only acknowledged.
func (p persister) Persist(ctx context.Context, c model.Change) (bool, error) {
	s := p.s
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if c.Seq <= s.persistedSeq {
		return false, nil
	}

	var (
		rev uint64
		err error
	)
	switch c.Kind {
	case model.ChangeReload:
		s.persistedSeq = c.Seq
		return true, nil
	case model.ChangeReset:
		rev, err = s.mirror.Clear(ctx)
	default:
		rev, err = s.mirror.Save(ctx, c.Results, c.Totals, c.Detailed)
	}
	if err != nil {
		metrics.RecordErrorByComponent("store", string(c.Kind))
		s.mu.Lock()
		if c.Seq == s.seq {
			// Retried by the watcher.
			s.unqueued = c.Kind
		}
		s.mu.Unlock()
		return false, err
	}
	s.persistedSeq = c.Seq
	s.knownRev = rev
	return true, nil
}

// publisher fans changes out to live subscribers.
type publisher struct{ s *Service }

// Publish rebuilds the scoreboard carried by c and hands it to the broker.
func (p publisher) Publish(c model.Change) {
	s := p.s
	l := ledger.New(s.games, s.teams)
	if err := l.Restore(c.Results); err != nil {
		s.logger.Error(context.Background(), "could not rebuild scoreboard for subscribers",
			logger.String("change_id", c.ID),
			logger.Error(err),
		)
		return
	}
	if _, err := s.broker.Publish(c.Seq, string(c.Kind), types.NewScoreboard(l, c.Seq)); err != nil {
		metrics.RecordErrorByComponent("broker", "publish")
		s.logger.Error(context.Background(), "could not publish change",
			logger.String("change_id", c.ID),
			logger.Error(err),
		)
	}
}

// flushUnqueued writes the ledger directly when the newest change never made
// it into the queue. Called once the workers have stopped.
func (s *Service) flushUnqueued(ctx context.Context) {
	s.mu.RLock()
	kind := s.unqueued
	var c model.Change
	if kind != "" {
		c = s.snapshotLocked(kind)
	}
	s.mu.RUnlock()
	if kind == "" {
		return
	}
	if _, err := (persister{s}).Persist(ctx, c); err != nil {
		s.logger.Error(ctx, "could not save final state", logger.Error(err))
	}
}

// watch polls the store revision until stop is closed.
func (s *Service) watch(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.checkStore(ctx)
		}
	}
}

// checkStore reloads the ledger when another process changed the store.
// Local changes that are not yet saved win: the reload is retried on a later
// tick once they are written.
func (s *Service) checkStore(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.started && s.unqueued != "" {
		s.enqueueLocked(ctx, s.snapshotLocked(s.unqueued))
	}
	s.mu.Unlock()

	rev, err := s.mirror.Revision(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("store", "revision")
		s.logger.Warn(ctx, "could not read store revision", logger.Error(err))
		return
	}
	if rev == s.knownRev {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.seq > s.persistedSeq {
		return
	}
	if err := s.reloadLocked(ctx, "watcher"); err != nil {
		s.logger.Warn(ctx, "could not reload changed store", logger.Error(err))
		s.knownRev = rev
		return
	}
	s.syncRevisionLocked(ctx)
}

// syncRevisionLocked records the current store revision as seen, so a
// discard made while reloading does not trigger another reload. Must be
// called with persistMu held.
func (s *Service) syncRevisionLocked(ctx context.Context) {
	rev, err := s.mirror.Revision(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("store", "revision")
		s.logger.Warn(ctx, "could not read store revision", logger.Error(err))
		return
	}
	s.knownRev = rev
}

// Reload replaces the ledger with the saved results. It fails with
// ErrPendingChanges while local changes are still being written.
func (s *Service) Reload(ctx context.Context) (types.Scoreboard, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return types.Scoreboard{}, ErrNotStarted
	}
	if s.seq > s.persistedSeq {
		return types.Scoreboard{}, ErrPendingChanges
	}
	if err := s.reloadLocked(ctx, "manual"); err != nil {
		return types.Scoreboard{}, err
	}
	s.syncRevisionLocked(ctx)
	return types.NewScoreboard(s.ledger, s.seq), nil
}

// reloadLocked restores the saved results into the ledger and queues a
// reload change for subscribers. Saved results that are corrupt or do not fit
// the catalog are discarded and the ledger starts empty. Must be called with
// persistMu and mu held.
func (s *Service) reloadLocked(ctx context.Context, source string) error {
	results, err := s.mirror.Load(ctx)
	if err != nil && !errors.Is(err, repository.ErrCorruptBlob) {
		return err
	}
	if err != nil {
		s.logger.Warn(ctx, "discarded corrupt saved results", logger.Error(err))
	}
	if rerr := s.ledger.Restore(results); rerr != nil {
		if !errors.Is(rerr, ledger.ErrInvalidSnapshot) {
			return rerr
		}
		s.logger.Warn(ctx, "discarding saved results that do not fit the catalog", logger.Error(rerr))
		if derr := s.mirror.Discard(ctx); derr != nil {
			s.logger.Error(ctx, "could not discard saved results", logger.Error(derr))
		}
		results = model.Results{}
		if rerr := s.ledger.Restore(results); rerr != nil {
			return rerr
		}
	}

	s.seq++
	c := s.snapshotLocked(model.ChangeReload)
	if !s.changeQueue.Enqueue(ctx, c) {
		// Nothing to write for a reload; only subscribers miss it.
		s.persistedSeq = c.Seq
	} else {
		s.unqueued = ""
	}
	metrics.RecordReload(source)
	s.updateScoreMetricsLocked()
	s.logger.Info(ctx, "reloaded results from store",
		logger.String("source", source),
		logger.Int("games", len(results)),
		logger.Uint64("seq", c.Seq),
	)
	return nil
}
