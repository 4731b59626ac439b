package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/okian/biggame/internal/domain/model"
	"github.com/okian/biggame/internal/domain/types"
	"github.com/okian/biggame/pkg/logger"
)

const directoryPermission = 0o750

// ErrMismatch is returned when the server disagrees with the local ledger.
var ErrMismatch = errors.New("scoreboard mismatch")

// Run executes a complete simulation and verifies the outcome.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("placements", cfg.Placements),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", seed),
	)

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	var err error

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Fetch the catalog and starting point
	var initial types.Scoreboard
	if cfg.Reset {
		initial, err = client.Reset(ctx)
	} else {
		initial, err = client.Scoreboard(ctx)
	}
	if err != nil {
		return stats, fmt.Errorf("fetch scoreboard: %w", err)
	}

	// Step 3: Generate placements
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed>>1)))
	reqs := Generate(rng, initial.Games, initial.Teams, cfg.Placements, cfg.DuplicateRate)
	stats.Generated = len(reqs)
	if cfg.OutputFile != "" {
		if err := saveRequests(cfg.OutputFile, reqs); err != nil {
			log.Warn(ctx, "failed to save generated placements", logger.Error(err))
		}
	}

	// Step 4: Submit them, one lane per worker
	submit(ctx, client, partition(reqs, cfg.Workers), stats, cfg.Verbose, log)

	// Step 5: Verify against a local replay
	want, err := Replay(initial, reqs)
	if err != nil {
		return stats, err
	}
	got, err := client.Scoreboard(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch final scoreboard: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)

	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d placement requests failed", stats.Failed)
	}
	if problems := Verify(got, want); len(problems) > 0 {
		for _, p := range problems {
			log.Error(ctx, "verification failed", logger.String("problem", p))
		}
		return stats, fmt.Errorf("%w: %s", ErrMismatch, strings.Join(problems, "; "))
	}
	log.Info(ctx, "simulation verified",
		logger.Int("completedGames", got.CompletedGames),
		logger.Bool("complete", got.Complete),
	)
	return stats, nil
}

func submit(ctx context.Context, client *Client, lanes [][]types.PlacementRequest, stats *Stats, verbose bool, log logger.Logger) {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, lane := range lanes {
		wg.Add(1)
		go func(lane []types.PlacementRequest) {
			defer wg.Done()
			for _, req := range lane {
				if ctx.Err() != nil {
					return
				}
				res, err := client.Place(ctx, req)

				mu.Lock()
				stats.Submitted++
				if err != nil {
					stats.Failed++
				} else {
					count(stats, res.Outcome)
				}
				mu.Unlock()

				if err != nil {
					log.Warn(ctx, "placement failed", logger.String("request_id", req.RequestID), logger.Error(err))
				} else if verbose {
					log.Debug(ctx, "placement",
						logger.Int("game_id", req.GameID),
						logger.Int("team_id", req.TeamID),
						logger.String("place", req.Place.String()),
						logger.String("outcome", string(res.Outcome)),
					)
				}
			}
		}(lane)
	}
	wg.Wait()
}

func count(stats *Stats, o model.Outcome) {
	switch o {
	case model.OutcomeAssigned:
		stats.Assigned++
	case model.OutcomeMoved:
		stats.Moved++
	case model.OutcomeRemoved:
		stats.Removed++
	case model.OutcomeBlocked:
		stats.Blocked++
	case model.OutcomeVacated:
		stats.Vacated++
	case model.OutcomeIgnored:
		stats.Ignored++
	case model.OutcomeDuplicate:
		stats.Duplicates++
	}
}

// saveRequests writes the generated placements as a JSON array.
func saveRequests(filename string, reqs []types.PlacementRequest) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(reqs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal placements: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("assigned", stats.Assigned),
		logger.Int("moved", stats.Moved),
		logger.Int("removed", stats.Removed),
		logger.Int("blocked", stats.Blocked),
		logger.Int("vacated", stats.Vacated),
		logger.Int("ignored", stats.Ignored),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
		logger.Any("perSecond", perSecond),
	)
}
