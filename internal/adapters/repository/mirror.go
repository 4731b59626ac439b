package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/biggame/internal/domain/model"
	"github.com/okian/biggame/pkg/metrics"
)

// Mirror writes ledger snapshots to a Store under the fixed keys and reads the
// saved results back. Ids are encoded as decimal string keys and places by name.
type Mirror struct {
	store Store
}

// NewMirror wraps store.
func NewMirror(store Store) *Mirror {
	return &Mirror{store: store}
}

// Save writes results, totals and detailed scores, in that order, and returns
// the store revision after the last write.
func (m *Mirror) Save(ctx context.Context, results model.Results, totals map[int]int, detailed map[int]map[int]int) (uint64, error) {
	var rev uint64
	for _, kv := range []struct {
		key string
		val any
	}{
		{KeyGameResults, results},
		{KeyTotalScores, totals},
		{KeyDetailedScores, detailed},
	} {
		b, err := json.Marshal(kv.val)
		if err != nil {
			return 0, fmt.Errorf("encode %s: %w", kv.key, err)
		}
		r, err := m.put(ctx, kv.key, b)
		if err != nil {
			return 0, err
		}
		rev = r
	}
	return rev, nil
}

// Clear removes all three keys.
func (m *Mirror) Clear(ctx context.Context) (uint64, error) {
	var rev uint64
	for _, key := range []string{KeyGameResults, KeyTotalScores, KeyDetailedScores} {
		r, err := m.del(ctx, key)
		if err != nil {
			return 0, err
		}
		rev = r
	}
	return rev, nil
}

// Load reads the saved results. A missing key yields empty results. A blob
// that does not decode is deleted, and empty results are returned together
// with an error wrapping ErrCorruptBlob.
func (m *Mirror) Load(ctx context.Context) (model.Results, error) {
	start := time.Now()
	b, found, err := m.store.Get(ctx, KeyGameResults)
	if err != nil {
		metrics.RecordStoreError("get")
		return nil, fmt.Errorf("load %s: %w", KeyGameResults, err)
	}
	metrics.RecordStoreOperation("get", msSince(start))
	if !found {
		return model.Results{}, nil
	}

	var results model.Results
	if err := json.Unmarshal(b, &results); err != nil || results == nil {
		if derr := m.Discard(ctx); derr != nil {
			return nil, derr
		}
		if err == nil {
			err = errors.New("saved results are null")
		}
		return model.Results{}, fmt.Errorf("%w: %w", ErrCorruptBlob, err)
	}
	return results, nil
}

// Discard deletes the saved results, for blobs that decode but do not fit
// the configured catalog.
func (m *Mirror) Discard(ctx context.Context) error {
	metrics.RecordStoreDiscard()
	if _, err := m.del(ctx, KeyGameResults); err != nil {
		return err
	}
	return nil
}

// Revision returns the store revision.
func (m *Mirror) Revision(ctx context.Context) (uint64, error) {
	return m.store.Revision(ctx)
}

func (m *Mirror) put(ctx context.Context, key string, b []byte) (uint64, error) {
	start := time.Now()
	rev, err := m.store.Put(ctx, key, b)
	if err != nil {
		metrics.RecordStoreError("put")
		return 0, fmt.Errorf("save %s: %w", key, err)
	}
	metrics.RecordStoreOperation("put", msSince(start))
	return rev, nil
}

func (m *Mirror) del(ctx context.Context, key string) (uint64, error) {
	start := time.Now()
	rev, err := m.store.Delete(ctx, key)
	if err != nil {
		metrics.RecordStoreError("delete")
		return 0, fmt.Errorf("delete %s: %w", key, err)
	}
	metrics.RecordStoreOperation("delete", msSince(start))
	return rev, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
