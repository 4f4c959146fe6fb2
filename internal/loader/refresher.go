package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JonMunkholm/casegrid/internal/grid"
)

// ErrSuperseded is returned by a refresh that a newer one replaced.
var ErrSuperseded = errors.New("loader: superseded by a newer refresh")

// Refresher reloads one table. Starting a refresh cancels the one in flight,
// and only the newest request's rows are ever applied.
type Refresher struct {
	src       Source
	chunkSize int
	maxRows   int

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewRefresher loads from src in chunks of chunkSize, stopping at maxRows
// (0 means no cap).
func NewRefresher(src Source, chunkSize, maxRows int) *Refresher {
	return &Refresher{src: src, chunkSize: chunkSize, maxRows: maxRows}
}

// Refresh loads every row for p and hands them to apply. apply runs with the
// refresher locked, so no newer request can be issued between the
// staleness check and the apply.
func (r *Refresher) Refresh(ctx context.Context, p PageParams, apply func([]grid.Record) error) (int, error) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++
	token := r.seq
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	p.Limit = r.chunkSize
	rows, err := LoadAll(ctx, r.src, p, r.maxRows, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	if token != r.seq {
		return 0, ErrSuperseded
	}
	r.cancel = nil
	if err != nil {
		return 0, err
	}
	if err := apply(rows); err != nil {
		return 0, fmt.Errorf("apply refresh: %w", err)
	}
	return len(rows), nil
}

// Cancel aborts the refresh in flight, if any.
func (r *Refresher) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.seq++
}
