package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/JonMunkholm/casegrid/internal/grid"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memSource serves n synthetic rows in pages.
type memSource struct {
	n     int
	mu    sync.Mutex
	calls []PageParams
	fail  int // page number that fails, 0 for none
}

func (s *memSource) LoadPage(ctx context.Context, p PageParams) (Page, error) {
	s.mu.Lock()
	s.calls = append(s.calls, p)
	s.mu.Unlock()
	if p.Page == s.fail {
		return Page{}, errors.New("connection reset")
	}
	start := (p.Page - 1) * p.Limit
	end := min(start+p.Limit, s.n)
	var rows []grid.Record
	for i := start; i < end; i++ {
		rows = append(rows, grid.Record{"radicado": fmt.Sprintf("R%03d", i)})
	}
	return Page{Rows: rows, Meta: NewPageMeta(s.n, p.Page, p.Limit)}, nil
}

func TestNewPageMeta(t *testing.T) {
	tests := []struct {
		name               string
		total, page, limit int
		want               PageMeta
	}{
		{"empty", 0, 1, 50, PageMeta{Total: 0, Page: 1, Limit: 50, TotalPages: 0}},
		{"first of three", 120, 1, 50, PageMeta{Total: 120, Page: 1, Limit: 50, TotalPages: 3, HasNext: true}},
		{"middle", 120, 2, 50, PageMeta{Total: 120, Page: 2, Limit: 50, TotalPages: 3, HasNext: true, HasPrev: true}},
		{"last", 120, 3, 50, PageMeta{Total: 120, Page: 3, Limit: 50, TotalPages: 3, HasPrev: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, NewPageMeta(tt.total, tt.page, tt.limit)); diff != "" {
				t.Errorf("meta mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseOrder(t *testing.T) {
	assert.Equal(t, OrderAsc, ParseOrder("asc"))
	assert.Equal(t, OrderAsc, ParseOrder("ASC"))
	assert.Equal(t, OrderDesc, ParseOrder("desc"))
	assert.Equal(t, OrderDesc, ParseOrder(""))
}

func TestLoadAllPagesUntilNoNext(t *testing.T) {
	src := &memSource{n: 23}
	var chunks []int
	rows, err := LoadAll(context.Background(), src, PageParams{Limit: 10, Order: OrderDesc}, 0, func(p Page) {
		chunks = append(chunks, len(p.Rows))
	})
	require.NoError(t, err)
	assert.Len(t, rows, 23)
	assert.Equal(t, []int{10, 10, 3}, chunks)
	assert.Equal(t, "R022", rows[22]["radicado"])
	for i, c := range src.calls {
		assert.Equal(t, i+1, c.Page)
		assert.Equal(t, OrderDesc, c.Order)
	}
}

func TestLoadAllRespectsMaxRows(t *testing.T) {
	src := &memSource{n: 100}
	rows, err := LoadAll(context.Background(), src, PageParams{Limit: 10}, 25, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 25)
	assert.Len(t, src.calls, 3)
}

func TestLoadAllStopsOnError(t *testing.T) {
	src := &memSource{n: 100, fail: 2}
	_, err := LoadAll(context.Background(), src, PageParams{Limit: 10}, 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load page 2")
}

func TestLoadAllStopsOnCancel(t *testing.T) {
	src := &memSource{n: 100}
	ctx, cancel := context.WithCancel(context.Background())
	_, err := LoadAll(ctx, src, PageParams{Limit: 10}, 0, func(Page) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, src.calls, 1)
}

func TestLoadAllRejectsZeroChunk(t *testing.T) {
	_, err := LoadAll(context.Background(), &memSource{}, PageParams{}, 0, nil)
	assert.Error(t, err)
}

// gatedSource blocks each call until released and records cancellations.
type gatedSource struct {
	started chan PageParams
	release chan struct{}
}

func (s *gatedSource) LoadPage(ctx context.Context, p PageParams) (Page, error) {
	s.started <- p
	select {
	case <-s.release:
	case <-ctx.Done():
		return Page{}, ctx.Err()
	}
	rows := []grid.Record{{"radicado": p.Scope.Lider}}
	return Page{Rows: rows, Meta: NewPageMeta(1, 1, p.Limit)}, nil
}

func TestRefreshLastRequestWins(t *testing.T) {
	src := &gatedSource{started: make(chan PageParams, 2), release: make(chan struct{})}
	r := NewRefresher(src, 50, 0)

	var mu sync.Mutex
	var applied []string
	apply := func(rows []grid.Record) error {
		mu.Lock()
		defer mu.Unlock()
		applied = append(applied, rows[0]["radicado"].(string))
		return nil
	}

	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background(), PageParams{Scope: Scope{Lider: "old"}}, apply)
		firstErr <- err
	}()
	<-src.started

	secondErr := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background(), PageParams{Scope: Scope{Lider: "new"}}, apply)
		secondErr <- err
	}()
	p := <-src.started
	assert.Equal(t, 50, p.Limit)

	require.ErrorIs(t, <-firstErr, ErrSuperseded)
	close(src.release)
	require.NoError(t, <-secondErr)

	assert.Equal(t, []string{"new"}, applied)
}

func TestRefreshCancel(t *testing.T) {
	src := &gatedSource{started: make(chan PageParams, 1), release: make(chan struct{})}
	r := NewRefresher(src, 10, 0)

	done := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background(), PageParams{}, func([]grid.Record) error {
			t.Error("apply called after cancel")
			return nil
		})
		done <- err
	}()
	<-src.started
	r.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("refresh did not stop after Cancel")
	}
}

func TestRefreshApplyError(t *testing.T) {
	r := NewRefresher(&memSource{n: 3}, 10, 0)
	_, err := r.Refresh(context.Background(), PageParams{}, func([]grid.Record) error {
		return grid.ErrDuplicateIdentifier
	})
	assert.ErrorIs(t, err, grid.ErrDuplicateIdentifier)
}
