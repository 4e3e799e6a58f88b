package games

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"

	flipit "github.com/Pradise2/FlipIt"
	"github.com/Pradise2/FlipIt/chain"
)

// DetailsReader is the chain surface the lister needs. *chain.Session
// implements it.
type DetailsReader interface {
	GameIDCounter(ctx context.Context) (uint64, error)
	GameDetails(ctx context.Context, id uint64) (*chain.GameDetails, error)
}

// Lister builds pages of open player-vs-player games by scanning the
// contract's game id space. Per-game detail reads run concurrently with a
// bounded fan-out so a large id space does not hammer the provider.
type Lister struct {
	log      slog.Logger
	reader   DetailsReader
	pageSize int
	fanout   int
}

const (
	defaultPageSize = 5
	defaultFanout   = 8
)

func NewLister(log slog.Logger, reader DetailsReader, pageSize int) *Lister {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Lister{
		log:      log,
		reader:   reader,
		pageSize: pageSize,
		fanout:   defaultFanout,
	}
}

// PageSize returns the fixed page size.
func (l *Lister) PageSize() int { return l.pageSize }

// Page is one page of open games, newest first.
type Page struct {
	Games []*chain.GameDetails
	// Skipped counts games whose status could not be determined. They are
	// excluded rather than shown with guessed state.
	Skipped int
	// Total is the number of open games across all pages.
	Total int
	// HasMore reports whether another page follows.
	HasMore bool
}

// ListOpen returns the page-th page (zero based) of games that are currently
// joinable: state available and not yet expired. Games whose details cannot
// be read are skipped, never shown.
func (l *Lister) ListOpen(ctx context.Context, page int) (*Page, error) {
	count, err := l.reader.GameIDCounter(ctx)
	if err != nil {
		return nil, fmt.Errorf("read game counter: %w", err)
	}
	if count == 0 {
		return &Page{}, nil
	}

	now := time.Now()

	var mu sync.Mutex
	open := make([]*chain.GameDetails, 0, count)
	skipped := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.fanout)
	// Ids start at 1; gameIdCounter is the next unused id.
	for id := uint64(1); id <= count; id++ {
		id := id
		g.Go(func() error {
			d, err := l.reader.GameDetails(gctx, id)
			if err != nil {
				l.log.Debugf("lister: game %d details unavailable: %v", id, err)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			if d.State != flipit.StateAvailable || d.TimeLeft(now) <= 0 {
				return nil
			}
			mu.Lock()
			open = append(open, d)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Newest first.
	sort.Slice(open, func(i, j int) bool { return open[i].ID > open[j].ID })

	total := len(open)
	start := page * l.pageSize
	if start > total {
		start = total
	}
	end := start + l.pageSize
	if end > total {
		end = total
	}

	if skipped > 0 {
		l.log.Warnf("lister: skipped %d games with unreadable status", skipped)
	}
	return &Page{
		Games:   open[start:end],
		Skipped: skipped,
		Total:   total,
		HasMore: end < total,
	}, nil
}
