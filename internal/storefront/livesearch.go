package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drstein77/storefront/internal/catalog"
	"github.com/drstein77/storefront/internal/debounce"
	"github.com/drstein77/storefront/internal/models"
	"go.uber.org/zap"
)

// searchIdle is how long an untouched live search is kept around.
const searchIdle = 10 * time.Minute

// SearchResult is the outcome of the last search that settled.
// Seq grows with every settled search; zero means nothing settled yet.
type SearchResult struct {
	Seq       uint64           `json:"seq"`
	Query     string           `json:"query"`
	Pending   bool             `json:"pending"`
	Products  []models.Product `json:"products"`
	NoResults bool             `json:"noResults"`
	Error     string           `json:"error,omitempty"`
}

// LiveSearch runs the search of one visitor after typing pauses.
type LiveSearch struct {
	catalog Catalog
	timeout time.Duration
	log     Log
	deb     *debounce.Debouncer

	mx       sync.Mutex
	latest   SearchResult
	pending  bool
	gen      uint64
	lastUsed time.Time
}

func newLiveSearch(cat Catalog, delay, timeout time.Duration, log Log) *LiveSearch {
	return &LiveSearch{
		catalog:  cat,
		timeout:  timeout,
		log:      log,
		deb:      debounce.New(delay),
		lastUsed: time.Now(),
	}
}

// Input records a keystroke. Only the last input within the debounce window is searched.
func (l *LiveSearch) Input(query string) {
	l.mx.Lock()
	l.pending = true
	l.lastUsed = time.Now()
	l.gen++
	gen := l.gen
	l.mx.Unlock()

	l.deb.Schedule(func() { l.run(query, gen) })
}

// Latest returns the last settled result.
func (l *LiveSearch) Latest() SearchResult {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.lastUsed = time.Now()

	res := l.latest
	res.Pending = l.pending
	return res
}

func (l *LiveSearch) Stop() {
	l.deb.Stop()
}

func (l *LiveSearch) run(query string, gen uint64) {
	ctx := context.Background()
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	res := SearchResult{Query: query}
	products, err := l.catalog.Search(ctx, query)
	switch {
	case errors.Is(err, catalog.ErrNoResults):
		res.NoResults = true
	case err != nil:
		l.log.Error("live search failed", zap.String("query", query), zap.Error(err))
		res.Error = MsgBackendUnreachable
	default:
		res.Products = products
	}

	l.mx.Lock()
	// a newer keystroke owns the result now
	if gen != l.gen {
		l.mx.Unlock()
		return
	}
	res.Seq = l.latest.Seq + 1
	l.latest = res
	l.pending = false
	l.mx.Unlock()
}

func (l *LiveSearch) idleSince(now time.Time) time.Duration {
	l.mx.Lock()
	defer l.mx.Unlock()
	return now.Sub(l.lastUsed)
}

// LiveSearch returns the live search of a visitor, creating it on first use.
func (s *Service) LiveSearch(sess *models.Session) *LiveSearch {
	s.mx.Lock()
	defer s.mx.Unlock()

	now := time.Now()
	for id, ls := range s.searches {
		if id != sess.ID && ls.idleSince(now) > searchIdle {
			ls.Stop()
			delete(s.searches, id)
		}
	}

	ls, ok := s.searches[sess.ID]
	if !ok {
		ls = newLiveSearch(s.catalog, s.cfg.SearchDebounce, s.cfg.RequestTimeout, s.log)
		s.searches[sess.ID] = ls
	}
	return ls
}

func (s *Service) dropSearch(id string) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if ls, ok := s.searches[id]; ok {
		ls.Stop()
		delete(s.searches, id)
	}
}

// Close stops every pending live search.
func (s *Service) Close() {
	s.mx.Lock()
	defer s.mx.Unlock()

	for id, ls := range s.searches {
		ls.Stop()
		delete(s.searches, id)
	}
}
