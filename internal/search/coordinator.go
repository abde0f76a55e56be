// Package search coordinates interactive post search for a single
// client connection: keystrokes are debounced, short terms clear the
// results, and late responses from superseded terms are discarded.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"
)

const (
	// MinTermLength is the shortest term that triggers a query.
	MinTermLength = 2
	// ResultLimit caps how many posts a single search delivers.
	ResultLimit = 5
	// DefaultDebounce is the quiet period after the last keystroke
	// before a query fires.
	DefaultDebounce = 300 * time.Millisecond
)

// Result states delivered to the client.
const (
	StateIdle     = "idle"
	StateQuerying = "querying"
	StateResults  = "results"
	StateEmpty    = "empty"
	StateError    = "error"
)

// Results is one search state update for the client.
type Results struct {
	State string         `json:"state"`
	Term  string         `json:"term"`
	Posts []*models.Post `json:"posts,omitempty"`
}

// Searcher executes a search term against the post store.
type Searcher func(ctx context.Context, term string, limit int) ([]*models.Post, error)

// Coordinator serializes search activity for one client. Every Input
// supersedes whatever came before it: pending debounce timers are
// cancelled and in-flight query results for older terms are dropped.
type Coordinator struct {
	search   Searcher
	deliver  func(Results)
	debounce time.Duration

	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	closed bool
}

// NewCoordinator builds a coordinator that pushes state updates through
// deliver. A non-positive debounce falls back to DefaultDebounce.
func NewCoordinator(search Searcher, deliver func(Results), debounce time.Duration) *Coordinator {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Coordinator{
		search:   search,
		deliver:  deliver,
		debounce: debounce,
	}
}

// Input registers the latest search term. Terms shorter than
// MinTermLength clear the results immediately without querying.
func (c *Coordinator) Input(ctx context.Context, term string) {
	term = strings.TrimSpace(term)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	if len([]rune(term)) < MinTermLength {
		c.mu.Unlock()
		c.deliver(Results{State: StateIdle, Term: term})
		return
	}

	c.timer = time.AfterFunc(c.debounce, func() {
		c.runQuery(ctx, gen, term)
	})
	c.mu.Unlock()
}

// runQuery executes the debounced search and delivers the outcome
// unless a newer term has superseded it.
func (c *Coordinator) runQuery(ctx context.Context, gen uint64, term string) {
	if !c.isCurrent(gen) {
		return
	}
	c.deliverIfCurrent(gen, Results{State: StateQuerying, Term: term})

	posts, err := c.search(ctx, term, ResultLimit)

	if err != nil {
		observability.SearchQueries.WithLabelValues(StateError).Inc()
		c.deliverIfCurrent(gen, Results{State: StateError, Term: term})
		return
	}
	if len(posts) > ResultLimit {
		posts = posts[:ResultLimit]
	}
	if len(posts) == 0 {
		observability.SearchQueries.WithLabelValues(StateEmpty).Inc()
		c.deliverIfCurrent(gen, Results{State: StateEmpty, Term: term})
		return
	}
	observability.SearchQueries.WithLabelValues(StateResults).Inc()
	c.deliverIfCurrent(gen, Results{State: StateResults, Term: term, Posts: posts})
}

func (c *Coordinator) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && gen == c.gen
}

func (c *Coordinator) deliverIfCurrent(gen uint64, r Results) {
	if c.isCurrent(gen) {
		c.deliver(r)
	}
}

// Close cancels any pending timer and discards in-flight results.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
