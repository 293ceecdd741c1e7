package catalog

import (
	"context"
	"sync"
	"time"
)

const DefaultDebounce = 350 * time.Millisecond

// LiveSearch re-queries the catalog as the shopper edits a filter, waiting
// for a quiet period so a burst of edits costs one query.
type LiveSearch struct {
	composer *Composer
	delay    time.Duration

	mu     sync.Mutex
	filter Filter
	key    string
	result Result
	gen    uint64
	timer  *time.Timer
	closed bool
}

// NewLiveSearch starts with the unfiltered catalog loading.
func NewLiveSearch(c *Composer, delay time.Duration) *LiveSearch {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	l := &LiveSearch{composer: c, delay: delay, key: "-"}
	l.Set(Filter{})
	return l
}

// Set replaces the filter. The query runs once no further change arrives within the delay.
// Setting the current filter again does nothing.
func (l *LiveSearch) Set(f Filter) {
	f = f.normalized()
	key := f.Key()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || key == l.key {
		return
	}
	l.filter = f
	l.key = key
	l.gen++
	l.result = Result{State: StateLoading, Products: []Product{}}

	gen := l.gen
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.delay, func() { l.run(gen, f) })
}

func (l *LiveSearch) run(gen uint64, f Filter) {
	l.mu.Lock()
	stale := gen != l.gen || l.closed
	l.mu.Unlock()
	if stale {
		return
	}

	res := l.composer.Query(context.Background(), f)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen == l.gen {
		l.result = res
	}
}

// Current returns the filter and its latest result. The result is Loading while a query is pending.
func (l *LiveSearch) Current() (Filter, Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filter, l.result
}

// Close stops any pending query.
func (l *LiveSearch) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
	}
}
