package xfeed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrFetchInFlight is returned when a Paginator is asked to fetch while a
// previous fetch has not completed.
var ErrFetchInFlight = errors.New("paginator: fetch already in flight")

// PageSource fetches one page. An empty cursor asks for the first page.
type PageSource interface {
	FetchPage(ctx context.Context, cursor string) (*TimelineBatch, error)
}

// PageFunc adapts a function to PageSource.
type PageFunc func(ctx context.Context, cursor string) (*TimelineBatch, error)

// FetchPage implements PageSource.
func (f PageFunc) FetchPage(ctx context.Context, cursor string) (*TimelineBatch, error) {
	return f(ctx, cursor)
}

// State is the pagination state.
type State int

const (
	StateEmpty State = iota
	StateFetching
	StateHasMore
	StateExhausted
	StateStalled
	StateMaxPagesReached
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFetching:
		return "fetching"
	case StateHasMore:
		return "has_more"
	case StateExhausted:
		return "exhausted"
	case StateStalled:
		return "stalled"
	case StateMaxPagesReached:
		return "max_pages"
	}
	return "unknown"
}

// terminal reports whether no further page will be fetched.
func (s State) terminal() bool {
	return s == StateExhausted || s == StateStalled || s == StateMaxPagesReached
}

// Page is a snapshot of the accumulated pagination state.
type Page struct {
	Items  []TimelineItem
	Cursor string
	State  State
	Pages  int
}

// Paginator accumulates timeline pages, de-duplicating items by id.
// Fetches are strictly serial: a call made while another is in flight fails
// with ErrFetchInFlight.
type Paginator struct {
	src      PageSource
	maxPages int

	mu         sync.Mutex
	state      State
	items      []TimelineItem
	seen       map[string]bool
	cursor     string
	consumed   map[string]bool
	pages      int
	generation uint64
	inFlight   bool
}

// NewPaginator returns a Paginator over src. maxPages <= 0 means unbounded.
func NewPaginator(src PageSource, maxPages int) *Paginator {
	p := &Paginator{src: src, maxPages: maxPages}
	p.clear()
	return p
}

func (p *Paginator) clear() {
	p.state = StateEmpty
	p.items = nil
	p.seen = make(map[string]bool)
	p.cursor = ""
	p.consumed = make(map[string]bool)
	p.pages = 0
	p.inFlight = false
}

// Reset discards all state. Fetches started before Reset complete silently
// without touching the new state.
func (p *Paginator) Reset() {
	p.mu.Lock()
	p.generation++
	p.clear()
	p.mu.Unlock()
}

// State returns the current state.
func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the accumulated items and cursor.
func (p *Paginator) Snapshot() Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

func (p *Paginator) snapshot() Page {
	items := make([]TimelineItem, len(p.items))
	copy(items, p.items)
	state := p.state
	if p.inFlight {
		state = StateFetching
	}
	return Page{Items: items, Cursor: p.cursor, State: state, Pages: p.pages}
}

// LoadInitial clears the state and fetches the first page.
func (p *Paginator) LoadInitial(ctx context.Context) (Page, error) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return Page{}, ErrFetchInFlight
	}
	p.generation++
	p.clear()
	gen, page, ok := p.claim("")
	p.mu.Unlock()
	if !ok {
		return page, nil
	}
	return p.fetch(ctx, "", gen)
}

// LoadNext fetches the page after the held cursor and merges it. In a terminal
// state, or without a cursor, it returns the current state without fetching.
func (p *Paginator) LoadNext(ctx context.Context) (Page, error) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return Page{}, ErrFetchInFlight
	}
	if p.state.terminal() || p.cursor == "" {
		if p.state == StateHasMore {
			p.state = StateExhausted
		}
		page := p.snapshot()
		p.mu.Unlock()
		return page, nil
	}
	cursor := p.cursor
	gen, page, ok := p.claim(cursor)
	p.mu.Unlock()
	if !ok {
		return page, nil
	}
	return p.fetch(ctx, cursor, gen)
}

// claim marks a fetch of cursor as in flight. It must be called with p.mu held,
// in the same critical section as the in-flight check. ok is false when the
// page limit is already reached; page is then the snapshot to return.
func (p *Paginator) claim(cursor string) (gen uint64, page Page, ok bool) {
	if p.maxPages > 0 && p.pages >= p.maxPages {
		p.state = StateMaxPagesReached
		return 0, p.snapshot(), false
	}
	p.inFlight = true
	if cursor != "" {
		p.consumed[cursor] = true
	}
	return p.generation, Page{}, true
}

// fetch runs a claimed fetch and merges its result unless gen went stale.
func (p *Paginator) fetch(ctx context.Context, cursor string, gen uint64) (Page, error) {
	batch, err := p.src.FetchPage(ctx, cursor)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		slog.Debug("paginator: discarding stale page", slog.Uint64("generation", gen))
		return p.snapshot(), nil
	}
	p.inFlight = false
	if err != nil {
		if cursor != "" {
			// allow the same cursor to be retried
			delete(p.consumed, cursor)
		}
		return p.snapshot(), err
	}

	p.pages++
	p.merge(batch)
	switch {
	case p.cursor == "":
		p.state = StateExhausted
	case p.consumed[p.cursor]:
		slog.Warn("paginator: cursor repeated, stopping", slog.Int("pages", p.pages))
		p.state = StateStalled
	case p.maxPages > 0 && p.pages >= p.maxPages:
		p.state = StateMaxPagesReached
	default:
		p.state = StateHasMore
	}
	return p.snapshot(), nil
}

// merge appends unseen items and takes the batch cursor unconditionally.
func (p *Paginator) merge(batch *TimelineBatch) {
	if batch == nil {
		p.cursor = ""
		return
	}
	for _, item := range batch.Items {
		if item.ID == "" || p.seen[item.ID] {
			continue
		}
		p.seen[item.ID] = true
		p.items = append(p.items, item)
	}
	p.cursor = batch.NextCursor
}

// StopReason explains why Drain stopped.
type StopReason string

const (
	StopDone     StopReason = "done"
	StopMaxPages StopReason = "max_pages"
	StopStalled  StopReason = "stalled"
)

// DrainResult is the outcome of Drain.
type DrainResult struct {
	Items          []TimelineItem
	Pages          int
	Cursor         string
	StoppedBecause StopReason
}

// Drain loads pages until the timeline is exhausted, stalls or hits the page
// limit. It is meant for headless bulk use.
func (p *Paginator) Drain(ctx context.Context) (DrainResult, error) {
	page, err := p.LoadInitial(ctx)
	for err == nil && page.State == StateHasMore {
		page, err = p.LoadNext(ctx)
	}
	res := DrainResult{Items: page.Items, Pages: page.Pages, Cursor: page.Cursor}
	switch page.State {
	case StateStalled:
		res.StoppedBecause = StopStalled
	case StateMaxPagesReached:
		res.StoppedBecause = StopMaxPages
	default:
		res.StoppedBecause = StopDone
	}
	return res, err
}
