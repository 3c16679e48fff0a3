package speech

import (
	"errors"
	"sync"

	xfeed "github.com/anatolykoptev/go-xfeed"
)

// Events observe a Queue. Any field may be nil. They are called without the
// queue lock held.
type Events struct {
	OnIndexChange func(index int, item xfeed.TimelineItem)
	OnDone        func()
	OnError       func(error)
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithTextBuilder replaces BuildText.
func WithTextBuilder(fn func(xfeed.TimelineItem) string) QueueOption {
	return func(q *Queue) { q.build = fn }
}

// Queue plays timeline items in order through an Engine.
//
// Every Play, Resume and Stop starts a new session; callbacks from utterances
// of an older session are ignored, so a late OnDone can never advance a queue
// that was restarted or stopped in the meantime.
type Queue struct {
	engine Engine
	events Events
	build  func(xfeed.TimelineItem) string

	mu      sync.Mutex
	items   []xfeed.TimelineItem
	index   int
	session uint64
	playing bool
}

// NewQueue returns an idle queue.
func NewQueue(engine Engine, events Events, opts ...QueueOption) *Queue {
	q := &Queue{engine: engine, events: events, build: BuildText}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Play replaces the items and starts at index start, clamped to the batch.
func (q *Queue) Play(items []xfeed.TimelineItem, start int) {
	q.mu.Lock()
	q.items = items
	q.mu.Unlock()
	q.startAt(max(start, 0))
}

// Resume restarts playback at the current index. It does nothing without items.
func (q *Queue) Resume() {
	q.startAt(-1)
}

// Stop interrupts playback. The current index is kept for Resume.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.session++
	q.playing = false
	q.mu.Unlock()
	q.engine.Stop()
}

// UpdateItems swaps the items without interrupting the current utterance,
// e.g. after the next page was appended.
func (q *Queue) UpdateItems(items []xfeed.TimelineItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = items
	if q.index > len(items)-1 {
		q.index = max(0, len(items)-1)
	}
}

// Index returns the index of the current or last spoken item.
func (q *Queue) Index() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index
}

// Playing reports whether an utterance is in progress or pending.
func (q *Queue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// startAt begins a new session. A negative index resumes at q.index.
func (q *Queue) startAt(index int) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.index = 0
		q.playing = false
		q.mu.Unlock()
		return
	}
	if index < 0 {
		index = q.index
	}
	index = min(index, len(q.items)-1)
	q.session++
	session := q.session
	q.playing = true
	q.index = index
	q.mu.Unlock()

	q.engine.Stop()
	q.speak(index, session)
}

func (q *Queue) speak(index int, session uint64) {
	q.mu.Lock()
	if session != q.session {
		q.mu.Unlock()
		return
	}
	if index >= len(q.items) {
		q.mu.Unlock()
		q.finish(session)
		return
	}
	item := q.items[index]
	q.mu.Unlock()

	q.engine.Speak(q.build(item), Callbacks{
		OnStart: func() {
			if !q.current(session, func() { q.index = index }) {
				return
			}
			if q.events.OnIndexChange != nil {
				q.events.OnIndexChange(index, item)
			}
		},
		OnDone: func() {
			q.speak(index+1, session)
		},
		OnStopped: func() {
			q.current(session, func() { q.playing = false })
		},
		OnError: func(err error) {
			if !q.current(session, func() { q.playing = false }) {
				return
			}
			if err == nil {
				err = errors.New("speech failed")
			}
			if q.events.OnError != nil {
				q.events.OnError(err)
			}
		},
	})
}

func (q *Queue) finish(session uint64) {
	if !q.current(session, func() { q.playing = false }) {
		return
	}
	if q.events.OnDone != nil {
		q.events.OnDone()
	}
}

// current runs fn under the lock if session is still the active one.
func (q *Queue) current(session uint64, fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if session != q.session {
		return false
	}
	fn()
	return true
}
