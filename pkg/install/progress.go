package install

import (
	"maps"
	"slices"
	"sync"
)

// Status is the phase of an install session.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusResolving   Status = "resolving"
	StatusDownloading Status = "downloading"
	StatusInstalling  Status = "installing"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// Finished reports whether s is a terminal status.
func (s Status) Finished() bool { return s == StatusDone || s == StatusError }

// Progress is a snapshot of the current session.
type Progress struct {
	ID                 string `json:"id,omitempty"`
	Status             Status `json:"status"`
	TotalPackages      int    `json:"totalPackages"`
	DownloadedPackages int    `json:"downloadedPackages"`
	CurrentPackage     string `json:"currentPackage,omitempty"`
	Error              string `json:"error,omitempty"`
}

// Tracker holds the live Progress and notifies subscribers of every change.
//
// Subscribers are called synchronously and in order. They may call
// Snapshot but must not call Subscribe.
type Tracker struct {
	mu   sync.Mutex
	cur  Progress
	subs map[int]func(Progress)
	next int

	// notify orders deliveries when several goroutines update at once.
	notify sync.Mutex
}

// NewTracker returns an idle Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		cur:  Progress{Status: StatusIdle},
		subs: make(map[int]func(Progress)),
	}
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

// Subscribe registers fn for future snapshots and returns a function that
// removes it.
func (t *Tracker) Subscribe(fn func(Progress)) (cancel func()) {
	t.mu.Lock()
	id := t.next
	t.next++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// reset replaces the progress wholesale, starting a new session.
func (t *Tracker) reset(p Progress) {
	t.update(func(cur *Progress) { *cur = p })
}

func (t *Tracker) update(fn func(*Progress)) {
	t.notify.Lock()
	defer t.notify.Unlock()

	t.mu.Lock()
	fn(&t.cur)
	snap := t.cur
	subs := make([]func(Progress), 0, len(t.subs))
	for _, id := range slices.Sorted(maps.Keys(t.subs)) {
		subs = append(subs, t.subs[id])
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
