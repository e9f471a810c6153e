package tracker

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/scriptdelta/internal/ir"
)

// Default bounds on retained history.
const (
	DefaultMaxEventsPerScript = 1000
	DefaultMaxScripts         = 100
)

// History is the retained change log of one script.
type History struct {
	ScriptID        string           `json:"script_id"`
	Events          []ir.ChangeEvent `json:"events"`
	CurrentVersion  string           `json:"current_version"`
	PreviousVersion string           `json:"previous_version,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`

	touched uint64 // recency tiebreak for eviction
}

// Listener receives every recorded event with the ID of its script. A returned
// error is logged.
type Listener func(scriptID string, e ir.ChangeEvent) error

// Tracker records change histories for many scripts.
//
// Thread-safety: all methods are safe for concurrent use. Listeners are
// invoked without the tracker lock held.
type Tracker struct {
	mu        sync.Mutex
	histories map[string]*History
	listeners []listenerEntry
	nextID    uint64
	touchSeq  uint64

	clock              ir.Clock
	ids                ir.IDGenerator
	maxEventsPerScript int
	maxScripts         int
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the event timestamp source.
func WithClock(c ir.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithIDGenerator sets the event ID source.
func WithIDGenerator(g ir.IDGenerator) Option {
	return func(t *Tracker) { t.ids = g }
}

// WithMaxEventsPerScript bounds each script's history.
//
// Default: 1000 (DefaultMaxEventsPerScript)
func WithMaxEventsPerScript(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxEventsPerScript = n
		}
	}
}

// WithMaxScripts bounds the number of tracked scripts.
//
// Default: 100 (DefaultMaxScripts)
func WithMaxScripts(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxScripts = n
		}
	}
}

// New creates an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		histories:          make(map[string]*History),
		clock:              ir.SystemClock{},
		ids:                ir.UUIDv7Generator{},
		maxEventsPerScript: DefaultMaxEventsPerScript,
		maxScripts:         DefaultMaxScripts,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TrackChange diffs oldScript against newScript, records the resulting
// events under scriptID and broadcasts them. A nil oldScript records the
// creation of the script. Identical versions produce no events.
func (t *Tracker) TrackChange(scriptID string, oldScript, newScript *ir.Script, actorID string) []ir.ChangeEvent {
	if newScript == nil {
		return nil
	}

	now := t.clock.Now()

	var raw []rawChange
	if oldScript == nil {
		raw = []rawChange{{
			kind:        ir.ChangeStructure,
			location:    ir.Location{Path: []string{"script", scriptID}},
			newValue:    newScript.Clone(),
			description: "Initial script creation",
			cascadeFrom: -1,
			affected:    []string{scriptID},
		}}
	} else {
		raw = detectChanges(oldScript, newScript)
	}

	events := make([]ir.ChangeEvent, 0, len(raw))
	for _, c := range raw {
		affected := c.affected
		if affected == nil {
			affected = identifyAffectedElements(c, newScript)
		}
		events = append(events, ir.ChangeEvent{
			ID:               t.ids.Generate(),
			Timestamp:        now,
			Kind:             c.kind,
			Location:         c.location,
			OldValue:         c.oldValue,
			NewValue:         c.newValue,
			AffectedElements: affected,
			ActorID:          actorID,
			Description:      c.description,
		})
	}

	if len(events) == 0 {
		slog.Debug("no changes detected", "script_id", scriptID)
		return events
	}

	version, err := ir.ScriptFingerprint(newScript)
	if err != nil {
		// Fall back to an opaque marker; the fingerprint only labels versions.
		version = t.ids.Generate()
		slog.Warn("script fingerprint failed", "script_id", scriptID, "error", err)
	}

	t.mu.Lock()
	t.recordLocked(scriptID, events, version, now)
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	slog.Debug("changes tracked", "script_id", scriptID, "events", len(events), "version", version)

	for _, e := range events {
		notify(listeners, scriptID, cloneEvent(e))
	}

	out := make([]ir.ChangeEvent, len(events))
	for i, e := range events {
		out[i] = cloneEvent(e)
	}
	return out
}

// CompareVersions is TrackChange without an actor.
func (t *Tracker) CompareVersions(scriptID string, oldVersion, newVersion *ir.Script) []ir.ChangeEvent {
	return t.TrackChange(scriptID, oldVersion, newVersion, "")
}

func (t *Tracker) recordLocked(scriptID string, events []ir.ChangeEvent, version string, now time.Time) {
	h, ok := t.histories[scriptID]
	if !ok {
		h = &History{ScriptID: scriptID, CreatedAt: now}
		t.histories[scriptID] = h
	}

	h.Events = append(h.Events, events...)
	if over := len(h.Events) - t.maxEventsPerScript; over > 0 {
		h.Events = slices.Clone(h.Events[over:])
	}

	if h.CurrentVersion != version {
		h.PreviousVersion = h.CurrentVersion
		h.CurrentVersion = version
	}

	t.touchSeq++
	h.touched = t.touchSeq

	t.enforceScriptLimitLocked()
}

// enforceScriptLimitLocked evicts the scripts whose last event is oldest.
func (t *Tracker) enforceScriptLimitLocked() {
	for len(t.histories) > t.maxScripts {
		var victim *History
		for _, h := range t.histories {
			if victim == nil || olderThan(h, victim) {
				victim = h
			}
		}
		slog.Debug("evicting change history", "script_id", victim.ScriptID)
		delete(t.histories, victim.ScriptID)
	}
}

func olderThan(a, b *History) bool {
	at, bt := lastEventTime(a), lastEventTime(b)
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return a.touched < b.touched
}

func lastEventTime(h *History) time.Time {
	if len(h.Events) == 0 {
		return time.Time{}
	}
	return h.Events[len(h.Events)-1].Timestamp
}

// History returns a copy of the retained history for scriptID.
func (t *Tracker) History(scriptID string) (History, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.histories[scriptID]
	if !ok {
		return History{}, false
	}
	out := *h
	out.Events = make([]ir.ChangeEvent, len(h.Events))
	for i, e := range h.Events {
		out.Events[i] = cloneEvent(e)
	}
	return out, true
}

// RecentChanges returns up to limit of the newest events, newest first.
// A non-positive limit defaults to 10.
func (t *Tracker) RecentChanges(scriptID string, limit int) []ir.ChangeEvent {
	if limit <= 0 {
		limit = 10
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.histories[scriptID]
	if !ok {
		return nil
	}
	start := max(0, len(h.Events)-limit)
	out := make([]ir.ChangeEvent, 0, len(h.Events)-start)
	for i := len(h.Events) - 1; i >= start; i-- {
		out = append(out, cloneEvent(h.Events[i]))
	}
	return out
}

// ScriptIDs returns the tracked script IDs in sorted order.
func (t *Tracker) ScriptIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.histories))
	for id := range t.histories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ClearHistory drops the history of scriptID, or of every script when
// scriptID is empty.
func (t *Tracker) ClearHistory(scriptID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if scriptID == "" {
		t.histories = make(map[string]*History)
		return
	}
	delete(t.histories, scriptID)
}

// AddListener registers fn and returns a function that removes it.
func (t *Tracker) AddListener(fn Listener) (remove func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.listeners = slices.DeleteFunc(t.listeners, func(l listenerEntry) bool { return l.id == id })
	}
}

func notify(listeners []listenerEntry, scriptID string, e ir.ChangeEvent) {
	for _, l := range listeners {
		if err := callListener(l.fn, scriptID, e); err != nil {
			slog.Warn("change listener failed",
				"listener", l.id,
				"script_id", scriptID,
				"event_id", e.ID,
				"error", err)
		}
	}
}

func callListener(fn Listener, scriptID string, e ir.ChangeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(scriptID, e)
}
