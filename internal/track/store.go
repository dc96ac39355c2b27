// Package track holds the authoritative entity picture: the latest
// position report per entity plus a bounded per-entity history buffer
// for movement analysis.
//
// The reconciliation rule makes ingest idempotent and order-independent:
// a report only replaces current state when its observation instant is
// strictly newer, so duplicate and out-of-order delivery (including
// whole-feed replays after a reconnect) can never regress state.
package track

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bcperry/tak-server-mcp/internal/model"
)

// Config bounds the store.
type Config struct {
	// EntityTTL evicts entities not observed for this long. Zero
	// disables TTL eviction.
	EntityTTL time.Duration

	// MaxEntities caps the number of tracked entities; the entities
	// with the oldest observations are evicted first. Zero means
	// unbounded.
	MaxEntities int

	// HistoryWindow and HistoryCap bound each entity's history buffer.
	HistoryWindow time.Duration
	HistoryCap    int

	// SweepInterval is how often the eviction sweep runs.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.HistoryWindow == 0 {
		c.HistoryWindow = time.Hour
	}
	if c.HistoryCap == 0 {
		c.HistoryCap = 1000
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
	return c
}

// record is one entity's state. Its mutex serializes upserts and reads
// for that entity only; distinct entities never contend.
type record struct {
	mu      sync.Mutex
	current model.PositionReport
	history []model.PositionReport // chronological by ObservedAt
}

// Store is the entity state store. Safe for concurrent use by the
// ingest path and any number of query paths.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]*record

	metrics  *storeMetrics
	stopOnce sync.Once
	done     chan struct{}
}

// NewStore creates a store and starts its eviction sweep. Call Close
// to stop the sweep goroutine.
func NewStore(cfg Config, logger *slog.Logger) *Store {
	s := &Store{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		records: make(map[string]*record),
		done:    make(chan struct{}),
	}
	s.metrics = newStoreMetrics(s)
	go s.sweepLoop()
	return s
}

// Close stops the eviction sweep. Safe to call multiple times.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.done) })
	return nil
}

// Upsert applies a normalized report. Current state is replaced only
// when the report is strictly newer than what is stored; equal or older
// reports are dropped silently. The report is appended to the entity's
// history either way unless it duplicates an already-buffered
// observation instant. Returns whether current state changed.
func (s *Store) Upsert(r model.PositionReport) bool {
	rec := s.recordFor(r.UID)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	changed := rec.current.UID == "" || r.ObservedAt.After(rec.current.ObservedAt)
	if changed {
		rec.current = r
	}
	inserted := rec.insertHistory(r, s.cfg.HistoryWindow, s.cfg.HistoryCap)

	s.metrics.recordUpsert(changed)
	if !changed && !inserted {
		s.logger.Debug("track: duplicate report dropped", "uid", r.UID, "observed_at", r.ObservedAt)
	}
	return changed
}

// Current returns the latest known state for an entity.
func (s *Store) Current(uid string) (model.PositionReport, error) {
	s.mu.RLock()
	rec, ok := s.records[uid]
	s.mu.RUnlock()
	if !ok {
		return model.PositionReport{}, &model.NotFoundError{UID: uid}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.current.UID == "" {
		return model.PositionReport{}, &model.NotFoundError{UID: uid}
	}
	return rec.current, nil
}

// Query returns a snapshot of all current state matching the filter at
// the given query time. Result order is unspecified.
func (s *Store) Query(f model.EntityFilter, now time.Time) []model.PositionReport {
	out := make([]model.PositionReport, 0)
	for _, rec := range s.snapshot() {
		rec.mu.Lock()
		cur := rec.current
		rec.mu.Unlock()
		if cur.UID != "" && f.Matches(cur, now) {
			out = append(out, cur)
		}
	}
	return out
}

// History materializes an entity's track history inside the window
// [since, until], chronologically sorted. A missing entity is a
// not-found failure; an empty window is an empty (not nil) slice.
func (s *Store) History(uid string, since, until time.Time) ([]model.PositionReport, error) {
	s.mu.RLock()
	rec, ok := s.records[uid]
	s.mu.RUnlock()
	if !ok {
		return nil, &model.NotFoundError{UID: uid}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	out := make([]model.PositionReport, 0, len(rec.history))
	for _, r := range rec.history {
		if !since.IsZero() && r.ObservedAt.Before(since) {
			continue
		}
		if !until.IsZero() && r.ObservedAt.After(until) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Count returns the number of tracked entities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Remove drops an entity entirely.
func (s *Store) Remove(uid string) {
	s.mu.Lock()
	delete(s.records, uid)
	s.mu.Unlock()
}

func (s *Store) recordFor(uid string) *record {
	s.mu.RLock()
	rec, ok := s.records[uid]
	s.mu.RUnlock()
	if ok {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok = s.records[uid]; ok {
		return rec
	}
	rec = &record{}
	s.records[uid] = rec
	return rec
}

func (s *Store) snapshot() []*record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	return recs
}

// insertHistory adds r in chronological position, skipping exact
// duplicates of an already-buffered observation instant, then trims to
// the window and cap. Reports whether the buffer changed.
func (rec *record) insertHistory(r model.PositionReport, window time.Duration, maxLen int) bool {
	h := rec.history
	i := sort.Search(len(h), func(i int) bool {
		return !h[i].ObservedAt.Before(r.ObservedAt)
	})
	if i < len(h) && h[i].ObservedAt.Equal(r.ObservedAt) {
		return false
	}

	h = append(h, model.PositionReport{})
	copy(h[i+1:], h[i:])
	h[i] = r

	// Trim by window relative to the newest buffered report.
	if window > 0 && len(h) > 0 {
		cutoff := h[len(h)-1].ObservedAt.Add(-window)
		start := sort.Search(len(h), func(i int) bool {
			return !h[i].ObservedAt.Before(cutoff)
		})
		h = h[start:]
	}
	// Trim by cap, dropping the oldest.
	if maxLen > 0 && len(h) > maxLen {
		h = h[len(h)-maxLen:]
	}

	rec.history = h
	return true
}

// sweepLoop periodically evicts entities past the TTL and enforces the
// entity cap.
func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evict(time.Now())
		}
	}
}

func (s *Store) evict(now time.Time) {
	type aged struct {
		uid      string
		observed time.Time
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted int
	if s.cfg.EntityTTL > 0 {
		cutoff := now.Add(-s.cfg.EntityTTL)
		for uid, rec := range s.records {
			rec.mu.Lock()
			stale := rec.current.UID != "" && rec.current.ObservedAt.Before(cutoff)
			rec.mu.Unlock()
			if stale {
				delete(s.records, uid)
				evicted++
			}
		}
	}

	if s.cfg.MaxEntities > 0 && len(s.records) > s.cfg.MaxEntities {
		all := make([]aged, 0, len(s.records))
		for uid, rec := range s.records {
			rec.mu.Lock()
			all = append(all, aged{uid: uid, observed: rec.current.ObservedAt})
			rec.mu.Unlock()
		}
		sort.Slice(all, func(i, j int) bool { return all[i].observed.Before(all[j].observed) })
		for _, a := range all[:len(s.records)-s.cfg.MaxEntities] {
			delete(s.records, a.uid)
			evicted++
		}
	}

	if evicted > 0 {
		s.logger.Info("track: evicted entities", "count", evicted, "remaining", len(s.records))
	}
}
