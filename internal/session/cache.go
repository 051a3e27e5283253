// internal/session/cache.go

// Package session holds the one shared mutable resource in the pipeline: the
// per-session macro payload awaiting a "log it" follow-up.
package session

import (
	"errors"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"macro-pipeline/internal/models"
)

// DefaultTTL is long enough for "tell me the macros" → "log it", short
// enough to keep stale numbers from being committed.
const DefaultTTL = 5 * time.Minute

var (
	// ErrNoPayload means there is nothing to log for this session.
	ErrNoPayload = errors.New("no recent question to log")
	// ErrPayloadExpired means the cached payload outlived its TTL.
	ErrPayloadExpired = errors.New("no recent question to log (previous answer expired)")
	// ErrPayloadConsumed means the payload was already committed once.
	ErrPayloadConsumed = errors.New("that meal was already logged")
)

type entry struct {
	mu        sync.Mutex
	summary   models.MacroSummary
	rawText   string
	createdAt time.Time
	consumed  bool
}

// Store is an explicit keyed payload cache: session key → payload + expiry.
// Concurrent writes for the same session are last-write-wins; consumption is
// exactly-once.
type Store struct {
	ttl     time.Duration
	entries cmap.ConcurrentMap[string, *entry]
	now     func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		entries: cmap.New[*entry](),
		now:     time.Now,
	}
}

func key(userID, sessionID string) string {
	return userID + "/" + sessionID
}

// Put stores the latest computed summary for this session, replacing any
// previous one.
func (s *Store) Put(userID, sessionID string, summary models.MacroSummary, rawText string) {
	s.entries.Set(key(userID, sessionID), &entry{
		summary:   summary,
		rawText:   rawText,
		createdAt: s.now(),
	})
}

// Get returns the cached summary without consuming it.
func (s *Store) Get(userID, sessionID string) (models.MacroSummary, error) {
	e, ok := s.entries.Get(key(userID, sessionID))
	if !ok {
		return models.MacroSummary{}, ErrNoPayload
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.check(e); err != nil {
		return models.MacroSummary{}, err
	}
	return e.summary, nil
}

// Has reports whether an unconsumed, unexpired payload exists; it feeds the
// router's session context.
func (s *Store) Has(userID, sessionID string) bool {
	_, err := s.Get(userID, sessionID)
	return err == nil
}

// Consume atomically claims the payload for commit. A second consume of the
// same payload fails with ErrPayloadConsumed no matter how the calls
// interleave. The entry stays in the map so a failed commit can Release it.
func (s *Store) Consume(userID, sessionID string) (models.MacroSummary, error) {
	e, ok := s.entries.Get(key(userID, sessionID))
	if !ok {
		return models.MacroSummary{}, ErrNoPayload
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.check(e); err != nil {
		return models.MacroSummary{}, err
	}

	e.consumed = true
	return e.summary, nil
}

// Release returns a claimed payload to loggable state. Called when the
// commit that claimed it failed, so the user can resubmit; the TTL clock is
// not reset.
func (s *Store) Release(userID, sessionID string) {
	e, ok := s.entries.Get(key(userID, sessionID))
	if !ok {
		return
	}

	e.mu.Lock()
	e.consumed = false
	e.mu.Unlock()
}

// Delete drops the payload without consuming it.
func (s *Store) Delete(userID, sessionID string) {
	s.entries.Remove(key(userID, sessionID))
}

// Sweep removes expired entries and returns how many were dropped. Intended
// for a periodic janitor; correctness does not depend on it since reads
// check the TTL themselves.
func (s *Store) Sweep() int {
	removed := 0
	for item := range s.entries.IterBuffered() {
		e := item.Val
		e.mu.Lock()
		expired := s.now().Sub(e.createdAt) >= s.ttl
		e.mu.Unlock()
		if expired {
			s.entries.Remove(item.Key)
			removed++
		}
	}
	return removed
}

// check assumes e.mu is held.
func (s *Store) check(e *entry) error {
	if e.consumed {
		return ErrPayloadConsumed
	}
	if s.now().Sub(e.createdAt) >= s.ttl {
		return ErrPayloadExpired
	}
	return nil
}
