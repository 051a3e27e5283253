// internal/session/cache_test.go
package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-pipeline/internal/models"
)

func testSummary(kcal float64) models.MacroSummary {
	return models.MacroSummary{
		Items:  []models.ResolvedNutrition{{Name: "chicken", Macros: models.Macros{Kcal: kcal}}},
		Totals: models.Macros{Kcal: kcal},
	}
}

// fixedClock gives tests control over the store's notion of now.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(ttl time.Duration) (*Store, *fixedClock) {
	clock := &fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(ttl)
	s.now = clock.now
	return s, clock
}

func TestPutGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(DefaultTTL)
	s.Put("u1", "s1", testSummary(280), "1 chicken breast")

	got, err := s.Get("u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 280.0, got.Totals.Kcal)
}

func TestGetMissingPayload(t *testing.T) {
	s, _ := newTestStore(DefaultTTL)

	_, err := s.Get("u1", "s1")
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestPayloadExpiresAfterTTL(t *testing.T) {
	s, clock := newTestStore(5 * time.Minute)
	s.Put("u1", "s1", testSummary(280), "")

	clock.advance(4 * time.Minute)
	_, err := s.Get("u1", "s1")
	assert.NoError(t, err)

	clock.advance(time.Minute)
	_, err = s.Get("u1", "s1")
	assert.ErrorIs(t, err, ErrPayloadExpired)

	_, err = s.Consume("u1", "s1")
	assert.ErrorIs(t, err, ErrPayloadExpired)
}

func TestConsumeIsExactlyOnce(t *testing.T) {
	s, _ := newTestStore(DefaultTTL)
	s.Put("u1", "s1", testSummary(280), "")

	got, err := s.Consume("u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 280.0, got.Totals.Kcal)

	_, err = s.Consume("u1", "s1")
	assert.ErrorIs(t, err, ErrPayloadConsumed)
}

func TestReleaseRestoresPayload(t *testing.T) {
	s, clock := newTestStore(5 * time.Minute)
	s.Put("u1", "s1", testSummary(280), "")

	_, err := s.Consume("u1", "s1")
	require.NoError(t, err)
	assert.False(t, s.Has("u1", "s1"))

	s.Release("u1", "s1")
	assert.True(t, s.Has("u1", "s1"))

	got, err := s.Consume("u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 280.0, got.Totals.Kcal)

	// Release does not restart the TTL clock.
	s.Release("u1", "s1")
	clock.advance(6 * time.Minute)
	_, err = s.Consume("u1", "s1")
	assert.ErrorIs(t, err, ErrPayloadExpired)
}

func TestConcurrentConsumeYieldsOneWinner(t *testing.T) {
	s, _ := newTestStore(DefaultTTL)
	s.Put("u1", "s1", testSummary(280), "")

	const goroutines = 32
	var wg sync.WaitGroup
	var successes int32
	var mu sync.Mutex

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume("u1", "s1"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
}

func TestPutReplacesPreviousPayload(t *testing.T) {
	s, _ := newTestStore(DefaultTTL)
	s.Put("u1", "s1", testSummary(280), "")
	s.Put("u1", "s1", testSummary(500), "")

	got, err := s.Get("u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.Totals.Kcal)
}

func TestNewQuestionAfterConsumeIsLoggable(t *testing.T) {
	s, _ := newTestStore(DefaultTTL)
	s.Put("u1", "s1", testSummary(280), "")

	_, err := s.Consume("u1", "s1")
	require.NoError(t, err)

	s.Put("u1", "s1", testSummary(400), "")
	got, err := s.Consume("u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 400.0, got.Totals.Kcal)
}

func TestSessionsAreIsolated(t *testing.T) {
	s, _ := newTestStore(DefaultTTL)
	s.Put("u1", "s1", testSummary(280), "")
	s.Put("u1", "s2", testSummary(500), "")
	s.Put("u2", "s1", testSummary(700), "")

	got, err := s.Get("u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 280.0, got.Totals.Kcal)

	_, err = s.Consume("u1", "s2")
	require.NoError(t, err)

	// Consuming u1/s2 does not touch the others.
	assert.True(t, s.Has("u1", "s1"))
	assert.True(t, s.Has("u2", "s1"))
}

func TestHas(t *testing.T) {
	s, clock := newTestStore(5 * time.Minute)
	assert.False(t, s.Has("u1", "s1"))

	s.Put("u1", "s1", testSummary(280), "")
	assert.True(t, s.Has("u1", "s1"))

	clock.advance(6 * time.Minute)
	assert.False(t, s.Has("u1", "s1"))
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	s, clock := newTestStore(5 * time.Minute)
	s.Put("u1", "s1", testSummary(280), "")
	s.Put("u2", "s1", testSummary(300), "")

	clock.advance(3 * time.Minute)
	s.Put("u3", "s1", testSummary(400), "")

	clock.advance(3 * time.Minute)
	assert.Equal(t, 2, s.Sweep())
	assert.True(t, s.Has("u3", "s1"))
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(DefaultTTL)
	s.Put("u1", "s1", testSummary(280), "")
	s.Delete("u1", "s1")

	_, err := s.Get("u1", "s1")
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestZeroTTLDefaultsToFiveMinutes(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, DefaultTTL, s.ttl)
}
