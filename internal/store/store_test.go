package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx)
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("greeting", []byte("hello"), 0))

	v, ok, err := s.Get("greeting")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", string(v))
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetWithTTLExpires(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("temp", []byte("v"), 10*time.Millisecond))

	_, ok, err := s.Get("temp")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok, err = s.Get("temp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrOnMissingKeyStartsAtZero(t *testing.T) {
	s := newTestStore(t)
	n, err := s.Incr("counter")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.Incr("counter")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestIncrNonIntegerIsError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("str", []byte("abc"), 0))
	_, err := s.Incr("str")
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestWrongTypeErrors(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RPush("alist", []byte("a"))
	require.NoError(t, err)

	_, _, err = s.Get("alist")
	assert.ErrorIs(t, err, ErrWrongType)

	require.NoError(t, s.Set("astring", []byte("x"), 0))
	_, err = s.RPush("astring", []byte("y"))
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestTypeReportsKind(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("k", []byte("v"), 0))
	assert.Equal(t, KindString, s.Type("k"))
	assert.Equal(t, KindNone, s.Type("absent"))
}

func TestKeysGlobGrammar(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("user:1", []byte("a"), 0))
	require.NoError(t, s.Set("user:2", []byte("b"), 0))
	require.NoError(t, s.Set("order:1", []byte("c"), 0))

	assert.ElementsMatch(t, []string{"user:1", "user:2", "order:1"}, s.Keys("*"))
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, s.Keys("user:*"))
	assert.ElementsMatch(t, []string{"user:1", "order:1"}, s.Keys("*:1"))
}

func TestDelAndExists(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("a", []byte("1"), 0))
	require.NoError(t, s.Set("b", []byte("2"), 0))

	assert.Equal(t, 2, s.Exists("a", "b", "missing"))
	assert.Equal(t, 2, s.Del("a", "b", "missing"))
	assert.Equal(t, 0, s.Exists("a", "b"))
}

// TestLockedEntryPointsHoldCriticalSection exercises the Lock/Unlock +
// *Locked entry points EXEC's batch replay relies on: a writer blocked
// on s.mu must not observe a partially-applied batch. The key written
// by SetLocked must already carry the value IncrLocked produced by the
// time a concurrent Set unblocks and runs.
func TestLockedEntryPointsHoldCriticalSection(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("a", []byte("1"), 0))

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		s.Lock()
		close(started)
		require.NoError(t, s.SetLocked("a", []byte("1"), 0))
		n, err := s.IncrLocked("a")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
		time.Sleep(20 * time.Millisecond) // give a concurrent writer a chance to race in if unlocked early
		s.Unlock()
		close(done)
	}()

	<-started
	require.NoError(t, s.Set("a", []byte("999"), 0)) // blocks until the goroutine above calls Unlock
	<-done

	v, ok, err := s.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "999", string(v))
}
