package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPushLPushOrdering(t *testing.T) {
	s := newTestStore(t)
	n, err := s.RPush("l", []byte("a"), []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.LPush("l", []byte("x"), []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	vals, err := s.LRange("l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("y"), []byte("x"), []byte("a"), []byte("b")}, vals)
}

func TestLRangeNegativeIndexNormalization(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RPush("l", []byte("a"), []byte("b"), []byte("c"), []byte("d"))
	require.NoError(t, err)

	vals, err := s.LRange("l", -2, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("c"), []byte("d")}, vals)

	vals, err = s.LRange("l", -100, 100)
	require.NoError(t, err)
	assert.Len(t, vals, 4)

	vals, err = s.LRange("l", 3, 1)
	require.NoError(t, err)
	assert.Nil(t, vals)
}

func TestLLenMissingKeyIsZero(t *testing.T) {
	s := newTestStore(t)
	n, err := s.LLen("nope")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLPopCount(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RPush("l", []byte("a"), []byte("b"), []byte("c"))
	require.NoError(t, err)

	popped, err := s.LPop("l", 2)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, popped)

	n, err := s.LLen("l")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBLPopReturnsImmediatelyWhenPresent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RPush("l", []byte("a"))
	require.NoError(t, err)

	v, ok := s.BLPop(context.Background(), "l", time.Time{})
	assert.True(t, ok)
	assert.Equal(t, "a", string(v))
}

func TestBLPopBlocksUntilPush(t *testing.T) {
	s := newTestStore(t)
	done := make(chan []byte, 1)
	go func() {
		v, ok := s.BLPop(context.Background(), "q", time.Time{})
		if ok {
			done <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := s.RPush("q", []byte("late"))
	require.NoError(t, err)

	select {
	case v := <-done:
		assert.Equal(t, "late", string(v))
	case <-time.After(time.Second):
		t.Fatal("BLPop did not unblock after push")
	}
}

func TestBLPopDeadlineExpires(t *testing.T) {
	s := newTestStore(t)
	_, ok := s.BLPop(context.Background(), "empty", time.Now().Add(20*time.Millisecond))
	assert.False(t, ok)
}
