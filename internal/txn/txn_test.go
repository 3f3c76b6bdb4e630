package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueable(t *testing.T) {
	assert.True(t, Queueable("SET"))
	assert.True(t, Queueable("GET"))
	assert.True(t, Queueable("INCR"))
	assert.False(t, Queueable("XADD"))
	assert.False(t, Queueable("MULTI"))
}

func TestMultiRejectsNesting(t *testing.T) {
	var b Buffer
	assert.True(t, b.Multi())
	assert.False(t, b.Multi())
}

func TestEnqueueAndExecDrainsInOrder(t *testing.T) {
	var b Buffer
	require.True(t, b.Multi())

	b.Enqueue("SET", []string{"a", "1"})
	b.Enqueue("INCR", []string{"a"})

	ops, ok := b.Exec()
	require.True(t, ok)
	require.Len(t, ops, 2)
	assert.Equal(t, DeferredOp{Name: "SET", Args: []string{"a", "1"}}, ops[0])
	assert.Equal(t, DeferredOp{Name: "INCR", Args: []string{"a"}}, ops[1])

	assert.False(t, b.InMulti)
	assert.Nil(t, b.Queue)
}

func TestExecWithoutMultiFails(t *testing.T) {
	var b Buffer
	ops, ok := b.Exec()
	assert.False(t, ok)
	assert.Nil(t, ops)
}

func TestDiscardClearsQueue(t *testing.T) {
	var b Buffer
	require.True(t, b.Multi())
	b.Enqueue("SET", []string{"a", "1"})

	assert.True(t, b.Discard())
	assert.False(t, b.InMulti)
	assert.Nil(t, b.Queue)
}

func TestDiscardWithoutMultiFails(t *testing.T) {
	var b Buffer
	assert.False(t, b.Discard())
}

func TestMultiResetsQueueOnRestart(t *testing.T) {
	var b Buffer
	require.True(t, b.Multi())
	b.Enqueue("SET", []string{"a", "1"})
	_, _ = b.Exec()

	require.True(t, b.Multi())
	assert.Empty(t, b.Queue)
}
