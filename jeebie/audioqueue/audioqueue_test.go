package audioqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopPreservesOrder(t *testing.T) {
	p, c := New(4)

	assert.True(t, p.PushStereo(1, -1))
	assert.True(t, p.PushStereo(2, -2))
	assert.True(t, p.PushStereo(3, -3))

	f, ok := c.PopStereo()
	require.True(t, ok)
	assert.Equal(t, Frame{1, -1}, f)

	f, ok = c.PopStereo()
	require.True(t, ok)
	assert.Equal(t, Frame{2, -2}, f)
}

func TestPopOnEmptyQueueReturnsFalse(t *testing.T) {
	_, c := New(2)
	_, ok := c.PopStereo()
	assert.False(t, ok)
}

func TestPushOnFullQueueDropsSample(t *testing.T) {
	p, _ := New(2)

	assert.True(t, p.PushStereo(1, 1))
	assert.True(t, p.PushStereo(2, 2))
	assert.False(t, p.PushStereo(3, 3))
}

func TestLenTracksOccupancyAcrossWrap(t *testing.T) {
	p, c := New(3)

	p.PushStereo(1, 1)
	p.PushStereo(2, 2)
	assert.Equal(t, 2, p.Len())

	c.PopStereo()
	assert.Equal(t, 1, c.Len())

	p.PushStereo(3, 3)
	p.PushStereo(4, 4)
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, 3, p.CapacityFrames())
}

func TestIsEmpty(t *testing.T) {
	p, c := New(1)
	assert.True(t, c.IsEmpty())
	p.PushStereo(5, 5)
	assert.False(t, c.IsEmpty())
}
