package watchpoints

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWatchpointHitsAndRecordsDetails(t *testing.T) {
	e := NewEngine()
	e.SetWatchpoints([]Watchpoint{
		{ID: 1, Enabled: true, Low: 0xC000, High: 0xC000, OnRead: true},
	})

	e.NoteRead(0x0100, 0xC000, 0x42)

	hit := e.TakeHit()
	require.NotNil(t, hit)
	assert.Equal(t, uint32(1), hit.ID)
	assert.Equal(t, TriggerRead, hit.Trigger)
	assert.Equal(t, uint16(0xC000), hit.Addr)
	require.NotNil(t, hit.Value)
	assert.Equal(t, uint8(0x42), *hit.Value)
	require.NotNil(t, hit.PC)
	assert.Equal(t, uint16(0x0100), *hit.PC)

	assert.Nil(t, e.TakeHit())
}

func TestValueMatchFiltersHits(t *testing.T) {
	match := uint8(0x7F)
	e := NewEngine()
	e.SetWatchpoints([]Watchpoint{
		{ID: 2, Enabled: true, Low: 0xFF40, High: 0xFF40, OnWrite: true, ValueMatch: &match},
	})

	e.NoteWrite(0x0200, 0xFF40, 0x80)
	assert.Nil(t, e.TakeHit())

	e.NoteWrite(0x0200, 0xFF40, 0x7F)
	hit := e.TakeHit()
	require.NotNil(t, hit)
	assert.Equal(t, uint32(2), hit.ID)
}

func TestSuspendedDisablesHits(t *testing.T) {
	e := NewEngine()
	e.SetWatchpoints([]Watchpoint{
		{ID: 3, Enabled: true, Low: 0x0000, High: 0xFFFF, OnRead: true, OnWrite: true},
	})
	e.SetSuspended(true)

	e.NoteRead(0x0000, 0x1234, 0x00)
	e.NoteWrite(0x0000, 0x1234, 0x00)
	assert.Nil(t, e.TakeHit())

	e.SetSuspended(false)
	e.NoteRead(0x0000, 0x1234, 0x00)
	assert.NotNil(t, e.TakeHit())
}

func TestPendingHitLatchesFirstMatchOnly(t *testing.T) {
	e := NewEngine()
	e.SetWatchpoints([]Watchpoint{
		{ID: 1, Enabled: true, Low: 0x0000, High: 0xFFFF, OnRead: true},
		{ID: 2, Enabled: true, Low: 0x0000, High: 0xFFFF, OnRead: true},
	})

	e.NoteRead(0, 0x10, 0)
	e.NoteRead(0, 0x20, 0)

	hit := e.TakeHit()
	require.NotNil(t, hit)
	assert.Equal(t, uint32(1), hit.ID)
	assert.Nil(t, e.TakeHit())
}

func TestDisabledWatchpointDoesNotEnableFastPath(t *testing.T) {
	e := NewEngine()
	e.SetWatchpoints([]Watchpoint{
		{ID: 1, Enabled: false, Low: 0x0000, High: 0xFFFF, OnRead: true},
	})

	e.NoteRead(0, 0x10, 0)
	assert.Nil(t, e.TakeHit())
}
