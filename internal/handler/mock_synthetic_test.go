package handler

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/touchlink/internal/status"
	"github.com/banshee-data/touchlink/internal/timeutil"
)

func TestMock_Lifecycle(t *testing.T) {
	m := NewMock()
	assert.False(t, m.IsInitialized())
	assert.Equal(t, status.CodeNotStarted, m.StatusResult())

	m.InitializeResult = status.CodeInitFailed
	assert.Equal(t, status.CodeInitFailed, m.Initialize())
	assert.True(t, m.IsInitialized())

	m.ShutdownResult = 5
	assert.Equal(t, int32(5), m.Shutdown())
	assert.False(t, m.IsInitialized())
}

func TestMock_ObjectsAreCopies(t *testing.T) {
	m := NewMock()
	m.SetObjects([]Object{{Name: "a"}})

	objs, err := m.TrackedObjects()
	require.NoError(t, err)
	objs[0].Name = "b"

	again, _ := m.TrackedObjects()
	assert.Equal(t, "a", again[0].Name)

	m.SetObjects(nil)
	none, err := m.TrackedObjects()
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMock_ErrorsAndHook(t *testing.T) {
	m := NewMock()
	hooked := 0
	m.ObjectsHook = func() { hooked++ }
	m.SetErrors(errors.New("update"), errors.New("objects"))

	assert.EqualError(t, m.Update(), "update")
	_, err := m.TrackedObjects()
	assert.EqualError(t, err, "objects")
	assert.Equal(t, 1, hooked)

	updates, objects := m.Calls()
	assert.Equal(t, 1, updates)
	assert.Equal(t, 1, objects)
}

func TestSynthetic_MovesObjects(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	s := NewSynthetic(clock)

	assert.ErrorIs(t, s.Update(), ErrNotInitialized)
	require.Equal(t, status.CodeSuccess, s.Initialize())

	require.NoError(t, s.Update())
	before, err := s.TrackedObjects()
	require.NoError(t, err)
	require.Len(t, before, len(DefaultObjectNames))

	clock.Advance(time.Second)
	require.NoError(t, s.Update())
	after, _ := s.TrackedObjects()

	for i := range before {
		assert.Equal(t, DefaultObjectNames[i], after[i].Name)
		assert.NotEqual(t, before[i].Position, after[i].Position)
		assert.InDelta(t, 1.0, quat.Abs(after[i].Orientation), 1e-9)
		assert.InDelta(t, s.Radius, math.Hypot(after[i].Position.X, after[i].Position.Z), 1e-9)
	}

	assert.Equal(t, int32(0), s.Shutdown())
	assert.False(t, s.IsInitialized())
}
