package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/volrt"
	"github.com/gekko3d/volrt/raycast/rt/volume"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	field, err := volume.NewPhantom("nested", 8)
	require.NoError(t, err)
	a := NewApp(nil, field, volrt.DefaultOptions(), nil)
	a.frame, err = a.Options.Frame(field)
	require.NoError(t, err)
	a.dirty = false
	return a
}

func TestApp_ViewChangesMarkDirty(t *testing.T) {
	a := newTestApp(t)
	yaw := a.Camera.Yaw
	a.Orbit(10, 0)
	assert.True(t, a.dirty)
	assert.NotEqual(t, yaw, a.Camera.Yaw)

	a.dirty = false
	a.Zoom(1)
	assert.True(t, a.dirty)
	assert.InDelta(t, 1.1, a.Camera.Zoom, 1e-6)

	for i := 0; i < 100; i++ {
		a.Zoom(-1)
	}
	assert.InDelta(t, 0.1, a.Camera.Zoom, 1e-6)
}

func TestApp_SetNumSteps(t *testing.T) {
	a := newTestApp(t)
	a.SetNumSteps(10)
	assert.Equal(t, 10, a.NumSteps())
	assert.Equal(t, 10, a.frame.StepsPerPass)
	assert.True(t, a.dirty)

	a.SetNumSteps(5000)
	assert.Equal(t, volrt.MaxNumSteps, a.NumSteps())
	assert.Equal(t, a.Options.StepsPerPass, a.frame.StepsPerPass)

	a.dirty = false
	a.SetNumSteps(volrt.MaxNumSteps)
	assert.False(t, a.dirty, "unchanged step count does not re-render")
}
