package core

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColourMap_Lookup(t *testing.T) {
	cm := &ColourMap{Entries: []mgl32.Vec4{{0, 0, 0, 1}, {1, 1, 1, 1}}}

	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, cm.Lookup(-1))
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, cm.Lookup(0.25))
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, cm.Lookup(0.75))
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, cm.Lookup(2))

	mid := cm.Lookup(0.5)
	assert.InDelta(t, 0.5, mid[0], 1e-6)
}

func TestReadColourMap(t *testing.T) {
	src := `# red to blue
1 0 0
0.5 0 0.5

0 0 1
`
	cm, err := ReadColourMap("rb", strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, cm.Entries, 3)
	assert.Equal(t, mgl32.Vec4{0.5, 0, 0.5, 1}, cm.Entries[1])

	_, err = ReadColourMap("bad", strings.NewReader("1 2\n"))
	assert.Error(t, err)

	_, err = ReadColourMap("empty", strings.NewReader("# nothing\n"))
	assert.Error(t, err)
}

func TestBuiltinColourMaps(t *testing.T) {
	for _, name := range BuiltinColourMaps() {
		cm, err := BuiltinColourMap(name)
		require.NoError(t, err, name)
		assert.Len(t, cm.Entries, builtinSize)
	}
	_, err := BuiltinColourMap("nope")
	assert.Error(t, err)
}

func TestColourMap_LinearAlphaAndInvert(t *testing.T) {
	grey, _ := BuiltinColourMap("greyscale")
	ramp := grey.WithLinearAlpha()
	assert.Equal(t, float32(0), ramp.Entries[0][3])
	assert.Equal(t, float32(1), ramp.Entries[len(ramp.Entries)-1][3])

	inv := grey.Inverted()
	assert.Equal(t, grey.Entries[0], inv.Entries[len(inv.Entries)-1])
}
