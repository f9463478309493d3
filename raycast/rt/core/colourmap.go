package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ColourMap is a 1-D lookup table of RGBA entries sampled over [0,1].
type ColourMap struct {
	Name    string
	Entries []mgl32.Vec4
}

// Lookup samples the table at t with linear interpolation between entries,
// clamping t to [0,1]. Entry i sits at (i+0.5)/n, like a 1-D texture.
func (c *ColourMap) Lookup(t float32) mgl32.Vec4 {
	n := len(c.Entries)
	if n == 0 {
		return mgl32.Vec4{}
	}
	if n == 1 || math32.IsNaN(t) {
		return c.Entries[0]
	}
	f := t*float32(n) - 0.5
	if f <= 0 {
		return c.Entries[0]
	}
	if f >= float32(n-1) {
		return c.Entries[n-1]
	}
	i := int(f)
	w := f - float32(i)
	a, b := c.Entries[i], c.Entries[i+1]
	return a.Mul(1 - w).Add(b.Mul(w))
}

// Inverted returns a copy of c with the entry order reversed.
func (c *ColourMap) Inverted() *ColourMap {
	out := &ColourMap{Name: c.Name, Entries: make([]mgl32.Vec4, len(c.Entries))}
	for i, e := range c.Entries {
		out.Entries[len(c.Entries)-1-i] = e
	}
	return out
}

// WithLinearAlpha returns a copy of c whose alpha ramps from 0 to 1 across
// the table.
func (c *ColourMap) WithLinearAlpha() *ColourMap {
	out := &ColourMap{Name: c.Name, Entries: make([]mgl32.Vec4, len(c.Entries))}
	n := len(c.Entries)
	for i, e := range c.Entries {
		a := float32(1)
		if n > 1 {
			a = float32(i) / float32(n-1)
		}
		out.Entries[i] = mgl32.Vec4{e[0], e[1], e[2], a}
	}
	return out
}

const builtinSize = 256

func ramp(name string, f func(t float32) mgl32.Vec3) *ColourMap {
	c := &ColourMap{Name: name, Entries: make([]mgl32.Vec4, builtinSize)}
	for i := range c.Entries {
		t := float32(i) / float32(builtinSize-1)
		rgb := f(t)
		c.Entries[i] = rgb.Vec4(1)
	}
	return c
}

func clamp01(v float32) float32 {
	return mgl32.Clamp(v, 0, 1)
}

var builtins = map[string]func() *ColourMap{
	"greyscale": func() *ColourMap {
		return ramp("greyscale", func(t float32) mgl32.Vec3 { return mgl32.Vec3{t, t, t} })
	},
	"red-yellow": func() *ColourMap {
		return ramp("red-yellow", func(t float32) mgl32.Vec3 { return mgl32.Vec3{1, t, 0} })
	},
	"blue-lightblue": func() *ColourMap {
		return ramp("blue-lightblue", func(t float32) mgl32.Vec3 { return mgl32.Vec3{0, t, 1} })
	},
	"hot": func() *ColourMap {
		return ramp("hot", func(t float32) mgl32.Vec3 {
			return mgl32.Vec3{clamp01(t * 3), clamp01(t*3 - 1), clamp01(t*3 - 2)}
		})
	},
	"cool": func() *ColourMap {
		return ramp("cool", func(t float32) mgl32.Vec3 { return mgl32.Vec3{t, 1 - t, 1} })
	},
}

// BuiltinColourMaps lists the names accepted by BuiltinColourMap.
func BuiltinColourMaps() []string {
	names := make([]string, 0, len(builtins))
	for k := range builtins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func BuiltinColourMap(name string) (*ColourMap, error) {
	f, ok := builtins[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown colour map %q", name)
	}
	return f(), nil
}

// ResolveColourMap accepts either a builtin name or a path to a .cmap file.
func ResolveColourMap(nameOrPath string) (*ColourMap, error) {
	if cm, err := BuiltinColourMap(nameOrPath); err == nil {
		return cm, nil
	}
	return LoadColourMap(nameOrPath)
}

// LoadColourMap reads a .cmap file: one "r g b" triple in [0,1] per line.
func LoadColourMap(path string) (*ColourMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ReadColourMap(name, f)
}

func ReadColourMap(name string, r io.Reader) (*ColourMap, error) {
	cm := &ColourMap{Name: name}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 3 && len(fields) != 4 {
			return nil, fmt.Errorf("%s:%d: expected 3 or 4 values, got %d", name, line, len(fields))
		}
		entry := mgl32.Vec4{0, 0, 0, 1}
		for i, fs := range fields {
			v, err := strconv.ParseFloat(fs, 32)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, line, err)
			}
			entry[i] = float32(v)
		}
		cm.Entries = append(cm.Entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(cm.Entries) == 0 {
		return nil, fmt.Errorf("%s: colour map has no entries", name)
	}
	return cm, nil
}
