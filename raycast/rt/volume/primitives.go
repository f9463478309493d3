package volume

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/volrt/raycast/rt/core"
)

// Sphere writes value into every voxel whose centre lies inside the sphere.
// Centre and radius are in voxel units.
func Sphere(f *ScalarField, center mgl32.Vec3, radius float32, value float32) {
	r2 := radius * radius
	minBound, maxBound := voxelRange(f, center.Sub(mgl32.Vec3{radius, radius, radius}), center.Add(mgl32.Vec3{radius, radius, radius}))

	for z := minBound[2]; z <= maxBound[2]; z++ {
		for y := minBound[1]; y <= maxBound[1]; y++ {
			for x := minBound[0]; x <= maxBound[0]; x++ {
				dx := float32(x) - center.X()
				dy := float32(y) - center.Y()
				dz := float32(z) - center.Z()
				if dx*dx+dy*dy+dz*dz <= r2 {
					f.Set(x, y, z, value)
				}
			}
		}
	}
}

// Cube writes value into the voxels with centres inside [minB, maxB].
func Cube(f *ScalarField, minB, maxB mgl32.Vec3, value float32) {
	minI, maxI := voxelRange(f, minB, maxB)
	for z := minI[2]; z <= maxI[2]; z++ {
		for y := minI[1]; y <= maxI[1]; y++ {
			for x := minI[0]; x <= maxI[0]; x++ {
				p := mgl32.Vec3{float32(x), float32(y), float32(z)}
				if p.X() < minB.X() || p.Y() < minB.Y() || p.Z() < minB.Z() ||
					p.X() > maxB.X() || p.Y() > maxB.Y() || p.Z() > maxB.Z() {
					continue
				}
				f.Set(x, y, z, value)
			}
		}
	}
}

// Cone fills a cone; base is the centre of the base circle, tip is the apex.
func Cone(f *ScalarField, base, tip mgl32.Vec3, radius float32, value float32) {
	heightVec := tip.Sub(base)
	height := heightVec.Len()
	if height < 1e-5 {
		return
	}
	axis := heightVec.Normalize()

	maxDim := float32(math.Max(float64(radius), float64(height)))
	center := base.Add(tip).Mul(0.5)
	ext := mgl32.Vec3{maxDim, maxDim, maxDim}
	minB, maxB := voxelRange(f, center.Sub(ext), center.Add(ext))

	for z := minB[2]; z <= maxB[2]; z++ {
		for y := minB[1]; y <= maxB[1]; y++ {
			for x := minB[0]; x <= maxB[0]; x++ {
				p := mgl32.Vec3{float32(x), float32(y), float32(z)}
				v := p.Sub(base)
				distOnAxis := v.Dot(axis)
				if distOnAxis < 0 || distOnAxis > height {
					continue
				}

				radiusAtDist := radius * (1.0 - distOnAxis/height)
				distToAxis2 := v.LenSqr() - distOnAxis*distOnAxis
				if distToAxis2 <= radiusAtDist*radiusAtDist {
					f.Set(x, y, z, value)
				}
			}
		}
	}
}

// RadialFalloff adds a smooth blob, peak at center, reaching zero at radius.
func RadialFalloff(f *ScalarField, center mgl32.Vec3, radius float32, peak float32) {
	ext := mgl32.Vec3{radius, radius, radius}
	minB, maxB := voxelRange(f, center.Sub(ext), center.Add(ext))
	for z := minB[2]; z <= maxB[2]; z++ {
		for y := minB[1]; y <= maxB[1]; y++ {
			for x := minB[0]; x <= maxB[0]; x++ {
				d := mgl32.Vec3{float32(x), float32(y), float32(z)}.Sub(center).Len() / radius
				if d >= 1 {
					continue
				}
				i := f.Index(x, y, z)
				f.Data[i] += peak * (1 - d*d)
			}
		}
	}
}

// Gradient fills the field with a linear ramp from 0 to 1 along axis.
func Gradient(f *ScalarField, axis int) {
	n := f.Shape[axis]
	for z := 0; z < f.Shape[2]; z++ {
		for y := 0; y < f.Shape[1]; y++ {
			for x := 0; x < f.Shape[0]; x++ {
				c := [3]int{x, y, z}[axis]
				v := float32(0)
				if n > 1 {
					v = float32(c) / float32(n-1)
				}
				f.Data[f.Index(x, y, z)] = v
			}
		}
	}
}

func voxelRange(f *ScalarField, lo, hi mgl32.Vec3) ([3]int, [3]int) {
	var minI, maxI [3]int
	for a := 0; a < 3; a++ {
		minI[a] = clampIndex(int(math.Floor(float64(lo[a]))), f.Shape[a])
		maxI[a] = clampIndex(int(math.Ceil(float64(hi[a]))), f.Shape[a])
	}
	return minI, maxI
}

var phantoms = map[string]func(n int) *ScalarField{
	"sphere": func(n int) *ScalarField {
		f := NewScalarField([3]int{n, n, n})
		c := float32(n-1) / 2
		Sphere(f, mgl32.Vec3{c, c, c}, float32(n)*0.4, 1)
		return f
	},
	"nested": func(n int) *ScalarField {
		f := NewScalarField([3]int{n, n, n})
		c := float32(n-1) / 2
		Cube(f, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{float32(n - 2), float32(n - 2), float32(n - 2)}, 0.2)
		Sphere(f, mgl32.Vec3{c, c, c}, float32(n)*0.35, 0.6)
		Sphere(f, mgl32.Vec3{c, c, c}, float32(n)*0.15, 1)
		return f
	},
	"blobs": func(n int) *ScalarField {
		f := NewScalarField([3]int{n, n, n})
		s := float32(n)
		RadialFalloff(f, mgl32.Vec3{s * 0.3, s * 0.35, s * 0.5}, s*0.25, 1)
		RadialFalloff(f, mgl32.Vec3{s * 0.65, s * 0.6, s * 0.45}, s*0.3, 0.8)
		Cone(f, mgl32.Vec3{s * 0.5, s * 0.5, s * 0.1}, mgl32.Vec3{s * 0.5, s * 0.5, s * 0.9}, s*0.15, 0.5)
		return f
	},
	"gradient": func(n int) *ScalarField {
		f := NewScalarField([3]int{n, n, n})
		Gradient(f, 2)
		return f
	},
}

// Phantoms lists the names accepted by NewPhantom.
func Phantoms() []string {
	names := make([]string, 0, len(phantoms))
	for k := range phantoms {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NewPhantom builds a synthetic n³ test volume with unit voxels centred on the
// origin.
func NewPhantom(name string, n int) (*ScalarField, error) {
	build, ok := phantoms[name]
	if !ok {
		return nil, fmt.Errorf("unknown phantom %q", name)
	}
	if n < 2 {
		return nil, fmt.Errorf("phantom size %d too small", n)
	}
	f := build(n)
	f.Name = name
	h := float32(n-1) / 2
	t := core.NewTransform()
	t.Position = mgl32.Vec3{-h, -h, -h}
	f.SetTransform(t)
	return f, nil
}
