package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxClipPlanes is the largest number of clip planes a program can be
// specialised for.
const MaxClipPlanes = 10

type ClipMode uint32

const (
	ClipIntersection ClipMode = iota
	ClipUnion
	ClipComplement
)

func (m ClipMode) String() string {
	switch m {
	case ClipIntersection:
		return "intersection"
	case ClipUnion:
		return "union"
	case ClipComplement:
		return "complement"
	}
	return fmt.Sprintf("ClipMode(%d)", uint32(m))
}

func ParseClipMode(s string) (ClipMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "intersection":
		return ClipIntersection, nil
	case "union":
		return ClipUnion, nil
	case "complement":
		return ClipComplement, nil
	}
	return 0, fmt.Errorf("unknown clip mode %q", s)
}

func (m ClipMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *ClipMode) UnmarshalText(b []byte) error {
	v, err := ParseClipMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ClipPlane is a plane equation Ax + By + Cz + D, in the same space as the
// sample positions it is tested against.
type ClipPlane mgl32.Vec4

// PlaneEquation returns the plane through origin with the given normal.
func PlaneEquation(origin, normal mgl32.Vec3) ClipPlane {
	n := normal.Normalize()
	return ClipPlane{n[0], n[1], n[2], -n.Dot(origin)}
}

// Distance is the signed distance of p from the plane (scaled by the normal
// length).
func (c ClipPlane) Distance(p mgl32.Vec3) float32 {
	return c[0]*p[0] + c[1]*p[1] + c[2]*p[2] + c[3]
}

// Active reports whether p lies on the non-negative side of the plane.
func (c ClipPlane) Active(p mgl32.Vec3) bool {
	return c.Distance(p) >= 0
}

// Transform maps the plane through the point transform m, so that
// Transform(m).Distance(m*p) has the sign of Distance(p).
func (c ClipPlane) Transform(m mgl32.Mat4) ClipPlane {
	// Planes transform by the inverse transpose of the point transform.
	v := m.Inv().Transpose().Mul4x1(mgl32.Vec4(c))
	return ClipPlane(v)
}

// ClipPlaneFromAngles builds a plane from the interactive parametrisation:
// position is a percentage along the normal through the centre of the box
// (50 is the centre), azimuth rotates about the Z axis and inclination
// about the X axis, both in degrees. The plane faces the -Z axis before
// rotation.
func ClipPlaneFromAngles(position, azimuth, inclination float32, boxMin, boxMax mgl32.Vec3) ClipPlane {
	pos := position / 100
	az := mgl32.DegToRad(azimuth)
	inc := mgl32.DegToRad(inclination)

	size := boxMax.Sub(boxMin)
	centre := boxMin.Add(size.Mul(0.5))

	rot := mgl32.HomogRotate3DZ(az).Mul4(mgl32.HomogRotate3DX(inc))
	normal := rot.Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3().Normalize()

	longest := float32(math.Max(float64(size[0]), math.Max(float64(size[1]), float64(size[2]))))
	origin := centre.Add(normal.Mul((pos - 0.5) * longest))

	return PlaneEquation(origin, normal)
}

// ClipEvaluator combines a fixed list of planes under one mode.
type ClipEvaluator struct {
	Planes []ClipPlane
	Mode   ClipMode
}

// Reject reports whether the sample at p must be skipped.
//
//	intersection: active for every plane
//	union:        active for at least one plane
//	complement:   active for no plane
//
// With no planes nothing is rejected.
func (e ClipEvaluator) Reject(p mgl32.Vec3) bool {
	n := len(e.Planes)
	if n == 0 {
		return false
	}
	active := 0
	for _, pl := range e.Planes {
		if pl.Active(p) {
			active++
		}
	}
	switch e.Mode {
	case ClipUnion:
		return active > 0
	case ClipComplement:
		return active == 0
	default:
		return active == n
	}
}
