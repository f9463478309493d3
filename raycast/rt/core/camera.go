package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is an orbiting orthographic camera around Target. Z is up.
type CameraState struct {
	Target      mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Zoom        float32
	Radius      float32 // world-space half extent framed at Zoom 1
	Sensitivity float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Target:      mgl32.Vec3{0, 0, 0},
		Yaw:         0,
		Pitch:       0,
		Zoom:        1,
		Radius:      1,
		Sensitivity: 0.003,
	}
}

// Frame points the camera at the centre of box and sizes it to fit.
func (c *CameraState) Frame(box [2]mgl32.Vec3) {
	c.Target = box[0].Add(box[1]).Mul(0.5)
	c.Radius = box[1].Sub(box[0]).Len() * 0.5
	if c.Radius <= 0 {
		c.Radius = 1
	}
}

// SetAngles sets yaw and pitch from degrees. Pitch is kept away from the
// poles so the view basis stays defined.
func (c *CameraState) SetAngles(azimuthDeg, elevationDeg float32) {
	c.Yaw = mgl32.DegToRad(azimuthDeg)
	c.Pitch = mgl32.DegToRad(elevationDeg)
	c.clampPitch()
}

func (c *CameraState) clampPitch() {
	limit := float32(math.Pi/2 - 1e-3)
	c.Pitch = mgl32.Clamp(c.Pitch, -limit, limit)
}

// Orbit applies a mouse delta in pixels.
func (c *CameraState) Orbit(dx, dy float32) {
	c.Yaw += dx * c.Sensitivity
	c.Pitch -= dy * c.Sensitivity
	c.clampPitch()
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	// Z-up: Forward in XY plane, Z for pitch
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
	}
}

func (c *CameraState) Position() mgl32.Vec3 {
	return c.Target.Sub(c.GetForward().Mul(2 * c.Radius))
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position()
	up := mgl32.Vec3{0, 0, 1} // Z-up
	return mgl32.LookAtV(eye, c.Target, up)
}

func (c *CameraState) GetProjectionMatrix(width, height int) mgl32.Mat4 {
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	half := c.Radius / zoom
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	hw, hh := half, half
	if aspect >= 1 {
		hw *= aspect
	} else {
		hh /= aspect
	}
	return mgl32.Ortho(-hw, hw, -hh, hh, c.Radius*0.5, c.Radius*3.5)
}

// ExtractFrustum extracts the 6 planes of the frustum from a
// model-view-projection matrix, in the model's space.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4
	for i := 0; i < 3; i++ {
		for k := 0; k < 4; k++ {
			planes[2*i][k] = vp.At(3, k) + vp.At(i, k)
			planes[2*i+1][k] = vp.At(3, k) - vp.At(i, k)
		}
	}

	// Normalize planes
	for i := 0; i < 6; i++ {
		length := float32(math.Sqrt(float64(planes[i][0]*planes[i][0] + planes[i][1]*planes[i][1] + planes[i][2]*planes[i][2])))
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}

	return planes
}

// AABBInFrustum reports whether any part of the box lies inside all planes.
// Plane normals point inside.
func AABBInFrustum(aabb [2]mgl32.Vec3, planes [6]mgl32.Vec4) bool {
	for i := 0; i < 6; i++ {
		plane := planes[i]
		// Most-inside corner; if it is outside, the whole box is.
		var p mgl32.Vec3
		for a := 0; a < 3; a++ {
			if plane[a] > 0 {
				p[a] = aabb[1][a]
			} else {
				p[a] = aabb[0][a]
			}
		}
		dist := plane[0]*p[0] + plane[1]*p[1] + plane[2]*p[2] + plane[3]
		if dist < 0 {
			return false
		}
	}
	return true
}

// RaySettings is everything the marcher needs from the camera, expressed in
// the field's normalised texture space.
type RaySettings struct {
	Width, Height int

	TexToClip mgl32.Mat4
	ClipToTex mgl32.Mat4

	// Step is one ray step in texture space. DitherDir spans the maximum
	// start offset.
	Step      mgl32.Vec3
	DitherDir mgl32.Vec3
}

// NewRaySettings derives per-frame ray settings. texToWorld maps texture
// coordinates to world space. numSteps steps span the unit cube diagonal.
// dithering is the largest per-pixel start offset as a fraction of that
// diagonal.
func (c *CameraState) NewRaySettings(texToWorld mgl32.Mat4, width, height, numSteps int, dithering float32) RaySettings {
	vp := c.GetProjectionMatrix(width, height).Mul4(c.GetViewMatrix())
	t2c := vp.Mul4(texToWorld)
	rs := RaySettings{
		Width:     width,
		Height:    height,
		TexToClip: t2c,
		ClipToTex: t2c.Inv(),
	}
	near := mgl32.TransformCoordinate(mgl32.Vec3{0, 0, -1}, rs.ClipToTex)
	far := mgl32.TransformCoordinate(mgl32.Vec3{0, 0, 1}, rs.ClipToTex)
	dir := far.Sub(near)
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	if numSteps < 1 {
		numSteps = 1
	}
	diag := dir.Mul(float32(math.Sqrt(3)))
	rs.Step = diag.Mul(1 / float32(numSteps))
	rs.DitherDir = diag.Mul(dithering)
	return rs
}

// pixelNDC returns the normalised device coordinates of the centre of pixel
// (px, py), with y growing downwards on screen.
func (r *RaySettings) pixelNDC(px, py int) (float32, float32) {
	x := (float32(px)+0.5)/float32(r.Width)*2 - 1
	y := 1 - (float32(py)+0.5)/float32(r.Height)*2
	return x, y
}

// Entry returns the point where the view ray through pixel (px, py) enters
// the unit texture cube. ok is false when the ray misses the cube.
func (r *RaySettings) Entry(px, py int) (mgl32.Vec3, bool) {
	x, y := r.pixelNDC(px, py)
	o := mgl32.TransformCoordinate(mgl32.Vec3{x, y, -1}, r.ClipToTex)
	e := mgl32.TransformCoordinate(mgl32.Vec3{x, y, 1}, r.ClipToTex)
	d := e.Sub(o)

	tmin, tmax := float32(0), float32(1)
	for a := 0; a < 3; a++ {
		if d[a] == 0 {
			if o[a] < 0 || o[a] > 1 {
				return mgl32.Vec3{}, false
			}
			continue
		}
		t0 := (0 - o[a]) / d[a]
		t1 := (1 - o[a]) / d[a]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tmin {
			tmin = t0
		}
		if t1 < tmax {
			tmax = t1
		}
		if tmin > tmax {
			return mgl32.Vec3{}, false
		}
	}
	return o.Add(d.Mul(tmin)), true
}

// DepthRows returns the third and fourth rows of TexToClip; the window
// depth of a texture position p is (row2.p / row3.p) * 0.5 + 0.5.
func (r *RaySettings) DepthRows() (mgl32.Vec4, mgl32.Vec4) {
	return r.TexToClip.Row(2), r.TexToClip.Row(3)
}

// ProjectDepth maps texture position p to window depth in [0,1] using the
// rows returned by DepthRows.
func ProjectDepth(row2, row3 mgl32.Vec4, p mgl32.Vec3) float32 {
	p4 := p.Vec4(1)
	w := row3.Dot(p4)
	if w == 0 {
		w = 1
	}
	return row2.Dot(p4)/w*0.5 + 0.5
}
