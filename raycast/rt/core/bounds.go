package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Edge tolerances of the sampling volume, in voxels. The low edge reaches
// slightly further out than the high edge.
const (
	BoundsLowTolerance  = 0.51
	BoundsHighTolerance = 0.49
)

// InBounds reports whether coord, given in voxel-index space, lies inside a
// field of the given shape. The result is >= 0 inside and < 0 outside; its
// magnitude is the distance to the nearest violated (or closest) edge.
func InBounds(coord mgl32.Vec3, shape [3]int) float32 {
	margin := float32(1e30)
	for i := 0; i < 3; i++ {
		lo := coord[i] + BoundsLowTolerance
		hi := float32(shape[i]) - BoundsHighTolerance - coord[i]
		if lo < margin {
			margin = lo
		}
		if hi < margin {
			margin = hi
		}
	}
	return margin
}

// TexToVoxel converts a normalised texture coordinate to voxel-index space,
// where voxel i is centred on texture coordinate (i+0.5)/shape.
func TexToVoxel(tex mgl32.Vec3, shape [3]int) mgl32.Vec3 {
	return mgl32.Vec3{
		tex[0]*float32(shape[0]) - 0.5,
		tex[1]*float32(shape[1]) - 0.5,
		tex[2]*float32(shape[2]) - 0.5,
	}
}

// VoxelToTex is the inverse of TexToVoxel.
func VoxelToTex(vox mgl32.Vec3, shape [3]int) mgl32.Vec3 {
	return mgl32.Vec3{
		(vox[0] + 0.5) / float32(shape[0]),
		(vox[1] + 0.5) / float32(shape[1]),
		(vox[2] + 0.5) / float32(shape[2]),
	}
}
