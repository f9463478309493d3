package pass

import (
	"github.com/gekko3d/volrt/raycast/rt/march"
)

type ProgramKey = march.ProgramKey

// Backend builds specialised programs and the render targets they draw into.
type Backend interface {
	Name() string
	// Compile builds the program for key. It is called at most once per key
	// unless it fails.
	Compile(key ProgramKey) (Program, error)
	NewTargets(width, height int) (Targets, error)
}

// Program is a compiled, specialised ray-march program.
type Program interface {
	Key() ProgramKey
	// Bind attaches one frame's read-only inputs.
	Bind(in march.Inputs) (BoundProgram, error)
	Release()
}

type BoundProgram interface {
	// RunPass reads target src and writes target dst. It returns once every
	// pixel of dst has been written.
	RunPass(pass march.PassParams, t Targets, src, dst int) error
	Release()
}

// Targets is a backend-owned pair of colour/depth images.
type Targets interface {
	Size() (width, height int)
	// Clear resets target i to the pass 0 starting state.
	Clear(i int) error
	// Read returns the contents of target i.
	Read(i int) (*Image, error)
	Release()
}
