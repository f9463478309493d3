package volrt

import (
	"github.com/gekko3d/volrt/raycast/rt/core"
)

type Logger = core.Logger

func NewDefaultLogger(prefix string, debug bool) Logger {
	return core.NewDefaultLogger(prefix, debug)
}

func NewNopLogger() Logger { return core.NewNopLogger() }
