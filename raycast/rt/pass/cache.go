package pass

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gekko3d/volrt/raycast/rt/core"
)

type cachedProgram struct {
	id      uuid.UUID
	prog    Program
	builtIn time.Duration
	uses    int
}

// ProgramCache holds one compiled program per ProgramKey. Programs are built
// on first use and kept until Release. Failed builds are not cached.
type ProgramCache struct {
	mu       sync.Mutex
	backend  Backend
	programs map[ProgramKey]*cachedProgram
	logger   core.Logger
}

func NewProgramCache(backend Backend, logger core.Logger) *ProgramCache {
	return &ProgramCache{
		backend:  backend,
		programs: make(map[ProgramKey]*cachedProgram),
		logger:   core.OrNop(logger),
	}
}

// Get returns the program for key, compiling it if needed.
func (c *ProgramCache) Get(key ProgramKey) (Program, uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cp, ok := c.programs[key]; ok {
		cp.uses++
		return cp.prog, cp.id, nil
	}

	start := time.Now()
	prog, err := c.backend.Compile(key)
	if err != nil {
		c.logger.Errorf("compile %s on %s failed: %v", key, c.backend.Name(), err)
		return nil, uuid.Nil, fmt.Errorf("pass: compile %s: %w", key, err)
	}
	cp := &cachedProgram{
		id:      uuid.New(),
		prog:    prog,
		builtIn: time.Since(start),
		uses:    1,
	}
	c.programs[key] = cp
	c.logger.Debugf("program %s compiled for %s in %v", cp.id, key, cp.builtIn)
	return cp.prog, cp.id, nil
}

func (c *ProgramCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.programs)
}

// ProgramStats describes one cached program.
type ProgramStats struct {
	ID      uuid.UUID
	Key     ProgramKey
	BuiltIn time.Duration
	Uses    int
}

func (c *ProgramCache) Stats() []ProgramStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ProgramStats, 0, len(c.programs))
	for k, cp := range c.programs {
		out = append(out, ProgramStats{ID: cp.id, Key: k, BuiltIn: cp.builtIn, Uses: cp.uses})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Release frees every cached program.
func (c *ProgramCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, cp := range c.programs {
		cp.prog.Release()
		delete(c.programs, k)
	}
}
