package volrt

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ScopeStats accumulates the timings of one named stage across frames.
type ScopeStats struct {
	Name  string
	Runs  int
	Last  time.Duration
	Max   time.Duration
	Total time.Duration
}

func (s ScopeStats) Mean() time.Duration {
	if s.Runs == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Runs)
}

// Profiler collects per-stage timings ("prepare", "march", "pass N",
// "post") and frame counters. It is safe for concurrent use; overlapping
// frames that begin the same scope overwrite each other's start time.
type Profiler struct {
	mu     sync.Mutex
	scopes map[string]*ScopeStats
	open   map[string]time.Time
	order  []string
	counts map[string]int
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes: make(map[string]*ScopeStats),
		open:   make(map[string]time.Time),
		counts: make(map[string]int),
	}
}

// stats returns the entry for name, creating it in first-seen order.
// Callers hold p.mu.
func (p *Profiler) stats(name string) *ScopeStats {
	s, ok := p.scopes[name]
	if !ok {
		s = &ScopeStats{Name: name}
		p.scopes[name] = s
		p.order = append(p.order, name)
	}
	return s
}

func (p *Profiler) BeginScope(name string) {
	p.mu.Lock()
	p.stats(name)
	p.open[name] = time.Now()
	p.mu.Unlock()
}

// EndScope closes a scope opened by BeginScope. Unmatched calls are ignored.
func (p *Profiler) EndScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start, ok := p.open[name]
	if !ok {
		return
	}
	delete(p.open, name)
	p.add(name, time.Since(start))
}

// Record adds a duration measured elsewhere, e.g. by the pass coordinator.
func (p *Profiler) Record(name string, d time.Duration) {
	p.mu.Lock()
	p.add(name, d)
	p.mu.Unlock()
}

func (p *Profiler) add(name string, d time.Duration) {
	s := p.stats(name)
	s.Runs++
	s.Last = d
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
}

func (p *Profiler) Scope(name string) ScopeStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.scopes[name]; ok {
		return *s
	}
	return ScopeStats{Name: name}
}

// Snapshot returns every scope in first-seen order.
func (p *Profiler) Snapshot() []ScopeStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ScopeStats, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, *p.scopes[name])
	}
	return out
}

func (p *Profiler) SetCount(name string, count int) {
	p.mu.Lock()
	p.counts[name] = count
	p.mu.Unlock()
}

func (p *Profiler) Count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[name]
}

// Reset zeroes the timings but keeps the scope order and counters.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.scopes {
		*s = ScopeStats{Name: s.Name}
	}
	clear(p.open)
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }

func (p *Profiler) GetStatsString() string {
	scopes := p.Snapshot()

	var sb strings.Builder
	sb.WriteString("Timings:                 last      mean       max\n")
	for _, s := range scopes {
		fmt.Fprintf(&sb, "  %-15s: %6.2f ms %6.2f ms %6.2f ms\n", s.Name, ms(s.Last), ms(s.Mean()), ms(s.Max))
	}

	p.mu.Lock()
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteString("\nStats:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-15s: %d\n", k, p.counts[k])
	}
	p.mu.Unlock()
	return sb.String()
}
