package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler keeps the last duration of named CPU scopes, a set of counters
// and a rolling frames-per-second figure.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string

	FPS        float64
	frameCount int
	fpsTime    time.Duration
	lastFrame  time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = time.Now()
	if _, seen := p.Scopes[name]; !seen {
		p.Order = append(p.Order, name)
		p.Scopes[name] = 0
	}
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] = time.Since(start)
	}
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// Reset clears timings and counters but keeps scope order.
func (p *Profiler) Reset() {
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
	for k := range p.Counts {
		delete(p.Counts, k)
	}
}

// Tick records a frame boundary at now and refreshes FPS once a second.
func (p *Profiler) Tick(now time.Time) {
	if !p.lastFrame.IsZero() {
		p.frameCount++
		p.fpsTime += now.Sub(p.lastFrame)
		if p.fpsTime >= time.Second {
			p.FPS = float64(p.frameCount) / p.fpsTime.Seconds()
			p.frameCount = 0
			p.fpsTime = 0
		}
	}
	p.lastFrame = now
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "FPS: %.1f\n", p.FPS)
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		fmt.Fprintf(&sb, "  %-12s: %.2f ms\n", name, ms)
	}

	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-12s: %d\n", k, p.Counts[k])
	}

	return sb.String()
}
