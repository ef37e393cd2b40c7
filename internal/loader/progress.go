package loader

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// TickInterval is how often an unfinished bar creeps forward.
const TickInterval = 200 * time.Millisecond

// Progress ceilings.
const (
	maxStep    = 10.0
	creepLimit = 90.0
	complete   = 100.0
)

// BarState is the lifecycle of a progress bar.
type BarState int

const (
	BarRunning BarState = iota
	BarFinished
	BarRemoved
)

// Progress is an indeterminate progress bar: it creeps toward 90% until the
// download finishes (100%) or fails (removed).
type Progress struct {
	mu     sync.Mutex
	value  float64
	state  BarState
	step   func() float64
	notify func(float64, BarState)
}

// NewProgress returns a bar at 0%. notify, if set, is called after every
// change.
func NewProgress(notify func(value float64, state BarState)) *Progress {
	return &Progress{
		step:   func() float64 { return rand.Float64() * maxStep },
		notify: notify,
	}
}

// Run advances the bar every TickInterval until it stops running or ctx is
// done.
func (p *Progress) Run(ctx context.Context) {
	t := time.NewTicker(TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !p.Tick() {
				return
			}
		}
	}
}

// Tick advances the bar once and reports whether it is still running.
func (p *Progress) Tick() bool {
	p.mu.Lock()
	if p.state != BarRunning {
		p.mu.Unlock()
		return false
	}
	p.value += p.step()
	if p.value > creepLimit {
		p.value = creepLimit
	}
	v := p.value
	p.mu.Unlock()
	p.changed(v, BarRunning)
	return true
}

// Finish jumps to 100%.
func (p *Progress) Finish() {
	p.set(complete, BarFinished)
}

// Fail removes the bar.
func (p *Progress) Fail() {
	p.mu.Lock()
	v := p.value
	p.mu.Unlock()
	p.set(v, BarRemoved)
}

func (p *Progress) set(v float64, s BarState) {
	p.mu.Lock()
	if p.state != BarRunning {
		p.mu.Unlock()
		return
	}
	p.value, p.state = v, s
	p.mu.Unlock()
	p.changed(v, s)
}

func (p *Progress) changed(v float64, s BarState) {
	if p.notify != nil {
		p.notify(v, s)
	}
}

// Value is the current percentage.
func (p *Progress) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// State is the current lifecycle state.
func (p *Progress) State() BarState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
