// ABOUTME: ScriptedEngine replays a fixed event sequence for tests
// ABOUTME: Lets the translator and turn pipeline run without a live model

package engine

import (
	"context"
	"sync"
)

// ScriptedEngine implements Engine by replaying a canned event sequence.
// Tests use it to exercise the translator and turn pipeline deterministically.
type ScriptedEngine struct {
	Events []TraceEvent
	// RunErr, when set, is returned by Run before any event is produced
	RunErr error

	mu   sync.Mutex
	last []Instruction
}

// LastInstructions returns the instruction list from the most recent Run call
func (e *ScriptedEngine) LastInstructions() []Instruction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Run replays the scripted events in order, honoring context cancellation
func (e *ScriptedEngine) Run(ctx context.Context, instructions []Instruction) (<-chan TraceEvent, error) {
	e.mu.Lock()
	e.last = instructions
	e.mu.Unlock()

	if e.RunErr != nil {
		return nil, e.RunErr
	}

	ch := make(chan TraceEvent)
	go func() {
		defer close(ch)
		for _, ev := range e.Events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
