package scene

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qubit-star/hsb-core/internal/device"
)

// StatusReader reads cached device status for condition evaluation.
// Satisfied by the device registry.
type StatusReader interface {
	CachedStatus(devID uint32) ([]device.StatusPair, error)
}

// Engine executes scenes on a fixed worker pool. Each run gets its own
// clone of the scene, so edits and deletes never affect runs already in
// flight.
type Engine struct {
	scenes *Registry
	reader StatusReader
	sink   device.ActionSink
	runs   chan *Scene

	workers int
	logger  Logger
}

// NewEngine creates a scene engine with the given worker count.
func NewEngine(scenes *Registry, reader StatusReader, sink device.ActionSink, workers int) *Engine {
	return &Engine{
		scenes:  scenes,
		reader:  reader,
		sink:    sink,
		runs:    make(chan *Scene, workers*2),
		workers: workers,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Run starts the worker pool and blocks until the context is cancelled.
// Runs already executing finish their current step and stop at the next
// wait.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("scene engine started", "workers", e.workers)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case s := <-e.runs:
					e.execute(ctx, s)
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	e.logger.Info("scene engine stopped")
	return nil
}

// Enter queues the named scene for execution. The call returns as soon
// as the run is accepted; execution is asynchronous.
func (e *Engine) Enter(name string) error {
	s, err := e.scenes.Get(name)
	if err != nil {
		return err
	}

	select {
	case e.runs <- s:
		return nil
	default:
		return fmt.Errorf("scene %q: %w", name, ErrBusy)
	}
}

// execute runs one scene clone to completion.
//
// Step offsets are measured on a single cumulative clock: each step
// waits for its offset to be reached, runs (or skips) its acts, and the
// clock carries on. A step whose condition is false skips its acts but
// never shortens the waits of the steps after it.
func (e *Engine) execute(ctx context.Context, s *Scene) {
	runID := uuid.NewString()
	e.logger.Info("scene run started", "scene", s.Name, "run_id", runID)

	elapsed := uint8(0)
	for i := range s.Actions {
		action := &s.Actions[i]

		if action.Delay > elapsed {
			wait := time.Duration(action.Delay-elapsed) * time.Second
			select {
			case <-ctx.Done():
				e.logger.Info("scene run aborted", "scene", s.Name, "run_id", runID)
				return
			case <-time.After(wait):
			}
			elapsed = action.Delay
		}

		if action.HasCond && !e.conditionMet(&action.Condition) {
			e.logger.Debug("scene step skipped", "scene", s.Name, "run_id", runID, "step", i)
			continue
		}

		e.applyActs(action.Acts)
	}

	e.logger.Info("scene run finished", "scene", s.Name, "run_id", runID)
}

// conditionMet evaluates a condition against the cached status of its
// device. Unknown devices or status ids fail closed.
func (e *Engine) conditionMet(c *Condition) bool {
	pairs, err := e.reader.CachedStatus(c.DevID)
	if err != nil {
		return false
	}
	for _, p := range pairs {
		if p.ID == c.StatusID {
			return c.Op.Eval(p.Value, c.Value)
		}
	}
	return false
}

// applyActs submits a step's device writes. Status-mode acts aimed at
// the same device coalesce into one multi-pair write; action-mode acts
// go out individually.
func (e *Engine) applyActs(acts []Act) {
	type group struct {
		devID uint32
		pairs []device.StatusPair
	}
	var groups []group

	for _, act := range acts {
		if act.Flag&ActFlagUseAction != 0 {
			e.sink.SubmitAction(act.DevID, act.ID, act.Param1, act.Param2)
			continue
		}

		merged := false
		for i := range groups {
			if groups[i].devID == act.DevID {
				groups[i].pairs = append(groups[i].pairs, device.StatusPair{ID: act.ID, Value: act.Param1})
				merged = true
				break
			}
		}
		if !merged {
			groups = append(groups, group{
				devID: act.DevID,
				pairs: []device.StatusPair{{ID: act.ID, Value: act.Param1}},
			})
		}
	}

	for _, g := range groups {
		e.sink.SubmitStatus(g.devID, g.pairs)
	}
}
