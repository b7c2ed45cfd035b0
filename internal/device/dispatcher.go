package device

import (
	"context"
	"fmt"
	"time"
)

// taskTimeout bounds each driver operation so one unresponsive device
// cannot stall the whole queue.
const taskTimeout = 10 * time.Second

// TaskType identifies a dispatcher operation.
type TaskType int

// Dispatcher task types.
const (
	TaskProbe TaskType = iota
	TaskSetStatus
	TaskGetStatus
	TaskDoAction
)

// Replier receives the outcome of a dispatched task. A task with a
// replier gets exactly one callback: Status on successful reads, Result
// otherwise. A nil error means success.
type Replier interface {
	Result(devID uint32, err error)
	Status(devID uint32, pairs []StatusPair)
}

// Task is a unit of work for the dispatcher.
type Task struct {
	Type  TaskType
	DevID uint32

	// DriverID targets TaskProbe.
	DriverID uint32

	// Pairs carries the payload of TaskSetStatus.
	Pairs []StatusPair

	// Action parameters for TaskDoAction.
	ActID  uint16
	Param1 uint16
	Param2 uint32

	// Reply receives the outcome; nil makes the task fire-and-forget.
	Reply Replier
}

// Dispatcher serialises all driver-touching work onto a single consumer
// goroutine, decoupling network handlers and automation from slow or
// unresponsive devices. Tasks are executed strictly in submission order.
type Dispatcher struct {
	registry *Registry
	tasks    chan Task
	logger   Logger
}

// NewDispatcher creates a dispatcher with a bounded queue.
func NewDispatcher(registry *Registry, queueSize int) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		tasks:    make(chan Task, queueSize),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Submit enqueues a task without blocking.
// Returns ErrQueueFull when the queue is at capacity.
func (d *Dispatcher) Submit(t Task) error {
	select {
	case d.tasks <- t:
		return nil
	default:
		return fmt.Errorf("dispatcher: %w", ErrQueueFull)
	}
}

// SubmitAction enqueues a fire-and-forget action. Implements ActionSink.
func (d *Dispatcher) SubmitAction(devID uint32, actID uint16, param1 uint16, param2 uint32) {
	err := d.Submit(Task{
		Type:   TaskDoAction,
		DevID:  devID,
		ActID:  actID,
		Param1: param1,
		Param2: param2,
	})
	if err != nil {
		d.logger.Warn("action dropped", "dev_id", devID, "act_id", actID, "error", err)
	}
}

// SubmitStatus enqueues a fire-and-forget status write. Implements ActionSink.
func (d *Dispatcher) SubmitStatus(devID uint32, pairs []StatusPair) {
	err := d.Submit(Task{
		Type:  TaskSetStatus,
		DevID: devID,
		Pairs: pairs,
	})
	if err != nil {
		d.logger.Warn("status write dropped", "dev_id", devID, "error", err)
	}
}

// Run consumes the task queue until the context is cancelled. It is the
// single consumer; run it in exactly one goroutine.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started", "queue_size", cap(d.tasks))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped", "pending", len(d.tasks))
			return nil
		case t := <-d.tasks:
			d.execute(ctx, t)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, t Task) {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	switch t.Type {
	case TaskProbe:
		drv, err := d.registry.Driver(t.DriverID)
		if err == nil {
			err = drv.Probe(ctx)
		}
		d.reply(t, nil, err)

	case TaskSetStatus:
		err := d.registry.SetStatus(ctx, t.DevID, t.Pairs)
		d.reply(t, nil, err)

	case TaskGetStatus:
		pairs, err := d.registry.GetStatus(ctx, t.DevID)
		d.reply(t, pairs, err)

	case TaskDoAction:
		err := d.registry.SetAction(ctx, t.DevID, t.ActID, t.Param1, t.Param2)
		d.reply(t, nil, err)

	default:
		d.logger.Error("unknown task type", "type", t.Type)
		d.reply(t, nil, ErrBadParam)
	}
}

// reply delivers exactly one response for tasks carrying a replier.
// Successful reads answer with the status payload, everything else with
// a result.
func (d *Dispatcher) reply(t Task, pairs []StatusPair, err error) {
	if err != nil {
		d.logger.Warn("task failed", "type", t.Type, "dev_id", t.DevID, "error", err)
	}
	if t.Reply == nil {
		return
	}
	if t.Type == TaskGetStatus && err == nil {
		t.Reply.Status(t.DevID, pairs)
		return
	}
	t.Reply.Result(t.DevID, err)
}
