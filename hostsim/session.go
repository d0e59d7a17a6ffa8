package hostsim

import (
	"context"
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

// TaskFunc is the body of one cooperative simulation task. The task runs in
// its own goroutine but executes strictly one-at-a-time with every other
// task, interleaving only at Wait calls on the Host. A task must return once
// a Wait call reports false.
type TaskFunc func(h Host) error

// Config holds session parameters.
type Config struct {
	// ClockFreq is the base clock driving WaitClockEdge.
	ClockFreq sim.Freq
}

// DefaultConfig returns the 100 MHz base clock of the unified system.
func DefaultConfig() Config {
	return Config{ClockFreq: 100 * sim.MHz}
}

type task struct {
	name   string
	fn     TaskFunc
	resume chan bool
	main   bool
	err    error
}

// Session owns the virtual clock, the signal bank, and all spawned tasks.
// Scheduling runs on an Akita serial event engine: one event per clock edge
// plus one event per pending timed wait. The session, not process exit,
// terminates background tasks: when the main task returns, the session
// context is cancelled and every parked task is woken with false.
type Session struct {
	cfg    Config
	engine *sim.SerialEngine
	bank   *signalBank

	tasks       []*task
	edgeWaiters []*task
	parked      chan struct{}

	cycle    uint64
	closing  bool
	mainDone bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates an idle session. Tasks registered with Spawn start when
// Run is called.
func NewSession(cfg Config) *Session {
	if cfg.ClockFreq <= 0 {
		cfg.ClockFreq = DefaultConfig().ClockFreq
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:    cfg,
		engine: sim.NewSerialEngine(),
		bank:   newSignalBank(),
		parked: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is cancelled at session teardown. Perpetual tasks such as the
// memory controller loop watch it in addition to their Wait results.
func (s *Session) Context() context.Context { return s.ctx }

// Spawn registers a background task. Must be called before Run.
func (s *Session) Spawn(name string, fn TaskFunc) {
	s.tasks = append(s.tasks, &task{name: name, fn: fn, resume: make(chan bool)})
}

// Run starts every spawned task plus the given main task, then drives the
// clock until the main task returns. Background tasks are wound down before
// Run returns; their errors, if any, are joined with the main task's.
func (s *Session) Run(main TaskFunc) error {
	mt := &task{name: "main", fn: main, resume: make(chan bool), main: true}
	s.tasks = append(s.tasks, mt)

	// Tasks start in registration order, each running until its first
	// wait. This matches the testbench convention of starting the memory
	// model before any stimulus.
	for _, t := range s.tasks {
		go s.runTask(t)
		<-s.parked
	}

	s.scheduleEdge()
	err := s.engine.Run()

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for _, t := range s.tasks {
		if t.err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", t.name, t.err))
		}
	}
	return errors.Join(errs...)
}

func (s *Session) runTask(t *task) {
	t.err = t.fn(&taskHost{s: s, t: t})
	if t.main {
		s.mainDone = true
	}
	s.parked <- struct{}{}
}

// Handle processes clock-edge and timer events on the engine goroutine.
func (s *Session) Handle(e sim.Event) error {
	switch evt := e.(type) {
	case *clockEdgeEvent:
		s.handleEdge()
	case *timerEvent:
		s.wake(evt.t)
		s.bank.commit()
		s.afterDelta()
	}
	return nil
}

func (s *Session) handleEdge() {
	s.cycle++

	// Snapshot the waiter list first: tasks woken now re-register for the
	// next edge. Wakes are FIFO, and committed signal values do not change
	// until every woken task has parked again.
	waiters := s.edgeWaiters
	s.edgeWaiters = nil
	for _, t := range waiters {
		s.wake(t)
	}
	s.bank.commit()

	s.afterDelta()
	if !s.closing {
		s.scheduleEdge()
	}
}

// wake resumes one task and blocks until it parks again or exits.
func (s *Session) wake(t *task) {
	t.resume <- !s.closing
	<-s.parked
}

func (s *Session) afterDelta() {
	if s.mainDone && !s.closing {
		s.shutdown()
	}
}

// shutdown cancels the session context and winds down every parked task.
// Tasks parked on timers are released as their events drain off the engine.
func (s *Session) shutdown() {
	s.closing = true
	s.cancel()
	for len(s.edgeWaiters) > 0 {
		waiters := s.edgeWaiters
		s.edgeWaiters = nil
		for _, t := range waiters {
			s.wake(t)
		}
	}
	s.bank.commit()
}

func (s *Session) scheduleEdge() {
	t := s.engine.CurrentTime() + s.cfg.ClockFreq.Period()
	s.engine.Schedule(&clockEdgeEvent{sim.NewEventBase(t, s)})
}

// clockEdgeEvent marks one rising edge of the base clock. Edges are
// secondary events so that timed waits expiring at the same instant are
// serviced first, keeping bus-latency completions ordered before the edge
// that samples them.
type clockEdgeEvent struct {
	*sim.EventBase
}

func (e *clockEdgeEvent) IsSecondary() bool { return true }

// timerEvent resumes one task from a fixed-duration wait.
type timerEvent struct {
	*sim.EventBase
	t *task
}

// taskHost is the per-task view of the session implementing Host.
type taskHost struct {
	s *Session
	t *task
}

func (h *taskHost) WaitClockEdge() bool {
	s := h.s
	if s.closing {
		return false
	}
	s.edgeWaiters = append(s.edgeWaiters, h.t)
	s.parked <- struct{}{}
	return <-h.t.resume
}

func (h *taskHost) WaitDuration(d sim.VTimeInSec) bool {
	s := h.s
	if s.closing {
		return false
	}
	if d < 0 {
		d = 0
	}
	evt := &timerEvent{
		EventBase: sim.NewEventBase(s.engine.CurrentTime()+d, s),
		t:         h.t,
	}
	s.engine.Schedule(evt)
	s.parked <- struct{}{}
	return <-h.t.resume
}

func (h *taskHost) Read(sig Sig) uint64 { return h.s.bank.read(sigKey{sig, 0}) }

func (h *taskHost) Write(sig Sig, v uint64) { h.s.bank.write(sigKey{sig, 0}, v) }

func (h *taskHost) ReadVec(sig Sig, idx int) uint64 {
	return h.s.bank.read(sigKey{sig, idx})
}

func (h *taskHost) WriteVec(sig Sig, idx int, v uint64) {
	h.s.bank.write(sigKey{sig, idx}, v)
}

func (h *taskHost) Cycle() uint64 { return h.s.cycle }

func (h *taskHost) Now() sim.VTimeInSec { return h.s.engine.CurrentTime() }

func (h *taskHost) ClockPeriod() sim.VTimeInSec { return h.s.cfg.ClockFreq.Period() }
