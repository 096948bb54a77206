package vm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultFramePeriod is 60 Hz truncated to whole milliseconds.
const DefaultFramePeriod = 16 * time.Millisecond

type State uint8

const (
	Running State = iota
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type EventKind uint8

const (
	EventKeyDown EventKind = iota
	EventKeyUp
	EventQuit
	EventTogglePause
	EventStep
	EventReset
)

type Event struct {
	Kind EventKind
	Key  Key
}

// Host is the outside world of the machine: where input comes from and where
// frames go.
type Host interface {
	PollEvents(handle func(Event)) error
	Present(d *Display) error
}

type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Scheduler drives a VM one instruction per frame.
type Scheduler struct {
	vm     *VM
	host   Host
	clock  Clock
	period time.Duration

	state       State
	stepPending bool
	idleAt      uint16
	idleLogged  bool
}

type SchedulerOption func(*Scheduler)

func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

func WithFramePeriod(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.period = d
		}
	}
}

// StartPaused makes the scheduler wait for a step or resume before the first
// instruction.
func StartPaused() SchedulerOption {
	return func(s *Scheduler) {
		s.state = Paused
	}
}

func NewScheduler(vm *VM, host Host, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		vm:     vm,
		host:   host,
		clock:  systemClock{},
		period: DefaultFramePeriod,
		state:  Running,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) State() State {
	return s.state
}

// Run ticks until the machine is stopped, a fatal error occurs or ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for s.state != Stopped {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.Tick(); err != nil {
			return err
		}
	}

	slog.Debug("scheduler stopped")
	return nil
}

// Tick performs one frame: input, at most one instruction, timers,
// presentation and pacing.
func (s *Scheduler) Tick() error {
	start := s.clock.Now()

	if err := s.host.PollEvents(s.handleEvent); err != nil {
		return err
	}
	if s.state == Stopped {
		return nil
	}

	if s.state == Running || s.stepPending {
		s.stepPending = false

		pc := s.vm.PC()
		instr, err := s.vm.Step()
		if err != nil {
			return err
		}
		s.noteIdleLoop(pc, instr)

		s.vm.TickTimers()
	}

	if err := s.host.Present(&s.vm.display); err != nil {
		return err
	}

	elapsed := s.clock.Now().Sub(start)
	if wait := s.period - elapsed; wait > 0 {
		s.clock.Sleep(wait)
	}

	return nil
}

func (s *Scheduler) handleEvent(e Event) {
	switch e.Kind {
	case EventKeyDown:
		s.vm.keypad.Press(e.Key)

	case EventKeyUp:
		s.vm.keypad.Release(e.Key)

	case EventQuit:
		slog.Debug("quit requested")
		s.state = Stopped

	case EventTogglePause:
		switch s.state {
		case Running:
			s.state = Paused
		case Paused:
			s.state = Running
		}
		slog.Info("debug mode", "state", s.state.String())

	case EventStep:
		if s.state == Paused {
			s.stepPending = true
		}

	case EventReset:
		slog.Info("reboot")
		s.vm.Reset()
		s.stepPending = false
		s.idleLogged = false
	}
}

// noteIdleLoop logs once when the program parks itself in a jump to self.
func (s *Scheduler) noteIdleLoop(pc uint16, instr Instruction) {
	if instr.Op != OpJP || instr.NNN != pc {
		return
	}
	if s.idleLogged && s.idleAt == pc {
		return
	}

	s.idleAt = pc
	s.idleLogged = true
	slog.Info("program looped", "pc", fmt.Sprintf("0x%04x", pc))
}
