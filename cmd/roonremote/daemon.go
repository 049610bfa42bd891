package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop - Reducer-driven "Remote Brain"
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands.
//   - The loop is the only place that executes side effects (transmit, render, haptics).
//   - Effect reports are turned into Events and fed back into the reducer.
//   - Exactly one event is handled at a time and runs to completion, so
//     AppState needs no locking.
//   - Timers are data in AppState; the loop sleeps until the earliest deadline
//     and then delivers TimerFired events in deadline order.
//
// ============================================================================

// engine owns the state and the explicit event/command queues.
type engine struct {
	state  *AppState
	cfg    RemoteConfig
	fx     effects
	logger *slog.Logger

	now        time.Time
	eventQueue []TimedEvent
	cmdQueue   []Command
}

func newEngine(state *AppState, cfg RemoteConfig, fx effects, logger *slog.Logger) *engine {
	if state == nil {
		state = NewAppState()
	}
	return &engine{
		state:  state,
		cfg:    cfg.withDefaults(),
		fx:     fx,
		logger: logger,
	}
}

// dispatch handles one external event received at time at. Every timer due
// at or before at fires first, so a deadline is never overtaken by an event
// that arrives after it.
func (e *engine) dispatch(ev Event, at time.Time) {
	if te, ok := ev.(TimedEvent); ok {
		ev = te.Event
		if !te.At.IsZero() {
			at = te.At
		}
	}
	e.advance(at)

	e.now = at
	e.enqueueEvent(TimedEvent{Event: ev, At: at})
	e.drain()
}

// advance fires, one at a time, every timer whose deadline is at or before
// now. A fire may arm further timers; those are considered on the next pass.
func (e *engine) advance(now time.Time) {
	for {
		due := dueTimers(e.state, now)
		if len(due) == 0 {
			return
		}
		d := due[0]
		e.now = d.Deadline
		e.enqueueEvent(TimedEvent{Event: TimerFired{Slot: d.Slot, Gen: d.Gen}, At: d.Deadline})
		e.drain()
	}
}

func (e *engine) enqueueEvent(ev TimedEvent) {
	e.eventQueue = append(e.eventQueue, ev)
}

func (e *engine) enqueueCommands(cmds []Command) {
	if len(cmds) == 0 {
		return
	}
	e.cmdQueue = append(e.cmdQueue, cmds...)
}

// drain runs the queues until both are empty.
func (e *engine) drain() {
	for len(e.eventQueue) > 0 || len(e.cmdQueue) > 0 {
		e.flushEvents()
		e.flushCommands()
	}
}

// flushEvents reduces all queued events, enqueuing any resulting commands.
func (e *engine) flushEvents() {
	for len(e.eventQueue) > 0 {
		ev := e.eventQueue[0]
		e.eventQueue = e.eventQueue[1:]

		rr := Reduce(e.state, ev, e.cfg)
		if rr.State != nil {
			e.state = rr.State
		}
		for _, tok := range rr.Dropped {
			e.logger.Debug("TX throttled", "token", tok)
		}
		e.enqueueCommands(rr.Commands)
	}
}

// flushCommands executes all queued commands. Reports are reduced promptly to
// keep state coherent before the next command runs.
func (e *engine) flushCommands() {
	for len(e.cmdQueue) > 0 {
		cmd := e.cmdQueue[0]
		e.cmdQueue = e.cmdQueue[1:]

		runEffect(e.fx, cmd, e.logger, func(obs Event) {
			e.enqueueEvent(TimedEvent{Event: obs, At: e.now})
		})
		e.flushEvents()
	}
}

// runDaemon is the main loop that:
//   - Receives Events from input, IPC, HTTP and the host link
//   - Wakes on the earliest pending timer deadline
//   - Reduces events into (state, commands) and executes the commands
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
func runDaemon(ctx context.Context, events <-chan Event, eng *engine) {
	if eng == nil {
		return
	}
	logger := eng.logger

	wake := time.NewTimer(time.Hour)
	wake.Stop()
	defer wake.Stop()

	for {
		var wakeC <-chan time.Time
		if deadline, ok := nextDeadline(eng.state); ok {
			wake.Reset(max(0, time.Until(deadline)))
			wakeC = wake.C
		} else {
			wake.Stop()
		}

		select {
		case <-ctx.Done():
			logger.Info("remote loop stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("remote loop stopping (events channel closed)")
				return
			}
			eng.dispatch(ev, time.Now())

		case <-wakeC:
			eng.advance(time.Now())
		}
	}
}
