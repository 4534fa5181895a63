// File: loop/adapter.go
// Author: momentics <momentics@gmail.com>
//
// The Transfer Engine Adapter (C3): bridges engine.SocketFunction /
// engine.TimerFunction notifications to reactor.Reactor calls, and
// implements checkActions, the engine driver described by spec.md §4.3.
// This is the one place engine's Poll*/Ready vocabulary and reactor's
// FDEventType vocabulary meet.

package loop

import (
	"log"
	"time"

	"github.com/momentics/liftcore/engine"
	"github.com/momentics/liftcore/reactor"
)

// onSocketAction implements engine.SocketFunction.
func (l *EventLoop) onSocketAction(fd uintptr, action engine.SocketAction, socketData *any) {
	if action == engine.PollRemove {
		ctx, _ := (*socketData).(*reactor.SocketContext)
		if ctx == nil {
			return
		}
		if err := ctx.Close(nil); err != nil && err != reactor.ErrSocketContextClosed {
			log.Printf("[loop] close fd %d: %v", fd, err)
		}
		*socketData = nil
		return
	}

	ctx, _ := (*socketData).(*reactor.SocketContext)
	if ctx == nil {
		newCtx, err := l.rx.Watch(fd, interestFor(action), l.onFDReady)
		if err != nil {
			log.Printf("[loop] watch fd %d: %v", fd, err)
			return
		}
		*socketData = newCtx
		return
	}

	var err error
	switch action {
	case engine.PollIn:
		err = ctx.StartRead()
	case engine.PollOut:
		err = ctx.StartWrite()
	case engine.PollInOut:
		err = ctx.StartReadWrite()
	}
	if err != nil {
		log.Printf("[loop] set interest fd %d action %v: %v", fd, action, err)
	}
}

func interestFor(action engine.SocketAction) reactor.FDEventType {
	switch action {
	case engine.PollIn:
		return reactor.EventRead
	case engine.PollOut:
		return reactor.EventWrite
	case engine.PollInOut:
		return reactor.EventRead | reactor.EventWrite
	default:
		return 0
	}
}

// onFDReady implements reactor.FDCallback for every socket watched on
// behalf of the engine: translate reactor ready-bits to engine ready-bits
// and drive the engine forward.
func (l *EventLoop) onFDReady(fd uintptr, events reactor.FDEventType) {
	var mask engine.ReadyMask
	if events&reactor.EventRead != 0 {
		mask |= engine.ReadyIn
	}
	if events&reactor.EventWrite != 0 {
		mask |= engine.ReadyOut
	}
	if events&reactor.EventError != 0 {
		mask |= engine.ReadyErr
	}
	l.checkActions(fd, mask)
}

// onTimerAction implements engine.TimerFunction.
func (l *EventLoop) onTimerAction(timeoutMs int64) {
	_ = l.rx.StopTimer()
	switch {
	case timeoutMs == 0:
		l.checkActions(0, 0)
	case timeoutMs > 0:
		if err := l.rx.ArmTimer(time.Duration(timeoutMs)*time.Millisecond, l.onTimerFired); err != nil {
			log.Printf("[loop] arm timer: %v", err)
		}
	default:
		// timeoutMs < 0: engine needs no timer; StopTimer above already
		// left it disarmed.
	}
}

func (l *EventLoop) onTimerFired() {
	l.checkActions(0, 0)
}

// checkActions is the engine driver (spec.md §4.3): advance the engine
// for (fd, mask) and drain whatever it completed. multiEngine's
// SocketAction already loops internally to exhaustion (there is no
// separate CALL-AGAIN signal to loop on in this implementation), so a
// single call here covers the "call in a loop while CALL-AGAIN" step.
func (l *EventLoop) checkActions(fd uintptr, mask engine.ReadyMask) {
	if _, err := l.eng.SocketAction(fd, mask); err != nil {
		log.Printf("[loop] SocketAction(fd=%d, mask=%v): %v", fd, mask, err)
	}
	l.dispatchCompletions()
}
