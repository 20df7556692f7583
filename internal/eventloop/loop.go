// Package eventloop implements the event registry and event loop (spec.md
// §4.C/§4.D): a single-threaded, cooperative dispatcher over one epoll
// set, classifying every source's return code until one is terminal.
package eventloop

import (
	"golang.org/x/sys/unix"

	"github.com/sylabs/starter/internal/starterlog"
)

// Loop runs the registry's sources to completion.
type Loop struct {
	reg        *Registry
	sandboxPID int
}

// NewLoop binds a loop to reg, threading sandboxPID through to OnReady
// callbacks that need it (the signal source's SIGCHLD reaper).
func NewLoop(reg *Registry, sandboxPID int) *Loop {
	return &Loop{reg: reg, sandboxPID: sandboxPID}
}

// Run blocks until a source reports a terminal code, per spec.md §4.D:
//
//  1. Block on the aggregator for exactly one ready source.
//  2. Invoke that source's OnReady.
//  3. Discard removes the source from the aggregator and continues.
//  4. EXITED/SIGNALED end the loop with that code; anything else
//     (NOTIFIED, FAILED, payload zero) continues.
func (l *Loop) Run() (Code, error) {
	// A single-element buffer caps EpollWait to returning at most one
	// ready fd per call, so each cycle of this loop processes exactly
	// one event (spec.md §4.C/§4.D step 1): a source registered by a
	// handler during this cycle cannot itself be woken before the next
	// EpollWait call.
	events := make([]unix.EpollEvent, 1)
	for {
		n, err := unix.EpollWait(l.reg.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return Failed(255), err
		}
		if n == 0 {
			continue
		}
		fd := int(events[0].Fd)
		src, ok := l.reg.sourceFor(fd)
		if !ok {
			continue
		}
		code := src.OnReady(l.sandboxPID)
		if code == Discard {
			l.reg.unregisterFD(fd)
			continue
		}
		if code.Terminal() {
			return code, nil
		}
		// NOTIFIED, FAILED, or payload-zero: keep looping.
	}
}

// Drain calls every registered source's OnExit, in registration order,
// regardless of which fd ended the loop (spec.md P3). Failures are logged
// and do not prevent subsequent handlers from running (spec.md §7 kind 5).
func (l *Loop) Drain() {
	for _, src := range l.reg.ordered {
		if src.OnExit == nil {
			continue
		}
		if err := src.OnExit(); err != nil {
			starterlog.G().WithField(starterlog.EventSource, src.Name).
				WithError(err).Warn("exit hook failed")
		}
	}
}
