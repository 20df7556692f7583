// Package dispatch implements the command dispatcher (spec.md §4.G): a
// static name→descriptor table and the top-level entry logic that either
// invokes a NOFORK handler directly or hands off to the supervisor.
package dispatch

import "github.com/sylabs/starter/internal/nsmask"

// ForkMode selects how the dispatcher brings a command's handler to life.
type ForkMode int

const (
	// NOFORK runs the handler in-process after namespace transitions,
	// bypassing the supervisor entirely.
	NOFORK ForkMode = iota
	// FORK runs the handler in a sandbox child supervised by a monitor.
	FORK
	// DAEMON wraps FORK in the three-process grandparent/daemon chain.
	DAEMON
)

func (m ForkMode) String() string {
	switch m {
	case NOFORK:
		return "NOFORK"
	case FORK:
		return "FORK"
	case DAEMON:
		return "DAEMON"
	default:
		return "UNKNOWN"
	}
}

// Handler is a command's entry point: (argc implied by len(argv), argv,
// remaining ns_mask) -> exit status in [0,255] (spec.md §6). A handler
// running inside a sandboxed child reaches the child->parent half of
// the notify protocol (spec.md §1 item 3, §4.H) through the
// process-wide singleton notifychan.Active(), not through this
// signature (spec.md §9 "Global state").
type Handler func(argv []string, nsMask nsmask.Mask) int32

// CapInit runs before the handler to initialize capability/privilege state
// for the chosen command (spec.md §4.E step 1).
type CapInit func() error

// Command is an immutable command descriptor (spec.md §3).
type Command struct {
	Name     string
	Handler  Handler
	CapInit  CapInit
	ForkMode ForkMode
	NSMask   nsmask.Mask
}
