// Package supervisor implements the Monitor (spec.md §4.E): it orchestrates
// fork/exec of the sandbox, wires the notify channel, signal source, and
// event registry together, applies namespace transitions, and performs
// final cleanup.
//
// Go cannot safely fork() without exec()ing immediately in a
// multi-threaded runtime, so "fork the sandbox" is realized as a
// self-reexec: the monitor re-invokes its own binary
// (/proc/self/exe) with a hidden subcommand, passing the notify
// channel's child-side descriptors via ExtraFiles and CLONE_NEWPID via
// SysProcAttr.Cloneflags when the PID namespace is requested — the same
// idiom used for container.go's childCmd in the example pack. This
// reproduces spec.md §4.E's handshake in a fresh process image rather
// than a forked copy of the parent's memory; the protocol the two sides
// speak is unchanged.
package supervisor

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/sylabs/starter/internal/cgroupmgr"
	"github.com/sylabs/starter/internal/dispatch"
	"github.com/sylabs/starter/internal/eventloop"
	"github.com/sylabs/starter/internal/netsetup"
	"github.com/sylabs/starter/internal/notifychan"
	"github.com/sylabs/starter/internal/nsmask"
	"github.com/sylabs/starter/internal/privilege"
	"github.com/sylabs/starter/internal/registry"
	"github.com/sylabs/starter/internal/starterlog"
)

// SandboxReexecArg is the hidden subcommand cmd/starter recognizes to
// take the "child path" of spec.md §4.E step 6 in a freshly exec'd
// process image.
const SandboxReexecArg = "__sandbox"

// State mirrors spec.md §3's "Monitor state": created at Bringup entry,
// torn down after the loop exits.
type State struct {
	SandboxPID int
	CleanupDir string
	ForkMode   dispatch.ForkMode
}

// Monitor runs one FORK-mode bring-up/supervise/teardown cycle.
type Monitor struct {
	Command dispatch.Command
	Argv    []string
	// ConfigReg is the process-wide string registry (spec.md §6); read
	// only, never written by the supervisor.
	ConfigReg *registry.Registry
	// EventReg is populated during Bringup and exposed so the notify
	// handler can register additional sources at runtime (spec.md §3,
	// "Sources may be appended while the loop is running").
	EventReg *eventloop.Registry

	// NetConfig and CgroupMgr, if set before Bringup runs, are threaded
	// into the notify handler (SPEC_FULL.md §4.H / DOMAIN STACK).
	NetConfig *netsetup.Config
	CgroupMgr *cgroupmgr.Manager

	// OnDetach, if set, is invoked exactly once when the sandbox sends
	// notifychan.MsgDetach — used by internal/daemonize to signal the
	// grandparent's event-fd (SPEC_FULL.md §4.F).
	OnDetach func()

	state State
}

// New constructs a Monitor for cmd, reading CLEANUPDIR from reg.
func New(cmd dispatch.Command, argv []string, reg *registry.Registry) *Monitor {
	cleanupDir, _ := reg.Get("CLEANUPDIR")
	return &Monitor{
		Command:   cmd,
		Argv:      argv,
		ConfigReg: reg,
		state:     State{CleanupDir: cleanupDir, ForkMode: cmd.ForkMode},
	}
}

// Bringup implements spec.md §4.E steps 1-8 for FORK mode. On a SIGNALED
// terminal code it self-kills with SIGKILL and this function does not
// return (P5); otherwise it returns the sandbox's 8-bit exit status.
func (m *Monitor) Bringup() (int32, error) {
	priv, err := privilege.Init()
	if err != nil {
		return 255, errors.Wrap(err, "supervisor: privilege init")
	}
	if err := m.Command.CapInit(); err != nil {
		return 255, errors.Wrap(err, "supervisor: capability init")
	}

	nsMask := m.Command.NSMask
	pidNSEnabled := m.ConfigReg.GetBool("PIDNS_ENABLED")
	if !pidNSEnabled {
		nsMask = nsMask.Without(nsmask.User)
		if err := priv.DropPerm(); err != nil {
			return 255, errors.Wrap(err, "supervisor: drop permissions")
		}
	} else {
		if err := priv.Drop(); err != nil {
			return 255, errors.Wrap(err, "supervisor: drop privilege")
		}
	}

	ch, err := notifychan.New()
	if err != nil {
		return 255, errors.Wrap(err, "supervisor: create notify channel")
	}

	var cloneflags uintptr
	if nsMask.Has(nsmask.PID) {
		cloneflags |= unix.CLONE_NEWPID
		nsMask = nsMask.Without(nsmask.PID)
	}

	self, err := os.Executable()
	if err != nil {
		return 255, errors.Wrap(err, "supervisor: resolve self executable")
	}

	reexec := exec.Command(self, append([]string{SandboxReexecArg, m.Command.Name}, m.Argv...)...)
	reexec.ExtraFiles = ch.ExtraFiles()
	reexec.Stdin, reexec.Stdout, reexec.Stderr = os.Stdin, os.Stdout, os.Stderr
	reexec.SysProcAttr = &syscall.SysProcAttr{Cloneflags: cloneflags}

	if err := reexec.Start(); err != nil {
		ch.Close()
		return 255, errors.Wrap(err, "supervisor: start sandbox")
	}
	m.state.SandboxPID = reexec.Process.Pid

	if err := ch.ParentInit(); err != nil {
		return 255, errors.Wrap(err, "supervisor: notify channel parent side-init")
	}

	reg, err := eventloop.NewRegistry()
	if err != nil {
		return 255, errors.Wrap(err, "supervisor: create event registry")
	}
	defer reg.Close()
	m.EventReg = reg

	sigMask, err := sigsourceBlock()
	if err != nil {
		return 255, errors.Wrap(err, "supervisor: block signals")
	}
	sigSrc, err := sigsourceNew(sigMask, m.state.SandboxPID)
	if err != nil {
		return 255, errors.Wrap(err, "supervisor: create signal source")
	}
	if err := reg.Register(&eventloop.Source{
		Name: "signal", FD: sigSrc.FD(),
		OnReady: func(sandboxPID int) eventloop.Code { return sigSrc.readOneAsCode() },
		OnExit:  func() error { return sigSrc.Close() },
	}); err != nil {
		return 255, errors.Wrap(err, "supervisor: register signal source")
	}

	nh := &notifyHandler{channel: ch, monitor: m, NetConfig: m.NetConfig, CgroupMgr: m.CgroupMgr}
	if err := reg.Register(&eventloop.Source{
		Name: "notify", FD: ch.PollableFD(),
		OnReady: nh.onReady,
	}); err != nil {
		return 255, errors.Wrap(err, "supervisor: register notify source")
	}

	if err := ch.Send(notifychan.MsgContinue); err != nil {
		return 255, errors.Wrap(err, "supervisor: send initial CONTINUE")
	}

	loop := eventloop.NewLoop(reg, m.state.SandboxPID)
	code, err := loop.Run()
	if err != nil {
		return 255, errors.Wrap(err, "supervisor: event loop")
	}
	loop.Drain()

	if m.state.CleanupDir != "" {
		if err := os.RemoveAll(m.state.CleanupDir); err != nil {
			starterlog.G().WithField(starterlog.CleanupDir, m.state.CleanupDir).
				WithError(err).Warn("cleanup directory removal failed")
		}
	}

	ch.Close()

	if code.IsSignaled() {
		unix.Kill(os.Getpid(), unix.SIGKILL)
		// Unreachable: the kernel delivers SIGKILL before control
		// returns here (spec.md P5).
		return 255, nil
	}
	return int32(code.Payload()), nil
}
