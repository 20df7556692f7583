package daemonize

import (
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/sylabs/starter/internal/starterlog"
)

// DaemonReexecArg is the hidden subcommand cmd/starter recognizes to take
// the G1 role: a normal FORK bring-up that additionally knows how to
// detach from G0 once the sandbox reports readiness.
const DaemonReexecArg = "__daemon"

// bootTimeout bounds how long G0 waits for G1 to either signal the
// eventfd or die. original_source/src/wrapper.c waits indefinitely; a
// bounded wait is a supplemented safeguard against a G1 that wedges
// before ever reaching AttachSelf or reporting an outcome.
const bootTimeout = 60 * time.Second

// pollInterval is how often G0 polls the eventfd between SIGCHLD
// notifications.
const pollInterval = 50 * time.Millisecond

// Bringup runs the G0 role of spec.md §4.F's three-process daemon
// chain: it re-execs itself into the G1 role, captures G1's stdout and
// stderr into scratch logs, and waits for G1 to signal success or
// failure over an eventfd. On success both logs are discarded and
// Bringup returns 0. On any failure path the logs are retained, the
// captured stderr is echoed to G0's own stdout (spec.md S6), and the
// best-available exit code is returned.
func Bringup(argv []string) (int32, error) {
	efd, err := NewEventFD()
	if err != nil {
		return 255, err
	}
	defer efd.Close()

	outLog, err := newScratchLog("stdout")
	if err != nil {
		return 255, err
	}
	errLog, err := newScratchLog("stderr")
	if err != nil {
		return 255, err
	}

	self, err := os.Executable()
	if err != nil {
		return 255, errors.Wrap(err, "daemonize: resolve self executable")
	}

	g1 := exec.Command(self, append([]string{DaemonReexecArg}, argv...)...)
	g1.Stdin = nil
	g1.Stdout = outLog.File()
	g1.Stderr = errLog.File()
	g1.ExtraFiles = []*os.File{efd.File()}
	g1.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := g1.Start(); err != nil {
		outLog.Retain()
		errLog.Retain()
		return 255, errors.Wrap(err, "daemonize: start daemon process")
	}

	var died atomic.Bool
	var waitStatus syscall.WaitStatus
	go func() {
		var ws syscall.WaitStatus
		_, _ = syscall.Wait4(g1.Process.Pid, &ws, 0, nil)
		waitStatus = ws
		died.Store(true)
	}()

	code, failed := waitForOutcome(efd, &died)

	if !failed {
		outLog.Discard()
		errLog.Discard()
		return 0, nil
	}

	if code < 0 {
		// G1 died without ever signaling the eventfd; fall back to its
		// wait status if we have one.
		code = 255
		if waitStatus.Exited() {
			code = int64(waitStatus.ExitStatus())
		}
	}

	if contents, err := errLog.Contents(); err == nil && len(contents) > 0 {
		os.Stdout.Write(contents)
	}
	outLog.Retain()
	errLog.Retain()

	starterlog.G().WithField(starterlog.ExitCode, code).
		WithField(starterlog.Stage, "daemon-bringup").
		Warn("daemon failed to boot; scratch logs retained")

	return int32(code), nil
}

// waitForOutcome polls the eventfd until G1 signals an outcome or dies
// without signaling one. failed is false only for a clean Booted signal.
func waitForOutcome(efd *EventFD, died *atomic.Bool) (code int64, failed bool) {
	deadline := time.Now().Add(bootTimeout)
	for {
		value, ok, err := efd.TryRead()
		if err != nil {
			return -1, true
		}
		if ok {
			if value == Booted {
				return 0, false
			}
			return int64(value), true
		}
		if died.Load() {
			// Give the last write a brief grace window in case the
			// SIGCHLD notification raced the eventfd write.
			if value, ok, _ := efd.TryRead(); ok {
				if value == Booted {
					return 0, false
				}
				return int64(value), true
			}
			return -1, true
		}
		if time.Now().After(deadline) {
			return -1, true
		}
		time.Sleep(pollInterval)
	}
}
