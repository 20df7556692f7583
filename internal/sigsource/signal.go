// Package sigsource implements the signal event source (spec.md §4.B): a
// process-wide signal mask installed once, exposed as a signalfd so the
// event loop can multiplex it alongside the notify channel.
package sigsource

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Source owns the signalfd and the "ignored child" override used when the
// monitor itself forks a short-lived helper (e.g. the network helper) and
// must absorb that child's SIGCHLD silently.
type Source struct {
	fd           int
	sandboxPID   int
	ignoredChild int
}

// Block fills the process signal mask with every catchable signal so
// nothing is delivered asynchronously; all notifications arrive through
// the returned Source's file descriptor instead. Must run before any
// goroutine that could land on a new OS thread is started, since
// PthreadSigmask only affects the calling thread and new OS threads
// inherit the mask of whichever thread spawned them (spec.md §5).
func Block() (unix.Sigset_t, error) {
	var mask unix.Sigset_t
	mask.Val[0] = ^uint64(0)
	mask.Val[1] = ^uint64(0)
	if err := unix.PthreadSigmask(unix.SIG_SETMASK, &mask, nil); err != nil {
		return mask, errors.Wrap(err, "sigsource: set process signal mask")
	}
	return mask, nil
}

// New opens a signalfd bound to mask (normally the result of Block) and
// tracks sandboxPID as the child whose termination ends the supervisor's
// event loop.
func New(mask unix.Sigset_t, sandboxPID int) (*Source, error) {
	fd, err := unix.Signalfd(-1, &mask, unix.SFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "sigsource: create signalfd")
	}
	return &Source{fd: fd, sandboxPID: sandboxPID, ignoredChild: -1}, nil
}

// FD returns the signalfd descriptor for registration with eventloop.
func (s *Source) FD() int { return s.fd }

// Close releases the signalfd.
func (s *Source) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// IgnoreNextChild registers a transient pid whose next SIGCHLD is to be
// reaped and discarded without producing a loop-terminating code (spec.md
// §4.B).
func (s *Source) IgnoreNextChild(pid int) {
	s.ignoredChild = pid
}

// ReadOne decodes exactly one signalfd_siginfo and classifies it per
// spec.md §4.B:
//
//   - SIGCHLD: reap non-blockingly; if the reaped pid is the sandbox and it
//     exited normally, report KindExited with the low 8 bits of the exit
//     code. If signaled, report KindSignaled with payload 255. Other
//     reaped children (including the ignored-child override) are silent
//     and report KindContinue.
//   - SIGCONT: KindContinue.
//   - anything else: KindExited with payload 255.
func (s *Source) ReadOne() (Outcome, error) {
	var info unix.SignalfdSiginfo
	n, err := unix.Read(s.fd, asBytes(&info))
	if err != nil {
		return Outcome{}, errors.Wrap(err, "sigsource: read signalfd")
	}
	if n != sizeofSiginfo {
		return Outcome{}, errors.New("sigsource: short read from signalfd")
	}

	switch unix.Signal(info.Signo) {
	case unix.SIGCHLD:
		return s.reapChildren(), nil
	case unix.SIGCONT:
		return Outcome{Kind: KindContinue}, nil
	default:
		return Outcome{Kind: KindExited, Payload: 255}, nil
	}
}

// reapChildren drains all terminated children non-blockingly, matching
// the sandbox pid (or the ignored-child override) against wait results.
func (s *Source) reapChildren() Outcome {
	result := Outcome{Kind: KindContinue}
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			break
		}
		switch {
		case pid == s.ignoredChild:
			s.ignoredChild = -1
		case pid == s.sandboxPID:
			if status.Exited() {
				result = Outcome{Kind: KindExited, Payload: status.ExitStatus() & 0xFF}
			} else if status.Signaled() {
				result = Outcome{Kind: KindSignaled, Payload: 255}
			}
		}
	}
	return result
}
