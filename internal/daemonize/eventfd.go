// Package daemonize implements the three-process DAEMON bring-up chain
// (spec.md §4.F): a grandparent (G0) that stays alive only until the
// daemon (G1) reports success or failure, G1 itself (which performs a
// normal FORK bring-up to produce the sandbox G2), and the eventfd used
// to carry that success/failure signal between them.
package daemonize

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Booted is the sentinel value signaling daemon startup success
// (spec.md §4.F). It does not collide with any legal 8-bit exit status.
const Booted uint64 = 0xB007ED

// EventFD wraps a Linux eventfd used as the one-shot success/failure
// channel from G1 to G0.
type EventFD struct {
	f *os.File
}

// NewEventFD creates a fresh, non-blocking eventfd. Its counter starts
// at zero; the first write determines the bring-up outcome.
func NewEventFD() (*EventFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "daemonize: create eventfd")
	}
	return &EventFD{f: os.NewFile(uintptr(fd), "daemon-eventfd")}, nil
}

// FromFD wraps an eventfd inherited at a known descriptor number, used by
// G1 to recover the eventfd ExtraFiles placed there before its re-exec.
func FromFD(fd int) *EventFD {
	return &EventFD{f: os.NewFile(uintptr(fd), "daemon-eventfd")}
}

// File exposes the underlying *os.File for placement in exec.Cmd.ExtraFiles.
func (e *EventFD) File() *os.File { return e.f }

// FD returns the raw descriptor, used by TryRead's raw unix.Read.
func (e *EventFD) FD() int { return int(e.f.Fd()) }

// Signal adds value to the eventfd's counter. G1 calls this exactly once
// with either Booted or a failure code (spec.md §4.F).
func (e *EventFD) Signal(value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	if _, err := e.f.Write(buf[:]); err != nil {
		return errors.Wrap(err, "daemonize: signal eventfd")
	}
	return nil
}

// TryRead performs a non-blocking read of the eventfd's counter. ok is
// false if nothing has been signaled yet (EAGAIN).
func (e *EventFD) TryRead() (value uint64, ok bool, err error) {
	var buf [8]byte
	n, rerr := unix.Read(e.FD(), buf[:])
	if rerr != nil {
		if rerr == unix.EAGAIN {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(rerr, "daemonize: read eventfd")
	}
	if n != 8 {
		return 0, false, errors.New("daemonize: short read from eventfd")
	}
	return binary.LittleEndian.Uint64(buf[:]), true, nil
}

// Close releases the eventfd.
func (e *EventFD) Close() error { return e.f.Close() }
