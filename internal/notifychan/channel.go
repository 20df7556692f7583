// Package notifychan implements the anonymous-pipe notify channel used
// for parent<->child control messages across the fork/exec boundary
// (spec.md §3, §4.A). Two unidirectional pipes are created before fork;
// each side closes the end it does not own during side-init, so that
// afterwards exactly one read end and one write end remain valid on each
// side (spec.md P1).
package notifychan

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ErrProtocolViolation is returned (wrapped) by Recv on a short read or
// EOF, and by Send on a short write (spec.md §7 kind 3).
var ErrProtocolViolation = errors.New("notifychan: protocol violation")

// ErrClosed is returned by Send/Recv/Close on an already-closed end,
// rather than letting the OS fail silently underneath us (spec.md B4).
var ErrClosed = errors.New("notifychan: end already closed")

// Channel holds both pipe pairs before side-init splits ownership.
// childPipe is child -> parent; parentPipe is parent -> child.
type Channel struct {
	childR, childW   *os.File
	parentR, parentW *os.File

	// side is which file descriptors remain valid for Send/Recv/Close/
	// PollableFD after {Child,Parent}Init has run. Before side-init both
	// are nil and those calls return ErrClosed (programmer error, per
	// spec.md §3's invariant note).
	readEnd  *os.File
	writeEnd *os.File
}

// New creates both pipe pairs. Must be called before fork; os.Pipe sets
// close-on-exec on the returned files on Linux, matching the O_CLOEXEC
// requirement in spec.md §4.A without a hand-rolled pipe2 call.
func New() (*Channel, error) {
	childR, childW, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "notifychan: create child pipe")
	}
	parentR, parentW, err := os.Pipe()
	if err != nil {
		childR.Close()
		childW.Close()
		return nil, errors.Wrap(err, "notifychan: create parent pipe")
	}
	return &Channel{childR: childR, childW: childW, parentR: parentR, parentW: parentW}, nil
}

// ChildInit completes side-init for the child: the child writes to
// child-pipe and reads from parent-pipe. The unused ends are closed.
func (c *Channel) ChildInit() error {
	if err := c.childR.Close(); err != nil {
		return errors.Wrap(err, "notifychan: close child-pipe read end")
	}
	if err := c.parentW.Close(); err != nil {
		return errors.Wrap(err, "notifychan: close parent-pipe write end")
	}
	c.readEnd = c.parentR
	c.writeEnd = c.childW
	c.childR, c.parentW = nil, nil
	return nil
}

// ParentInit completes side-init for the parent: the parent reads from
// child-pipe and writes to parent-pipe. The unused ends are closed.
func (c *Channel) ParentInit() error {
	if err := c.childW.Close(); err != nil {
		return errors.Wrap(err, "notifychan: close child-pipe write end")
	}
	if err := c.parentR.Close(); err != nil {
		return errors.Wrap(err, "notifychan: close parent-pipe read end")
	}
	c.readEnd = c.childR
	c.writeEnd = c.parentW
	c.childW, c.parentR = nil, nil
	return nil
}

// ExtraFiles returns the child-side ends in the fixed order the sandbox
// re-exec expects them ([write-to-parent, read-from-parent]), for wiring
// into exec.Cmd.ExtraFiles. The parent's own copies of these two ends are
// still open at this point; ParentInit (called after Start) closes them.
// The ends the child doesn't own (childR, parentW) are never placed in
// ExtraFiles, so close-on-exec in the parent's copies plus the fresh
// process image together realize side-init for the child without any
// explicit close call in the child process (spec.md §4.A).
func (c *Channel) ExtraFiles() []*os.File {
	return []*os.File{c.childW, c.parentR}
}

// FromFDs reconstructs a Channel's child side from inherited file
// descriptors in a freshly re-exec'd process image, in the order produced
// by ExtraFiles (write end at index 0, read end at index 1).
func FromFDs(writeFD, readFD int) *Channel {
	return &Channel{
		writeEnd: os.NewFile(uintptr(writeFD), "notify-write"),
		readEnd:  os.NewFile(uintptr(readFD), "notify-read"),
	}
}

// Send writes a fixed-width message to this side's write end.
func (c *Channel) Send(m Message) error {
	if c.writeEnd == nil {
		return ErrClosed
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(m))
	n, err := c.writeEnd.Write(buf[:])
	if err != nil {
		return errors.Wrap(err, "notifychan: send")
	}
	if n != len(buf) {
		return errors.Wrapf(ErrProtocolViolation, "notifychan: short write (%d bytes)", n)
	}
	return nil
}

// Recv reads exactly one fixed-width message from this side's read end.
func (c *Channel) Recv() (Message, error) {
	if c.readEnd == nil {
		return 0, ErrClosed
	}
	var buf [4]byte
	n, err := readFull(c.readEnd, buf[:])
	if err != nil {
		return 0, errors.Wrap(err, "notifychan: recv")
	}
	if n != len(buf) {
		return 0, errors.Wrapf(ErrProtocolViolation, "notifychan: short read (%d bytes)", n)
	}
	return Message(binary.LittleEndian.Uint32(buf[:])), nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				err = ErrProtocolViolation
			}
			return total, err
		}
		if n == 0 {
			return total, ErrProtocolViolation
		}
	}
	return total, nil
}

// PollableFD returns this side's read end descriptor, for registration
// with eventloop.Registry.
func (c *Channel) PollableFD() int {
	if c.readEnd == nil {
		return -1
	}
	return int(c.readEnd.Fd())
}

// Close closes both remaining ends. A second Close returns ErrClosed
// rather than silently succeeding (spec.md B4).
func (c *Channel) Close() error {
	if c.readEnd == nil && c.writeEnd == nil {
		return ErrClosed
	}
	var err error
	if c.readEnd != nil {
		if cerr := c.readEnd.Close(); cerr != nil {
			err = cerr
		}
		c.readEnd = nil
	}
	if c.writeEnd != nil {
		if cerr := c.writeEnd.Close(); cerr != nil {
			err = cerr
		}
		c.writeEnd = nil
	}
	if err != nil {
		return errors.Wrap(err, "notifychan: close")
	}
	return nil
}
