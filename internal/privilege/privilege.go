// Package privilege models the capability/setuid state machine sketched
// in spec.md §4.E steps 1-2 and §5 ("capability state is process-wide and
// transitions through escalate/drop pairs that MUST be balanced"). The
// body of the real capability-set manipulation is out of scope (spec.md
// §1); this package supplies the balanced escalate/drop bookkeeping the
// supervisor calls through.
package privilege

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// State tracks the real and effective uid/gid captured at Init, so Drop
// and Escalate can swap between them.
type State struct {
	realUID, effectiveUID int
	realGID, effectiveGID int
	escalated             bool
}

// Init captures the process's current real/effective ids. Must run before
// any Escalate/Drop call (spec.md §4.E step 1).
func Init() (*State, error) {
	return &State{
		realUID:      unix.Getuid(),
		effectiveUID: unix.Geteuid(),
		realGID:      unix.Getgid(),
		effectiveGID: unix.Getegid(),
	}, nil
}

// DropPerm drops effective privileges permanently by setting real,
// effective, and saved ids all to the real (unprivileged) ids — used on
// the "no setuid" path (spec.md §4.E step 2, "else branch: strip USER and
// run unprivileged").
func (s *State) DropPerm() error {
	if err := unix.Setresgid(s.realGID, s.realGID, s.realGID); err != nil {
		return errors.Wrap(err, "privilege: permanently drop gid")
	}
	if err := unix.Setresuid(s.realUID, s.realUID, s.realUID); err != nil {
		return errors.Wrap(err, "privilege: permanently drop uid")
	}
	s.escalated = false
	return nil
}

// Drop lowers the effective ids to the real (unprivileged) ids while
// keeping the saved ids, so a later Escalate can restore effective
// privilege (spec.md §4.E step 2, setuid path).
func (s *State) Drop() error {
	if err := unix.Setresgid(-1, s.realGID, -1); err != nil {
		return errors.Wrap(err, "privilege: drop gid")
	}
	if err := unix.Setresuid(-1, s.realUID, -1); err != nil {
		return errors.Wrap(err, "privilege: drop uid")
	}
	s.escalated = false
	return nil
}

// Escalate restores the effective ids captured at Init. Every Escalate
// MUST be matched by a subsequent Drop (spec.md §5).
func (s *State) Escalate() error {
	if err := unix.Setresgid(-1, s.effectiveGID, -1); err != nil {
		return errors.Wrap(err, "privilege: escalate gid")
	}
	if err := unix.Setresuid(-1, s.effectiveUID, -1); err != nil {
		return errors.Wrap(err, "privilege: escalate uid")
	}
	s.escalated = true
	return nil
}

// Escalated reports whether the state currently holds elevated effective
// ids, for callers that need to assert the escalate/drop pairing is
// balanced before returning.
func (s *State) Escalated() bool { return s.escalated }
