package daemonize

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// scratchLog is a temporary file used to capture a daemon-bringup stream
// (stdout or stderr) that would otherwise be lost once G0 detaches from
// its controlling terminal. Grounded in original_source/src/wrapper.c's
// make_logfile, which builds a /tmp path suffixed with a random token;
// os.CreateTemp plus a uuid suffix is the Go-idiomatic equivalent.
type scratchLog struct {
	path string
	f    *os.File
}

func newScratchLog(stream string) (*scratchLog, error) {
	name := fmt.Sprintf("singularity-%s-%s.log", stream, uuid.NewString())
	f, err := os.CreateTemp("", name)
	if err != nil {
		return nil, errors.Wrapf(err, "daemonize: create scratch log for %s", stream)
	}
	return &scratchLog{path: f.Name(), f: f}, nil
}

// File returns the open file, for use as a Cmd.Stdout/Stderr target.
func (l *scratchLog) File() *os.File { return l.f }

// Retain closes the log and leaves it on disk for inspection (spec.md
// §4.F: failed bring-ups keep their scratch logs).
func (l *scratchLog) Retain() error {
	return l.f.Close()
}

// Discard closes and unlinks the log (successful bring-up).
func (l *scratchLog) Discard() error {
	closeErr := l.f.Close()
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		if closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}

// Contents reads back the log for G0 to echo to its own stdout on
// failure (spec.md §4.F: "prints the captured output").
func (l *scratchLog) Contents() ([]byte, error) {
	return os.ReadFile(l.path)
}
