package supervisor

import (
	"golang.org/x/sys/unix"

	"github.com/sylabs/starter/internal/eventloop"
	"github.com/sylabs/starter/internal/sigsource"
	"github.com/sylabs/starter/internal/starterlog"
)

// sigsourceBlock and sigsourceNew are thin named wrappers so Bringup's
// call sites read as supervisor operations; they carry no behavior beyond
// internal/sigsource's own Block/New.
func sigsourceBlock() (unix.Sigset_t, error) { return sigsource.Block() }

func sigsourceNew(mask unix.Sigset_t, sandboxPID int) (*sigWrapper, error) {
	src, err := sigsource.New(mask, sandboxPID)
	if err != nil {
		return nil, err
	}
	return &sigWrapper{src}, nil
}

// sigWrapper adapts sigsource.Outcome to eventloop.Code, the tagged result
// the loop expects (spec.md §3/§4.B/§4.D).
type sigWrapper struct{ src *sigsource.Source }

func (w *sigWrapper) FD() int      { return w.src.FD() }
func (w *sigWrapper) Close() error { return w.src.Close() }

func (w *sigWrapper) readOneAsCode() eventloop.Code {
	out, err := w.src.ReadOne()
	if err != nil {
		starterlog.G().WithError(err).Warn("signal source read failed")
		return eventloop.Discard
	}
	switch out.Kind {
	case sigsource.KindExited:
		return eventloop.Exited(out.Payload)
	case sigsource.KindSignaled:
		return eventloop.Signaled(out.Payload)
	default:
		return eventloop.Continue
	}
}
