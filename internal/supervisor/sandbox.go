package supervisor

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/sylabs/starter/internal/dispatch"
	"github.com/sylabs/starter/internal/notifychan"
)

// RunSandboxChild implements spec.md §4.E step 6, the "child path" taken
// by the freshly re-exec'd process image: complete side-init, require
// the first message to be CONTINUE, then hand over to the command
// handler with the remaining namespace mask. writeFD/readFD are the
// notify channel's child-side descriptors in the order produced by
// notifychan.Channel.ExtraFiles (childW, parentR), inherited at the fixed
// fd numbers the monitor placed them at via exec.Cmd.ExtraFiles.
func RunSandboxChild(cmd dispatch.Command, argv []string, writeFD, readFD int) int32 {
	ch := notifychan.FromFDs(writeFD, readFD)
	defer ch.Close()

	if err := setParentDeathSignal(); err != nil {
		// Non-fatal: an orphaned sandbox surviving its monitor is a
		// degraded mode, not a protocol violation (original_source/
		// util/signal.c's singularity_set_parent_death_signal has no
		// documented failure handling beyond logging).
		_ = err
	}

	msg, err := ch.Recv()
	if err != nil || msg != notifychan.MsgContinue {
		// spec.md §7 kind 3: protocol violation is fatal for the
		// receiving side; the parent observes the resulting SIGCHLD.
		return 255
	}

	// Install the process-wide notify channel singleton (spec.md §9)
	// before the handler runs, so handlers like instance.start can send
	// NOTIFY_DETACH without needing the channel threaded through
	// dispatch.Handler's signature.
	notifychan.SetActive(ch)

	return int32(cmd.Handler(argv, cmd.NSMask))
}

// setParentDeathSignal arranges for the kernel to send SIGKILL to this
// process if its parent (the monitor) dies before it does
// (SUPPLEMENTED FEATURES: original_source/ util/signal.c
// singularity_set_parent_death_signal, not present in spec.md's
// distillation).
func setParentDeathSignal() error {
	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGKILL), 0, 0, 0); err != nil {
		return errors.Wrap(err, "supervisor: set parent death signal")
	}
	return nil
}
