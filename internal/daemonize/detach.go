package daemonize

// daemonEventFD is the fixed descriptor number at which G0 places the
// eventfd in G1's ExtraFiles (spec.md §4.F: "the daemon inherits a
// single extra descriptor, the event-fd"). Go numbers ExtraFiles
// starting at 3.
const daemonEventFD = 3

// Daemon holds the G1-side handle on the eventfd inherited from G0. G1
// does not call setsid itself: exec.Cmd.SysProcAttr.Setsid already
// detached it from G0's session during the re-exec that created it.
type Daemon struct {
	efd *EventFD
}

// AttachSelf reconstructs the inherited eventfd. Call once at the start
// of the G1 role, before Bringup runs.
func AttachSelf() *Daemon {
	return &Daemon{efd: FromFD(daemonEventFD)}
}

// ReportBooted signals G0 that the sandbox is up and it may exit 0 and
// reap its own scratch logs. Wired into supervisor.Monitor.OnDetach so
// it fires exactly once, when the sandbox sends notifychan.MsgDetach.
func (d *Daemon) ReportBooted() {
	_ = d.efd.Signal(Booted)
}

// ReportFailed signals G0 with a failure code so it can report a
// meaningful exit status and retain its scratch logs. Used when the
// command cannot be resolved, or when supervisor.Monitor.Bringup returns
// (with or without an error) without the sandbox ever having detached.
func (d *Daemon) ReportFailed(code int32) {
	// Booted is far outside the 8-bit exit status range, so a real exit
	// code can never alias it.
	_ = d.efd.Signal(uint64(uint8(code)))
}

// Close releases the eventfd handle.
func (d *Daemon) Close() error {
	return d.efd.Close()
}
