package dispatch

import (
	"github.com/sylabs/starter/internal/commandset"
	"github.com/sylabs/starter/internal/nsmask"
)

func noopCapInit() error { return nil }

// table is the static command table (spec.md §4.G): name -> descriptor.
// NOFORK commands bypass the supervisor entirely; FORK and DAEMON are
// brought up through internal/supervisor (and internal/daemonize for
// DAEMON).
var table = []Command{
	{Name: "shell", Handler: commandset.Shell, CapInit: noopCapInit, ForkMode: FORK,
		NSMask: nsmask.User | nsmask.PID | nsmask.Mnt | nsmask.IPC | nsmask.UTS},
	{Name: "exec", Handler: commandset.Exec, CapInit: noopCapInit, ForkMode: FORK,
		NSMask: nsmask.User | nsmask.PID | nsmask.Mnt | nsmask.IPC | nsmask.UTS},
	{Name: "run", Handler: commandset.Run, CapInit: noopCapInit, ForkMode: FORK,
		NSMask: nsmask.User | nsmask.PID | nsmask.Mnt | nsmask.IPC | nsmask.UTS | nsmask.Net},
	{Name: "test", Handler: commandset.Test, CapInit: noopCapInit, ForkMode: NOFORK},
	{Name: "mount", Handler: commandset.Mount, CapInit: noopCapInit, ForkMode: NOFORK,
		NSMask: nsmask.Mnt},
	{Name: "help", Handler: commandset.Help, CapInit: noopCapInit, ForkMode: NOFORK},
	{Name: "apps", Handler: commandset.Apps, CapInit: noopCapInit, ForkMode: NOFORK},
	{Name: "inspect", Handler: commandset.Inspect, CapInit: noopCapInit, ForkMode: NOFORK},
	{Name: "check", Handler: commandset.Check, CapInit: noopCapInit, ForkMode: NOFORK},
	{Name: "image.import", Handler: commandset.ImageImport, CapInit: noopCapInit, ForkMode: NOFORK},
	{Name: "image.export", Handler: commandset.ImageExport, CapInit: noopCapInit, ForkMode: NOFORK},
	{Name: "instance.start", Handler: commandset.InstanceStart, CapInit: noopCapInit, ForkMode: DAEMON,
		NSMask: nsmask.User | nsmask.PID | nsmask.Mnt | nsmask.IPC | nsmask.UTS | nsmask.Net},
}

// Lookup returns the command descriptor for name, and false for any
// unrecognized command — a fatal error at the call site (spec.md §4.G,
// S4 "unknown command ⇒ exit 255").
func Lookup(name string) (Command, bool) {
	for _, c := range table {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// Names returns every recognized command name, in table order, for CLI
// surface construction (cmd/starter).
func Names() []string {
	names := make([]string, len(table))
	for i, c := range table {
		names[i] = c.Name
	}
	return names
}
