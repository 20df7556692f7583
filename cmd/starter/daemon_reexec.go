package main

import (
	"fmt"

	"github.com/sylabs/starter/internal/daemonize"
	"github.com/sylabs/starter/internal/dispatch"
	"github.com/sylabs/starter/internal/registry"
	"github.com/sylabs/starter/internal/starterlog"
	"github.com/sylabs/starter/internal/supervisor"
)

// runDaemonReexec is the G1 role of a DAEMON-mode bring-up
// (spec.md §4.F): a normal FORK bring-up that additionally reports its
// outcome to G0 over the eventfd inherited at fd 3. argv[0] is the
// command name, passed positionally by daemonize.Bringup
// (cmd/starter/app.go's dispatchCommand builds it as
// append([]string{cmd.Name}, argv...)) rather than through the
// registry, mirroring how runSandboxReexec recovers its command name
// (cmd/starter/main.go).
func runDaemonReexec(argv []string) int {
	d := daemonize.AttachSelf()
	defer d.Close()

	code, err := dispatchAndBringup(argv, d)
	if err != nil {
		starterlog.G().WithError(err).Error("daemon bring-up failed")
	}
	return int(code)
}

// dispatchAndBringup resolves the command from argv[0] and runs the
// Monitor, wiring Monitor.OnDetach to report success to G0 the moment
// the sandbox signals readiness (notifychan.MsgDetach). If Bringup
// returns before that ever happens, the failure path below reports it
// instead — the two report calls are mutually exclusive, so the eventfd
// is signaled exactly once.
func dispatchAndBringup(argv []string, d *daemonize.Daemon) (int32, error) {
	if len(argv) < 1 {
		d.ReportFailed(255)
		return 255, fmt.Errorf("starter: missing command name for daemon re-exec")
	}
	cmd, ok := dispatch.Lookup(argv[0])
	if !ok {
		d.ReportFailed(255)
		return 255, fmt.Errorf("starter: unknown command %q", argv[0])
	}

	reg := registry.New()
	reg.Set("COMMAND", cmd.Name)

	mon := supervisor.New(cmd, argv[1:], reg)
	detached := false
	mon.OnDetach = func() {
		detached = true
		d.ReportBooted()
	}

	code, err := mon.Bringup()
	if !detached {
		d.ReportFailed(code)
	}
	return code, err
}
