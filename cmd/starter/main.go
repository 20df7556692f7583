// Command starter is the privileged launcher/supervisor core for a
// Singularity-style container runtime (spec.md). It recognizes two
// hidden re-exec subcommands in addition to its public CLI surface:
// supervisor.SandboxReexecArg, taken by the freshly exec'd sandbox
// process image, and daemonize.DaemonReexecArg, taken by the G1 role
// of a DAEMON-mode bring-up. Both bypass the urfave/cli app entirely
// since they carry positional re-exec arguments, not a user-facing
// flag surface.
package main

import (
	"fmt"
	"os"

	"github.com/sylabs/starter/internal/daemonize"
	"github.com/sylabs/starter/internal/dispatch"
	"github.com/sylabs/starter/internal/supervisor"
)

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	if len(argv) >= 2 {
		switch argv[1] {
		case supervisor.SandboxReexecArg:
			return runSandboxReexec(argv[2:])
		case daemonize.DaemonReexecArg:
			return runDaemonReexec(argv[2:])
		}
	}

	exitCode := 0
	app := newApp(&exitCode)
	if err := app.Run(argv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}
	return exitCode
}

// runSandboxReexec is the fork substitute's child path (spec.md §4.E
// step 6): argv[0] is the command name, the remainder is its argv, and
// the notify channel's child-side descriptors are inherited at fd 3/4
// via exec.Cmd.ExtraFiles.
func runSandboxReexec(argv []string) int {
	if len(argv) < 1 {
		fmt.Fprintln(os.Stderr, "starter: missing command name for sandbox re-exec")
		return 255
	}
	cmd, ok := dispatch.Lookup(argv[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "starter: unknown command %q\n", argv[0])
		return 255
	}
	return int(supervisor.RunSandboxChild(cmd, argv[1:], 3, 4))
}
