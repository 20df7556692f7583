package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sylabs/starter/internal/appargs"
	"github.com/sylabs/starter/internal/daemonize"
	"github.com/sylabs/starter/internal/dispatch"
	"github.com/sylabs/starter/internal/registry"
	"github.com/sylabs/starter/internal/starterlog"
	"github.com/sylabs/starter/internal/supervisor"
)

const (
	logLevelFlag = "log-level"
	logJSONFlag  = "log-json"
)

// newApp builds the public CLI surface (spec.md §6's command set) on top
// of internal/dispatch's static table, in the teacher's pattern of one
// urfave/cli.Command per dispatcher entry with a shared Before validator.
// exitCode receives the dispatched command's process exit status once
// Action returns nil; a non-nil Action error means the CLI layer itself
// rejected the invocation (bad flags, unknown command) rather than the
// dispatched command running and failing.
func newApp(exitCode *int) *cli.App {
	app := cli.NewApp()
	app.Name = "starter"
	app.Usage = "privileged launcher and supervisor for container sandboxes"
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: logLevelFlag, Value: "warning", Usage: "log level (trace, debug, info, warning, error)"},
		&cli.BoolFlag{Name: logJSONFlag, Usage: "emit structured JSON log lines"},
	}
	app.Before = func(c *cli.Context) error {
		if err := starterlog.Configure(c.String(logLevelFlag), c.Bool(logJSONFlag), os.Stderr); err != nil {
			return appargs.ErrInvalidUsage
		}
		return nil
	}

	for _, name := range dispatch.Names() {
		app.Commands = append(app.Commands, newCommand(name, exitCode))
	}
	return app
}

func newCommand(name string, exitCode *int) *cli.Command {
	cmd, ok := dispatch.Lookup(name)
	if !ok {
		// Unreachable: name came from dispatch.Names() over the same table.
		panic("starter: dispatch table inconsistent for " + name)
	}
	return &cli.Command{
		Name:   name,
		Usage:  fmt.Sprintf("run the %q command", name),
		Before: appargs.Validate(appargs.Rest),
		Action: func(c *cli.Context) error {
			*exitCode = dispatchCommand(cmd, c.Args().Slice())
			return nil
		},
	}
}

// dispatchCommand branches on ForkMode exactly as spec.md §4.G describes:
// NOFORK runs the handler in-process, FORK goes through
// supervisor.Monitor, and DAEMON re-execs through internal/daemonize's G0
// role.
func dispatchCommand(cmd dispatch.Command, argv []string) int {
	reg := registry.New()
	reg.Set("COMMAND", cmd.Name)

	switch cmd.ForkMode {
	case dispatch.NOFORK:
		if err := cmd.CapInit(); err != nil {
			starterlog.G().WithError(err).Error("capability init failed")
			return 255
		}
		return int(cmd.Handler(argv, cmd.NSMask))

	case dispatch.FORK:
		mon := supervisor.New(cmd, argv, reg)
		code, err := mon.Bringup()
		if err != nil {
			starterlog.G().WithError(err).Error("bring-up failed")
		}
		return int(code)

	case dispatch.DAEMON:
		code, err := daemonize.Bringup(append([]string{cmd.Name}, argv...))
		if err != nil {
			starterlog.G().WithError(err).Error("daemon bring-up failed")
		}
		return int(code)

	default:
		return 255
	}
}

// exitCodeOf extracts the process exit status from an error returned by
// app.Run. CLI-layer errors (bad flags, unknown command, usage
// validation failures) are reported as spec.md's generic invalid-usage
// status.
func exitCodeOf(err error) int {
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	return 255
}
