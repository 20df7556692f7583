// Package commandset supplies the command handler bodies the dispatcher
// table (internal/dispatch) needs but spec.md §1 explicitly leaves out of
// scope ("only its shape is specified, not the bodies"). These are
// documented stand-ins: enough to exercise the supervisor's integration
// points end-to-end in tests, not a full container runtime.
package commandset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/pkg/errors"

	"github.com/sylabs/starter/internal/notifychan"
	"github.com/sylabs/starter/internal/nsmask"
	"github.com/sylabs/starter/internal/starterlog"
)

const bundleConfigFile = "config.json"

// loadSpec reads an OCI runtime bundle's config.json, the same shape
// runhcs reads into specs.Spec/specs.Process (cmd/runhcs/shim.go,
// cmd/runhcs/container.go).
func loadSpec(bundlePath string) (*specs.Spec, error) {
	data, err := os.ReadFile(filepath.Join(bundlePath, bundleConfigFile))
	if err != nil {
		return nil, errors.Wrap(err, "commandset: read bundle config")
	}
	spec := new(specs.Spec)
	if err := json.Unmarshal(data, spec); err != nil {
		return nil, errors.Wrap(err, "commandset: parse bundle config")
	}
	return spec, nil
}

// Run implements the `run` command: load the bundle spec and exec its
// process argv in place, replacing the sandbox image (spec.md §6 handler
// signature, §4.E step 6 "hand over to the command handler").
func Run(argv []string, nsMask nsmask.Mask) int32 {
	return execBundle(argv, nsMask)
}

// Exec implements the `exec` command identically to Run for this stand-in
// — both ultimately exec an argv inside the already-entered namespaces.
func Exec(argv []string, nsMask nsmask.Mask) int32 {
	return execBundle(argv, nsMask)
}

// Shell implements the `shell` command by exec'ing an interactive shell.
func Shell(argv []string, nsMask nsmask.Mask) int32 {
	shellPath := "/bin/sh"
	if len(argv) > 0 && argv[0] != "" {
		shellPath = argv[0]
	}
	log := starterlog.G().WithField(starterlog.Command, "shell").WithField(starterlog.NSMask, nsMask)
	if err := syscall.Exec(shellPath, []string{shellPath}, os.Environ()); err != nil {
		log.WithError(err).Error("exec shell failed")
		return 255
	}
	return 0 // unreachable on success; syscall.Exec replaces the process image
}

func execBundle(argv []string, nsMask nsmask.Mask) int32 {
	log := starterlog.G().WithField(starterlog.NSMask, nsMask)
	if len(argv) == 0 {
		log.Error("missing bundle path argument")
		return 255
	}
	spec, err := loadSpec(argv[0])
	if err != nil {
		log.WithError(err).Error("load bundle spec failed")
		return 255
	}
	if spec.Process == nil || len(spec.Process.Args) == 0 {
		log.Error("bundle spec has no process.args")
		return 255
	}
	if spec.Process.Cwd != "" {
		if err := os.Chdir(spec.Process.Cwd); err != nil {
			log.WithError(err).Error("chdir to process.cwd failed")
			return 255
		}
	}
	env := os.Environ()
	env = append(env, spec.Process.Env...)
	args := spec.Process.Args
	if err := syscall.Exec(args[0], args, env); err != nil {
		log.WithField("argv0", args[0]).WithError(err).Error("exec process failed")
		return 255
	}
	return 0
}

// Test is a no-op diagnostic handler (`test` command).
func Test(argv []string, nsMask nsmask.Mask) int32 {
	starterlog.G().Info("test command invoked")
	return 0
}

// Help prints a one-line usage message to stdout (`help` command); it does
// not list the commands.
func Help(argv []string, nsMask nsmask.Mask) int32 {
	os.Stdout.WriteString("usage: starter <command> [args...]\n")
	return 0
}

// Apps lists application entry points defined in a SIF image's metadata
// (`apps` command). Out of scope per spec.md §1 (image formats); this
// stand-in logs a not-implemented warning and returns 0.
func Apps(argv []string, nsMask nsmask.Mask) int32 {
	starterlog.G().Warn("apps listing requires image metadata support, not implemented in this core")
	return 0
}

// Inspect prints image metadata (`inspect` command); out of scope per
// spec.md §1.
func Inspect(argv []string, nsMask nsmask.Mask) int32 {
	starterlog.G().Warn("inspect requires image metadata support, not implemented in this core")
	return 0
}

// Check runs a definition-file syntax check (`check` command); out of
// scope per spec.md §1.
func Check(argv []string, nsMask nsmask.Mask) int32 {
	return 0
}

// ImageImport converts an external archive into the native image format
// (`image.import`); out of scope per spec.md §1 (image formats).
func ImageImport(argv []string, nsMask nsmask.Mask) int32 {
	starterlog.G().Error("image import requires the image loader, out of scope for this core")
	return 255
}

// ImageExport is the inverse of ImageImport; same scope note applies.
func ImageExport(argv []string, nsMask nsmask.Mask) int32 {
	starterlog.G().Error("image export requires the image loader, out of scope for this core")
	return 255
}

// InstanceStart implements `instance.start`, the only DAEMON-mode command
// (spec.md §6): send NOTIFY_DETACH through the process-wide notify
// channel singleton to tell the monitor the instance is up (spec.md
// §4.F, S5/S6 — this is what lets the grandparent stop waiting and exit
// 0), then load the bundle and exec it exactly like Run.
// original_source/src/wrapper.c:394 models the same handoff: the
// monitor's event loop treats NOTIFY_DETACH as the bring-up success
// signal, not a return from the handler.
func InstanceStart(argv []string, nsMask nsmask.Mask) int32 {
	log := starterlog.G().WithField(starterlog.Command, "instance.start")
	if ch := notifychan.Active(); ch != nil {
		if err := ch.Send(notifychan.MsgDetach); err != nil {
			log.WithError(err).Error("send detach notification failed")
			return 255
		}
		// The channel's fds would otherwise survive into the exec'd
		// instance process image; they serve no purpose there.
		ch.Close()
	}
	return execBundle(argv, nsMask)
}

// Mount implements the `mount` command; the filesystem mount layer is out
// of scope per spec.md §1, so this stand-in validates arguments only.
func Mount(argv []string, nsMask nsmask.Mask) int32 {
	if len(argv) < 2 {
		starterlog.G().Error("mount requires <image> <mountpoint>")
		return 255
	}
	starterlog.G().Warn("mount requires the filesystem mount layer, not implemented in this core")
	return 0
}
