// Package netsetup invokes the out-of-process network helper described in
// spec.md §6, and does a best-effort in-process sanity check of the
// resulting link with github.com/vishvananda/netlink before reporting
// success back through the notify handshake.
package netsetup

import (
	"os"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"

	"github.com/sylabs/starter/internal/starterlog"
)

// Command selects ADD or DEL for SINGULARITY_NETNS_COMMAND.
type Command string

const (
	Add Command = "ADD"
	Del Command = "DEL"
)

// Config carries the environment the helper script expects (spec.md §6).
type Config struct {
	HelperPath string
	NetnsType  string
	Command    Command
	PID        int
	PPID       int
	ConfDir    string
	Conf       string
	CNIPath    string
	IfName     string
}

// Setup shells out to the network helper and, on ADD, does a best-effort
// check that IfName exists before returning success — a defensive
// sanity check the original shell-script contract has no way to express,
// not a substitute for the helper's own exit status.
func Setup(cfg Config) error {
	if err := runHelper(cfg); err != nil {
		return err
	}
	if cfg.Command != Add || cfg.IfName == "" {
		return nil
	}
	if _, err := netlink.LinkByName(cfg.IfName); err != nil {
		starterlog.G().WithField("interface", cfg.IfName).
			WithError(err).Warn("network helper reported success but interface is not visible yet")
	}
	return nil
}

func runHelper(cfg Config) error {
	cmd := exec.Command(cfg.HelperPath)
	cmd.Env = append(os.Environ(),
		"SINGULARITY_NETNS_TYPE="+cfg.NetnsType,
		"SINGULARITY_NETNS_COMMAND="+string(cfg.Command),
		"SINGULARITY_NETNS_PID="+strconv.Itoa(cfg.PID),
		"SINGULARITY_NETNS_PPID="+strconv.Itoa(cfg.PPID),
		"SINGULARITY_NETNS_CONFDIR="+cfg.ConfDir,
		"SINGULARITY_NETNS_CONF="+cfg.Conf,
		"SINGULARITY_NETNS_CNIPATH="+cfg.CNIPath,
		"SINGULARITY_NETNS_IFNAME="+cfg.IfName,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "netsetup: helper failed: %s", out)
	}
	return nil
}

// Cleanup runs the helper with Command=DEL, used as the network-cleanup
// exit-only eventloop.Source registered by the notify handler
// (SPEC_FULL.md §4.H). The original C implementation
// (singularity_network_cleanup) omitted an explicit success return on the
// happy path (spec.md §9); this always returns nil on success.
func Cleanup(cfg Config) error {
	cfg.Command = Del
	return runHelper(cfg)
}
