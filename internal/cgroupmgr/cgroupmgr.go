// Package cgroupmgr is the cgroup collaborator referenced, but not
// specified, by spec.md's SET_CGROUP handshake (spec.md §4.H, §9 Open
// Question). It wraps github.com/opencontainers/cgroups so the
// instance.start command handler can build a real manager before the
// supervisor's event loop starts, and the loop's teardown can delete it
// without the wire-level handshake itself carrying any payload.
package cgroupmgr

import (
	"github.com/opencontainers/cgroups"
	"github.com/opencontainers/cgroups/fs2"
	"github.com/pkg/errors"
)

// Manager owns a single sandbox's cgroup for its lifetime.
type Manager struct {
	inner cgroups.Manager
	path  string
}

// New constructs a unified-hierarchy (cgroup v2) manager rooted at path,
// with the given resource limits. path is typically derived from the
// sandbox pid once it is known (after fork, before the sandbox runs any
// user code).
func New(path string, resources *cgroups.Resources) (*Manager, error) {
	cg := &cgroups.Cgroup{
		Path:      path,
		Resources: resources,
	}
	inner, err := fs2.NewManager(cg, path)
	if err != nil {
		return nil, errors.Wrap(err, "cgroupmgr: create manager")
	}
	return &Manager{inner: inner, path: path}, nil
}

// Apply moves pid into the managed cgroup.
func (m *Manager) Apply(pid int) error {
	if err := m.inner.Apply(pid); err != nil {
		return errors.Wrapf(err, "cgroupmgr: apply pid %d to %s", pid, m.path)
	}
	return nil
}

// Delete tears down the cgroup. Registered as the `cgroup-cleanup`
// exit-only eventloop.Source per SPEC_FULL.md §4.H; failures here are
// warnings, matching spec.md §7 kind 5.
func (m *Manager) Delete() error {
	if m == nil {
		return nil
	}
	if err := m.inner.Destroy(); err != nil {
		return errors.Wrapf(err, "cgroupmgr: destroy %s", m.path)
	}
	return nil
}
