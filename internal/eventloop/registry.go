package eventloop

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Registry owns the insertion-ordered source list and the epoll set that
// backs the single readiness wait (spec.md §3, §4.C). Sources hold no
// reference back to the registry — ownership is one-directional, per
// spec.md §9's "no cycles" note.
type Registry struct {
	epfd    int
	byName  map[string]*Source
	byFD    map[int]*Source
	ordered []*Source
}

// NewRegistry creates the epoll set backing the registry.
func NewRegistry() (*Registry, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "eventloop: create epoll set")
	}
	return &Registry{
		epfd:   epfd,
		byName: make(map[string]*Source),
		byFD:   make(map[int]*Source),
	}, nil
}

// Register appends src to the insertion-ordered list and, if it carries a
// pollable fd, adds it to the epoll set with level-triggered read
// readiness. Duplicate names are rejected (spec.md §3).
func (r *Registry) Register(src *Source) error {
	if _, exists := r.byName[src.Name]; exists {
		return errors.Errorf("eventloop: duplicate source name %q", src.Name)
	}
	if src.pollable() {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(src.FD)}
		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, src.FD, &ev); err != nil {
			return errors.Wrapf(err, "eventloop: register fd for %q", src.Name)
		}
		r.byFD[src.FD] = src
	}
	r.byName[src.Name] = src
	r.ordered = append(r.ordered, src)
	return nil
}

// unregisterFD removes a pollable source from the epoll set, used when
// OnReady returns Discard (spec.md §4.D step 3). The source stays in the
// insertion-ordered list so Drain still calls its OnExit, if any.
func (r *Registry) unregisterFD(fd int) {
	unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(r.byFD, fd)
}

// sourceFor resolves a ready fd back to its owning Source.
func (r *Registry) sourceFor(fd int) (*Source, bool) {
	s, ok := r.byFD[fd]
	return s, ok
}

// Close releases the epoll set. It does not close member sources' fds —
// those are owned by whoever constructed the Source.
func (r *Registry) Close() error {
	if r.epfd < 0 {
		return nil
	}
	err := unix.Close(r.epfd)
	r.epfd = -1
	return err
}
