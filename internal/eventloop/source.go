package eventloop

// OnReady handles one readiness notification for a source's fd. sandboxPID
// is threaded through for handlers that need to compare against it (the
// signal source's SIGCHLD reaper). Returning eventloop.Discard removes the
// source from the aggregator; any other code is classified by the loop
// per spec.md §4.D.
type OnReady func(sandboxPID int) Code

// OnExit runs once during Drain, in registration order. Errors are logged
// by the caller, not returned up through Drain (spec.md §7 kind 5).
type OnExit func() error

// Source is a named unit of work attached to the loop (spec.md §3). FD of
// -1 marks a cleanup-only hook: it is never added to the aggregator, but
// still receives its OnExit call during Drain.
type Source struct {
	Name    string
	FD      int
	OnReady OnReady
	OnExit  OnExit
}

func (s *Source) pollable() bool { return s.FD >= 0 && s.OnReady != nil }
