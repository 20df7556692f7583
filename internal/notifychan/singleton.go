package notifychan

// active is the process-wide notify channel singleton (spec.md §9
// "Global state": the notify channel is effectively process-wide,
// modeled as an explicit singleton with documented init/teardown
// rather than an ad-hoc mutable global). RunSandboxChild sets this
// once, after side-init and before the command handler runs, so that a
// handler running inside the sandboxed child — which has no other
// handle on the channel, since dispatch.Handler's signature carries
// only argv and the namespace mask — can still speak the child->parent
// half of the notify protocol (spec.md §1 item 3, §4.H), e.g. sending
// NOTIFY_DETACH from instance.start (original_source/src/wrapper.c:394,
// util/proc_notify.c:62 model this the same way, as a single global
// proc_notify handle).
var active *Channel

// SetActive installs c as the process-wide notify channel. Called
// exactly once, by RunSandboxChild, before the command handler runs.
func SetActive(c *Channel) { active = c }

// Active returns the process-wide notify channel, or nil if none has
// been installed (e.g. outside a sandboxed child).
func Active() *Channel { return active }
