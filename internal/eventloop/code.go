package eventloop

// Code is the tagged 32-bit result code shared between event sources and
// the loop (spec.md §3). The low 8 bits carry a payload; exactly one of
// bits 8..11 identifies the category.
type Code int32

const (
	flagExited Code = 1 << (8 + iota)
	flagSignaled
	flagNotified
	flagFailed
)

const payloadMask Code = 0xFF

// Exited constructs an EXITED code carrying the given 8-bit payload.
func Exited(payload int) Code { return flagExited | (Code(payload) & payloadMask) }

// Signaled constructs a SIGNALED code carrying the given 8-bit payload.
func Signaled(payload int) Code { return flagSignaled | (Code(payload) & payloadMask) }

// Notified constructs a NOTIFIED code carrying the given 8-bit payload
// (typically a notifychan.Message value).
func Notified(payload int) Code { return flagNotified | (Code(payload) & payloadMask) }

// Failed constructs a FAILED code carrying the given 8-bit payload.
func Failed(payload int) Code { return flagFailed | (Code(payload) & payloadMask) }

// Continue is the zero code: payload zero, no category flag set. The loop
// treats it identically to NOTIFIED(0) — "keep going".
const Continue Code = 0

// Discard is returned by OnReady to signal "remove me from the
// aggregator" (spec.md §4.D step 3). It is negative, which can never
// collide with a flag-tagged code since those are always non-negative.
// Every category accessor reports false for a negative code.
const Discard Code = -1

// IsExited reports whether code is tagged EXITED.
func (c Code) IsExited() bool { return c >= 0 && c&flagExited != 0 }

// IsSignaled reports whether code is tagged SIGNALED.
func (c Code) IsSignaled() bool { return c >= 0 && c&flagSignaled != 0 }

// IsNotified reports whether code is tagged NOTIFIED.
func (c Code) IsNotified() bool { return c >= 0 && c&flagNotified != 0 }

// IsFailed reports whether code is tagged FAILED.
func (c Code) IsFailed() bool { return c >= 0 && c&flagFailed != 0 }

// Payload returns the low 8 bits.
func (c Code) Payload() int { return int(c & payloadMask) }

// Terminal reports whether this code should end the loop (spec.md §4.D
// step 4: EXITED or SIGNALED terminate; NOTIFIED/FAILED/payload-zero do
// not).
func (c Code) Terminal() bool { return c.IsExited() || c.IsSignaled() }
