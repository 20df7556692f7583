package sigsource

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Kind classifies what a signal event means to the event loop, ahead of
// eventloop.Code tagging it with its bit flags.
type Kind int

const (
	KindContinue Kind = iota
	KindExited
	KindSignaled
)

// Outcome is the pre-tagged result of ReadOne.
type Outcome struct {
	Kind    Kind
	Payload int
}

var sizeofSiginfo = int(unsafe.Sizeof(unix.SignalfdSiginfo{}))

// asBytes views a SignalfdSiginfo as the raw byte buffer the signalfd read
// syscall expects, matching the kernel's struct layout verbatim (spec.md
// §6 "Signal records follow the kernel's signalfd layout verbatim").
func asBytes(info *unix.SignalfdSiginfo) []byte {
	return (*[1 << 20]byte)(unsafe.Pointer(info))[:sizeofSiginfo:sizeofSiginfo]
}
