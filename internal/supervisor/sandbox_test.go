package supervisor

import (
	"encoding/binary"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/sylabs/starter/internal/dispatch"
	"github.com/sylabs/starter/internal/notifychan"
	"github.com/sylabs/starter/internal/nsmask"
)

func testCommand(handler dispatch.Handler) dispatch.Command {
	return dispatch.Command{
		Name:    "test-cmd",
		Handler: handler,
		CapInit: func() error { return nil },
		NSMask:  nsmask.Mask(0),
	}
}

// sandboxPipes builds the two one-way pipes RunSandboxChild expects,
// returning *duplicated* child-side descriptors (RunSandboxChild's
// notifychan.Channel owns and closes these independently of the test's
// own pipe ends) and the parent-side *os.Files used to drive the
// handshake from the test.
func sandboxPipes(t *testing.T) (writeFD, readFD int, parentRecv, parentSend *os.File) {
	t.Helper()
	// parent -> child
	toChildR, toChildW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	// child -> parent
	toParentR, toParentW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		toChildR.Close()
		toChildW.Close()
		toParentR.Close()
		toParentW.Close()
	})

	dupWriteFD, err := unix.Dup(int(toParentW.Fd()))
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	dupReadFD, err := unix.Dup(int(toChildR.Fd()))
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	return dupWriteFD, dupReadFD, toParentR, toChildW
}

func sendMessage(t *testing.T, f *os.File, m notifychan.Message) {
	t.Helper()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(m))
	if _, err := f.Write(buf[:]); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

func Test_RunSandboxChild_ProtocolViolation_OnParentHangup(t *testing.T) {
	writeFD, readFD, _, parentSend := sandboxPipes(t)
	parentSend.Close() // parent hangs up before ever sending CONTINUE

	called := false
	cmd := testCommand(func(argv []string, nsMask nsmask.Mask) int32 {
		called = true
		return 0
	})

	code := RunSandboxChild(cmd, nil, writeFD, readFD)
	if code != 255 {
		t.Fatalf("code = %d, want 255", code)
	}
	if called {
		t.Fatal("handler must not run without CONTINUE")
	}
}

func Test_RunSandboxChild_ProtocolViolation_OnWrongFirstMessage(t *testing.T) {
	writeFD, readFD, _, parentSend := sandboxPipes(t)
	sendMessage(t, parentSend, notifychan.MsgError)

	cmd := testCommand(func(argv []string, nsMask nsmask.Mask) int32 { return 0 })

	code := RunSandboxChild(cmd, nil, writeFD, readFD)
	if code != 255 {
		t.Fatalf("code = %d, want 255", code)
	}
}

func Test_RunSandboxChild_InvokesHandlerAfterContinue(t *testing.T) {
	writeFD, readFD, _, parentSend := sandboxPipes(t)
	sendMessage(t, parentSend, notifychan.MsgContinue)

	var gotArgv []string
	var gotMask nsmask.Mask
	cmd := testCommand(func(argv []string, nsMask nsmask.Mask) int32 {
		gotArgv = argv
		gotMask = nsMask
		return 42
	})
	cmd.NSMask = nsmask.Mnt | nsmask.IPC

	code := RunSandboxChild(cmd, []string{"a", "b"}, writeFD, readFD)
	if code != 42 {
		t.Fatalf("code = %d, want 42", code)
	}
	if len(gotArgv) != 2 || gotArgv[0] != "a" || gotArgv[1] != "b" {
		t.Fatalf("argv = %v", gotArgv)
	}
	if gotMask != cmd.NSMask {
		t.Fatalf("nsMask = %v, want %v", gotMask, cmd.NSMask)
	}
}

func Test_RunSandboxChild_InstallsActiveChannelForHandler(t *testing.T) {
	writeFD, readFD, parentRecv, parentSend := sandboxPipes(t)
	sendMessage(t, parentSend, notifychan.MsgContinue)

	var sawActive bool
	var sendErr error
	cmd := testCommand(func(argv []string, nsMask nsmask.Mask) int32 {
		ch := notifychan.Active()
		sawActive = ch != nil
		if ch != nil {
			sendErr = ch.Send(notifychan.MsgDetach)
		}
		return 0
	})

	code := RunSandboxChild(cmd, nil, writeFD, readFD)
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !sawActive {
		t.Fatal("notifychan.Active() was nil inside the handler")
	}
	if sendErr != nil {
		t.Fatalf("send detach from handler: %v", sendErr)
	}

	var buf [4]byte
	if _, err := parentRecv.Read(buf[:]); err != nil {
		t.Fatalf("read detach message: %v", err)
	}
	if got := notifychan.Message(binary.LittleEndian.Uint32(buf[:])); got != notifychan.MsgDetach {
		t.Fatalf("message = %v, want MsgDetach", got)
	}
}

func Test_SetParentDeathSignal_Succeeds(t *testing.T) {
	if err := setParentDeathSignal(); err != nil {
		t.Fatalf("setParentDeathSignal: %v", err)
	}
}
