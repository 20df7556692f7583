package sigsource

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func newBlockedSource(t *testing.T, sandboxPID int) *Source {
	t.Helper()
	mask, err := Block()
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	src, err := New(mask, sandboxPID)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

func waitReadable(t *testing.T, fd int) {
	t.Helper()
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := unix.Poll(pfd, 50)
		if err != nil {
			continue
		}
		if n > 0 {
			return
		}
	}
	t.Fatalf("timed out waiting for signalfd readiness")
}

func Test_SpuriousSigchld_FromNonSandboxChild_IsSilent(t *testing.T) {
	cmd := exec.Command("/bin/true")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start helper: %v", err)
	}

	src := newBlockedSource(t, -1) // sandboxPID never matches this helper
	waitReadable(t, src.FD())

	out, err := src.ReadOne()
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if out.Kind != KindContinue {
		t.Fatalf("ReadOne.Kind = %v; want KindContinue", out.Kind)
	}
	cmd.Wait()
}

func Test_SandboxExit_ReportsExitedWithPayload(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 42")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start helper: %v", err)
	}

	src := newBlockedSource(t, cmd.Process.Pid)
	waitReadable(t, src.FD())

	out, err := src.ReadOne()
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if out.Kind != KindExited || out.Payload != 42 {
		t.Fatalf("ReadOne = %+v; want KindExited/42", out)
	}
	cmd.Wait()
}

func Test_SandboxSignaled_ReportsSignaledWith255(t *testing.T) {
	cmd := exec.Command("/bin/sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start helper: %v", err)
	}

	src := newBlockedSource(t, cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	waitReadable(t, src.FD())

	out, err := src.ReadOne()
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if out.Kind != KindSignaled || out.Payload != 255 {
		t.Fatalf("ReadOne = %+v; want KindSignaled/255", out)
	}
	cmd.Wait()
}

func Test_IgnoredChild_ReapedSilently(t *testing.T) {
	cmd := exec.Command("/bin/true")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start helper: %v", err)
	}

	src := newBlockedSource(t, 999999) // not the sandbox
	src.IgnoreNextChild(cmd.Process.Pid)
	waitReadable(t, src.FD())

	out, err := src.ReadOne()
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if out.Kind != KindContinue {
		t.Fatalf("ReadOne.Kind = %v; want KindContinue", out.Kind)
	}
	cmd.Wait()
}
