package daemonize

import (
	"sync/atomic"
	"testing"
)

func Test_Daemon_ReportBooted_ObservedAsSuccess(t *testing.T) {
	efd, err := NewEventFD()
	if err != nil {
		t.Fatalf("NewEventFD: %v", err)
	}
	defer efd.Close()

	d := &Daemon{efd: FromFD(efd.FD())}
	d.ReportBooted()

	var died atomic.Bool
	code, failed := waitForOutcome(efd, &died)
	if failed || code != 0 {
		t.Fatalf("code=%d failed=%v, want success", code, failed)
	}
}

func Test_Daemon_ReportFailed_CarriesExitCode(t *testing.T) {
	efd, err := NewEventFD()
	if err != nil {
		t.Fatalf("NewEventFD: %v", err)
	}
	defer efd.Close()

	d := &Daemon{efd: FromFD(efd.FD())}
	d.ReportFailed(42)

	var died atomic.Bool
	code, failed := waitForOutcome(efd, &died)
	if !failed {
		t.Fatal("expected failure")
	}
	if code != 42 {
		t.Fatalf("code = %d, want 42", code)
	}
}
