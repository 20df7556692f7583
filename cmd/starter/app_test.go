package main

import (
	"testing"

	"github.com/sylabs/starter/internal/dispatch"
)

func Test_NewApp_RegistersEveryDispatchCommand(t *testing.T) {
	exitCode := 0
	app := newApp(&exitCode)

	names := make(map[string]bool)
	for _, c := range app.Commands {
		names[c.Name] = true
	}
	for _, want := range dispatch.Names() {
		if !names[want] {
			t.Errorf("command %q missing from CLI app", want)
		}
	}
}

func Test_DispatchCommand_NOFORK_RunsInProcess(t *testing.T) {
	cmd, ok := dispatch.Lookup("test")
	if !ok {
		t.Fatal("dispatch.Lookup(test) not found")
	}
	if code := dispatchCommand(cmd, nil); code != 0 {
		t.Fatalf("dispatchCommand(test) = %d, want 0", code)
	}
}

func Test_RunSandboxReexec_UnknownCommandFails(t *testing.T) {
	if code := runSandboxReexec([]string{"not-a-real-command"}); code != 255 {
		t.Fatalf("runSandboxReexec(unknown) = %d, want 255", code)
	}
}

func Test_RunSandboxReexec_MissingCommandNameFails(t *testing.T) {
	if code := runSandboxReexec(nil); code != 255 {
		t.Fatalf("runSandboxReexec(nil) = %d, want 255", code)
	}
}

func Test_ExitCodeOf_NonExitCoderDefaultsTo255(t *testing.T) {
	if code := exitCodeOf(errNotExitCoder{}); code != 255 {
		t.Fatalf("exitCodeOf(plain error) = %d, want 255", code)
	}
}

type errNotExitCoder struct{}

func (errNotExitCoder) Error() string { return "boom" }
