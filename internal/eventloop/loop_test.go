package eventloop

import (
	"os"
	"testing"
	"time"
)

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func pipeSource(t *testing.T, name string, onReady OnReady) (*Source, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return &Source{Name: name, FD: int(r.Fd()), OnReady: onReady}, w
}

func Test_Registry_DuplicateNameRejected(t *testing.T) {
	reg := mustRegistry(t)
	src, w := pipeSource(t, "dup", func(int) Code { return Continue })
	defer w.Close()
	if err := reg.Register(src); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	dup := &Source{Name: "dup", FD: -1}
	if err := reg.Register(dup); err == nil {
		t.Fatal("duplicate name Register = nil error; want failure")
	}
}

func Test_Loop_TerminatesOnExited(t *testing.T) {
	reg := mustRegistry(t)
	src, w := pipeSource(t, "exit-me", func(int) Code { return Exited(42) })
	defer w.Close()
	if err := reg.Register(src); err != nil {
		t.Fatalf("Register: %v", err)
	}
	w.Write([]byte{1})

	loop := NewLoop(reg, -1)
	code, err := loop.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !code.IsExited() || code.Payload() != 42 {
		t.Fatalf("Run() = %#x; want Exited(42)", code)
	}
}

func Test_Loop_NotifiedDoesNotTerminate(t *testing.T) {
	reg := mustRegistry(t)
	rPipe, wPipe, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer rPipe.Close()
	defer wPipe.Close()

	calls := 0
	src := &Source{
		Name: "notify-then-exit",
		FD:   int(rPipe.Fd()),
		OnReady: func(int) Code {
			buf := make([]byte, 1)
			rPipe.Read(buf)
			calls++
			if calls == 1 {
				return Notified(3)
			}
			return Exited(0)
		},
	}
	if err := reg.Register(src); err != nil {
		t.Fatalf("Register: %v", err)
	}
	wPipe.Write([]byte{1})
	wPipe.Write([]byte{2})

	loop := NewLoop(reg, -1)
	code, err := loop.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !code.IsExited() {
		t.Fatalf("Run() = %#x; want Exited", code)
	}
	if calls != 2 {
		t.Fatalf("OnReady called %d times; want 2", calls)
	}
}

func Test_Loop_DiscardRemovesSourceThenContinues(t *testing.T) {
	reg := mustRegistry(t)

	aR, aW, _ := os.Pipe()
	defer aR.Close()
	defer aW.Close()
	bR, bW, _ := os.Pipe()
	defer bR.Close()
	defer bW.Close()

	processedA := make(chan struct{}, 1)
	srcA := &Source{
		Name: "a",
		FD:   int(aR.Fd()),
		OnReady: func(int) Code {
			buf := make([]byte, 1)
			aR.Read(buf)
			processedA <- struct{}{}
			return Discard
		},
	}
	srcB := &Source{
		Name: "b",
		FD:   int(bR.Fd()),
		OnReady: func(int) Code {
			buf := make([]byte, 1)
			bR.Read(buf)
			return Exited(9)
		},
	}
	if err := reg.Register(srcA); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	if err := reg.Register(srcB); err != nil {
		t.Fatalf("Register b: %v", err)
	}

	loop := NewLoop(reg, -1)
	resultCh := make(chan Code, 1)
	go func() {
		code, err := loop.Run()
		if err != nil {
			t.Errorf("Run: %v", err)
		}
		resultCh <- code
	}()

	aW.Write([]byte{1})
	select {
	case <-processedA:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for source a to be processed")
	}

	if _, ok := reg.byFD[int(aR.Fd())]; ok {
		t.Fatal("source a still registered in epoll set after Discard")
	}

	bW.Write([]byte{1})
	select {
	case code := <-resultCh:
		if !code.IsExited() || code.Payload() != 9 {
			t.Fatalf("Run() = %#x; want Exited(9)", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loop to terminate")
	}
}

func Test_Loop_DrainRunsExitHooksInRegistrationOrder(t *testing.T) {
	reg := mustRegistry(t)

	var order []string
	record := func(name string) OnExit {
		return func() error {
			order = append(order, name)
			return nil
		}
	}

	exitSrc, w := pipeSource(t, "terminator", func(int) Code { return Exited(0) })
	exitSrc.OnExit = record("terminator")
	defer w.Close()

	first := &Source{Name: "first", FD: -1, OnExit: record("first")}
	second := &Source{Name: "second", FD: -1, OnExit: record("second")}

	if err := reg.Register(first); err != nil {
		t.Fatalf("Register first: %v", err)
	}
	if err := reg.Register(exitSrc); err != nil {
		t.Fatalf("Register exitSrc: %v", err)
	}
	if err := reg.Register(second); err != nil {
		t.Fatalf("Register second: %v", err)
	}

	w.Write([]byte{1})
	loop := NewLoop(reg, -1)
	if _, err := loop.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	loop.Drain()

	want := []string{"first", "terminator", "second"}
	if len(order) != len(want) {
		t.Fatalf("Drain order = %v; want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Drain order = %v; want %v", order, want)
		}
	}
}

func Test_Loop_DrainRunsOnExitOnlyOnce(t *testing.T) {
	reg := mustRegistry(t)
	calls := 0
	src := &Source{Name: "once", FD: -1, OnExit: func() error {
		calls++
		return nil
	}}
	if err := reg.Register(src); err != nil {
		t.Fatalf("Register: %v", err)
	}
	loop := NewLoop(reg, -1)
	loop.Drain()
	if calls != 1 {
		t.Fatalf("OnExit called %d times; want 1", calls)
	}
}
