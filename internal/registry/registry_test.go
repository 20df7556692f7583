package registry

import "testing"

func Test_New_ReadsPrefixedEnv(t *testing.T) {
	t.Setenv("SINGULARITY_COMMAND", "exec")
	t.Setenv("SINGULARITY_PIDNS_ENABLED", "1")
	t.Setenv("UNRELATED", "ignored")

	r := New()

	if v, ok := r.Get("COMMAND"); !ok || v != "exec" {
		t.Fatalf("Get(COMMAND) = %q, %v; want exec, true", v, ok)
	}
	if !r.GetBool("PIDNS_ENABLED") {
		t.Fatalf("GetBool(PIDNS_ENABLED) = false; want true")
	}
	if _, ok := r.Get("UNRELATED"); ok {
		t.Fatalf("Get(UNRELATED) unexpectedly present")
	}
}

func Test_GetBool_AbsentIsFalse(t *testing.T) {
	r := New()
	if r.GetBool("NOPE") {
		t.Fatalf("GetBool on absent key = true; want false")
	}
}

func Test_Set_OverridesAndCreates(t *testing.T) {
	r := &Registry{}
	r.Set("COMMAND", "run")
	if v := r.MustGet("COMMAND"); v != "run" {
		t.Fatalf("MustGet(COMMAND) = %q; want run", v)
	}
}
