package catalog

import (
	"errors"
	"fmt"
	"testing"
)

func TestSessionSudoRestores(t *testing.T) {
	sess := NewSession("alice")
	if sess.Privileged() {
		t.Fatal("new session should not be privileged")
	}

	err := sess.Sudo(func() error {
		if !sess.Privileged() {
			t.Error("session should be privileged inside Sudo")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Sudo() failed: %v", err)
	}
	if sess.Privileged() {
		t.Error("privilege not restored after Sudo")
	}
}

func TestSessionSudoRestoresOnError(t *testing.T) {
	sess := NewSession("alice")
	boom := errors.New("boom")

	if err := sess.Sudo(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Sudo() error = %v, want %v", err, boom)
	}
	if sess.Privileged() {
		t.Error("privilege not restored after failing Sudo")
	}
}

func TestSessionSudoRestoresOnPanic(t *testing.T) {
	sess := NewSession("alice")

	func() {
		defer func() { _ = recover() }()
		_ = sess.Sudo(func() error { panic("boom") })
	}()

	if sess.Privileged() {
		t.Error("privilege not restored after panic")
	}
}

func TestSessionSudoKeepsAdmin(t *testing.T) {
	sess := NewAdminSession("rods")
	_ = sess.Sudo(func() error { return nil })
	if !sess.Privileged() {
		t.Error("admin session lost its privilege after Sudo")
	}
}

func TestSessionErrorStack(t *testing.T) {
	sess := NewSession("alice")
	sess.AddErrorMsg(StatusRuntime, "first")
	sess.AddErrorMsg(StatusSysInternal, "second")

	errs := sess.Errors()
	if len(errs) != 2 {
		t.Fatalf("len(Errors()) = %d, want 2", len(errs))
	}
	if errs[0].Message != "first" || errs[1].Status != StatusSysInternal {
		t.Errorf("unexpected stack: %+v", errs)
	}

	sess.ClearErrors()
	if len(sess.Errors()) != 0 {
		t.Error("ClearErrors() left entries behind")
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"catalog error", ErrPermissionDenied, StatusNoAccessPermission},
		{"wrapped", fmt.Errorf("outer: %w", ErrNotFound), StatusNoRowsFound},
		{"plain", errors.New("plain"), StatusSysInternal},
		{"outermost wins", Errorf(StatusRuntime, ErrNotFound, "propagate"), StatusRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorIsMatchesStatus(t *testing.T) {
	err := Errorf(StatusNoRowsFound, nil, "no record for %s", "/z/a")
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is should match by status")
	}
	if errors.Is(err, ErrExists) {
		t.Error("errors.Is matched a different status")
	}
}
