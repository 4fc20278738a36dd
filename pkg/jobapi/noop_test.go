package jobapi

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestNoopPolicy(t *testing.T) {
	t.Parallel()
	n := NewNoop()

	id, err := n.Create(1000)
	if err != nil || id != 0 {
		t.Errorf("Create = (%d, %v), want (0, nil)", id, err)
	}
	if err := n.Attach(42, 7); err != nil {
		t.Errorf("Attach = %v, want nil", err)
	}
	if _, err := n.Container(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Container error = %v, want ErrNotFound", err)
	}
	if !n.HasPID(7, 42) {
		t.Error("HasPID = false, want policy true")
	}
	if err := n.Signal(7, unix.SIGKILL); err != nil {
		t.Errorf("Signal = %v, want nil", err)
	}
	if err := n.Wait(7); err != nil {
		t.Errorf("Wait = %v, want nil", err)
	}
	cnt, err := n.Count(7)
	if err != nil || cnt != 0 {
		t.Errorf("Count = (%d, %v), want (0, nil)", cnt, err)
	}
	pids, err := n.List(7, 10)
	if err != nil || len(pids) != 0 {
		t.Errorf("List = (%v, %v), want empty", pids, err)
	}
	if n.BindsCreator() {
		t.Error("BindsCreator = true, want false")
	}
	if n.Name() != "noop" {
		t.Errorf("Name = %q, want noop", n.Name())
	}
}
