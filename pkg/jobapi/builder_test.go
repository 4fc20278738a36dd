package jobapi

import (
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestBuilderExplicitNoop(t *testing.T) {
	t.Parallel()
	f, err := Builder{Backend: BackendNoop, Logger: hclog.NewNullLogger()}.Build()
	if err != nil {
		t.Fatal(err)
	}
	if f.Name() != "noop" {
		t.Errorf("Name = %q, want noop", f.Name())
	}
}

func TestBuilderUnknownBackend(t *testing.T) {
	t.Parallel()
	if _, err := (Builder{Backend: "acpi", Logger: hclog.NewNullLogger()}).Build(); err == nil {
		t.Error("unknown backend: expected error")
	}
}

func TestDetectNeverFails(t *testing.T) {
	t.Parallel()
	f := Detect(hclog.NewNullLogger())
	if f == nil {
		t.Fatal("Detect returned nil facility")
	}
	t.Logf("detected backend: %s", f.Name())
}
