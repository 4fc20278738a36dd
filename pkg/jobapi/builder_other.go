//go:build !linux

package jobapi

import (
	"fmt"
	"runtime"
)

// Build degrades to the noop facility: no supported kernel facility
// exists off Linux. Explicitly requested kernel backends fail.
func (b Builder) Build() (Facility, error) {
	b = b.withDefaults()
	switch b.Backend {
	case BackendAuto, BackendNoop:
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("jobapi: backend %q not implemented on %s", b.Backend, runtime.GOOS)
	}
}
