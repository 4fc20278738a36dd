package jobapi

import "syscall"

// Noop is the facility used when the kernel offers none. Its answers
// are policy, not truth: creation succeeds with a zero id, lookups find
// nothing, and membership tests claim true so callers never block a
// job lifecycle on tracking they cannot have.
type Noop struct{}

var _ Facility = Noop{}

// NewNoop returns the disabled facility.
func NewNoop() Noop {
	return Noop{}
}

func (Noop) Create(uid uint32) (uint64, error)          { return 0, nil }
func (Noop) Attach(pid int, id uint64) error            { return nil }
func (Noop) Detach(pid int) (uint64, error)             { return 0, nil }
func (Noop) SetAppID(pid int, apid uint64) error        { return nil }
func (Noop) MarkApplication(pid int) error              { return nil }
func (Noop) Container(pid int) (uint64, error)          { return 0, ErrNotFound }
func (Noop) HasPID(id uint64, pid int) bool             { return true }
func (Noop) Signal(id uint64, sig syscall.Signal) error { return nil }
func (Noop) Wait(id uint64) error                       { return nil }
func (Noop) Count(id uint64) (int, error)               { return 0, nil }
func (Noop) List(id uint64, max int) ([]int, error)     { return nil, nil }
func (Noop) Remove(id uint64) error                     { return nil }
func (Noop) BindsCreator() bool                         { return false }
func (Noop) Name() string                               { return "noop" }
