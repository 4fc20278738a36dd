// Package jobapi abstracts the kernel job container facility: an
// anonymous grouping of processes under an opaque 64-bit id that
// survives daemonization and double forks. Several backends implement
// the same surface, from the dedicated job kernel module down to a
// noop stub for platforms with nothing usable.
package jobapi

import (
	"errors"
	"syscall"

	"github.com/hashicorp/go-hclog"
)

// Errors returned at the facility boundary. Callers branch on these
// with errors.Is; anything else is a hard kernel failure.
var (
	// ErrNotFound reports that a pid is not in any tracked container.
	ErrNotFound = errors.New("jobapi: process not in any container")

	// ErrAlreadyBound reports an attach rejected because the pid is a
	// member of some container already.
	ErrAlreadyBound = errors.New("jobapi: process already in a container")

	// ErrGone reports that the container named by the operation no
	// longer exists.
	ErrGone = errors.New("jobapi: container gone")

	// ErrEmptied reports that the container lost its last member
	// between two calls.
	ErrEmptied = errors.New("jobapi: container emptied")
)

// Facility is one kernel-side implementation of job containers.
type Facility interface {
	// Create makes a new container owned by uid and returns its id.
	// When BindsCreator reports true the container is tied to the
	// calling thread and dies with it unless another process attaches.
	Create(uid uint32) (uint64, error)

	// Attach adds pid to the container. Returns ErrAlreadyBound when
	// the pid is a member of some container already.
	Attach(pid int, id uint64) error

	// Detach removes pid from its current container and returns the
	// id of the container it left.
	Detach(pid int) (uint64, error)

	// SetAppID labels the container holding pid with the application
	// id derived from the job step.
	SetAppID(pid int, apid uint64) error

	// MarkApplication flags pid as application payload, as opposed to
	// infrastructure processes sharing the container.
	MarkApplication(pid int) error

	// Container returns the id of the container holding pid,
	// ErrNotFound when there is none.
	Container(pid int) (uint64, error)

	// HasPID reports whether pid is a member of container id.
	HasPID(id uint64, pid int) bool

	// Signal delivers sig to every member of the container. Returns
	// ErrGone when the container no longer exists.
	Signal(id uint64, sig syscall.Signal) error

	// Wait blocks until the container has no members left. Returns
	// ErrGone when the container does not exist.
	Wait(id uint64) error

	// Count returns the number of member processes.
	Count(id uint64) (int, error)

	// List returns up to max member pids. Returns ErrEmptied when the
	// container emptied since the preceding Count.
	List(id uint64, max int) ([]int, error)

	// Remove releases facility-side bookkeeping for an empty
	// container. Backends whose containers die with their last member
	// treat this as a no-op.
	Remove(id uint64) error

	// BindsCreator reports whether Create binds the new container to
	// the calling thread.
	BindsCreator() bool

	// Name identifies the backend in logs.
	Name() string
}

// Backend names accepted by Builder.
const (
	BackendAuto   = "auto"
	BackendJobdev = "jobdev"
	BackendCgroup = "cgroup"
	BackendNoop   = "noop"
)

const (
	defaultDevice   = "/dev/job"
	defaultPrefix   = "jobtrack"
	defaultProcRoot = "/proc"
)

// Builder selects and configures a Facility.
type Builder struct {
	// Backend picks an implementation explicitly. BackendAuto or
	// empty probes jobdev, then cgroup, then degrades to noop.
	Backend string

	// Device is the job device node. Defaults to /dev/job.
	Device string

	// Prefix is the slice under the cgroup mount holding job
	// containers. Defaults to "jobtrack".
	Prefix string

	// ProcRoot overrides /proc, for tests.
	ProcRoot string

	Logger hclog.Logger
}

func (b Builder) withDefaults() Builder {
	if b.Backend == "" {
		b.Backend = BackendAuto
	}
	if b.Device == "" {
		b.Device = defaultDevice
	}
	if b.Prefix == "" {
		b.Prefix = defaultPrefix
	}
	if b.ProcRoot == "" {
		b.ProcRoot = defaultProcRoot
	}
	if b.Logger == nil {
		b.Logger = hclog.Default()
	}
	return b
}

// Detect returns the best facility the host offers. It never fails;
// hosts without any kernel facility get the noop backend.
func Detect(log hclog.Logger) Facility {
	f, _ := Builder{Logger: log}.Build()
	return f
}
