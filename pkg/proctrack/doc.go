// Package proctrack groups every process of a job step under one
// kernel job container, an anonymous process set named by an opaque
// 64-bit id. Containers follow processes through daemonization and
// double forks, which is what makes them usable for cleanup and
// accounting where process trees and sessions fall apart.
//
// # Creation protocol
//
// The kernel facility binds a fresh container to the creating thread,
// and a container cannot exist without members. Create therefore runs
// a worker goroutine that locks its OS thread, creates the container
// and parks, keeping the container alive through its own thread
// membership. Add attaches the first real process and then releases
// the worker; the worker returns without unlocking, the runtime
// terminates the OS thread, and the kernel drops the thread from the
// container. From that point only job processes keep it alive.
//
// A Tracker runs at most one creation worker; a second Create blocks
// until the previous cycle ends. Containers whose step is killed
// before anything attached are cleaned up by Signal with SIGKILL, or
// by Close on agent shutdown.
//
// # Backends
//
// The facility itself is pluggable, see pkg/jobapi. Hosts without any
// kernel support degrade to a noop backend whose answers keep job
// lifecycles moving without tracking anything.
package proctrack
