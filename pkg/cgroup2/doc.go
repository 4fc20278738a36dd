// Package cgroup2 provides thin handles over the unified cgroup v2
// hierarchy. It only covers the pieces job container tracking needs:
// creating and removing leaf directories, moving processes, reading
// membership and the populated flag, and the cgroup.kill interface.
//
// All operations work on plain cgroupfs files. Callers that need the
// hierarchy itself should check Mounted first.
package cgroup2
