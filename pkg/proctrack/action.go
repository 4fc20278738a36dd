package proctrack

// attachAction is the recovery decision after the kernel rejects an
// attach because the pid is already bound.
type attachAction int

const (
	// attachFail gives up: the attach was rejected but no container
	// claims the pid.
	attachFail attachAction = iota

	// attachNoop treats the attach as already done.
	attachNoop

	// attachMove detaches the pid from a stale container and retries.
	attachMove
)

// classifyAttach decides how to recover from a rejected attach. owner
// is the container currently holding the pid, found is false when no
// container claims it, target is where the caller wants the pid.
func classifyAttach(owner, target uint64, found bool) attachAction {
	switch {
	case !found:
		return attachFail
	case owner == target:
		return attachNoop
	default:
		return attachMove
	}
}
