package proctrack

import (
	"runtime"

	"github.com/nodeagent/go-proctrack/pkg/jobapi"
)

// createResult is the phase one answer of a creation worker.
type createResult struct {
	id  uint64
	err error
}

// createWorker holds a freshly created container open. The kernel
// binds a new container to the creating thread and a container cannot
// exist empty, so the worker parks on its locked OS thread until a
// real member has attached.
type createWorker struct {
	// id is set by the tracker once phase one succeeds and is stable
	// from then on.
	id uint64

	created chan createResult // phase one: container id or error
	release chan struct{}     // closed when the holder may exit
	done    chan struct{}     // closed when the worker has exited
}

func newCreateWorker() *createWorker {
	return &createWorker{
		created: make(chan createResult, 1),
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// run executes the worker protocol and must start on a fresh
// goroutine. The thread lock is never undone: when run returns, the
// OS thread exits and the kernel drops its container membership.
func (w *createWorker) run(fac jobapi.Facility, uid uint32) {
	runtime.LockOSThread()
	defer close(w.done)

	id, err := fac.Create(uid)
	w.created <- createResult{id: id, err: err}
	if err != nil {
		return
	}
	<-w.release
}
