package proctrack

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"

	"github.com/nodeagent/go-proctrack/pkg/jobapi"
)

// enumerateSlack pads the member list buffer against processes joining
// between the count and the list.
const enumerateSlack = 128

// Builder configures a Tracker.
type Builder struct {
	// Facility is the kernel backend. Detected when nil.
	Facility jobapi.Facility

	// Logger defaults to hclog.Default.
	Logger hclog.Logger

	// Slack pads member enumeration buffers. Defaults to
	// enumerateSlack.
	Slack int
}

// Tracker drives job containers through their lifecycle for the node
// agent. A Tracker serializes container creation; every other
// operation is safe for concurrent use.
type Tracker struct {
	fac   jobapi.Facility
	log   hclog.Logger
	slack int

	// slot holds one token; taking it grants the right to run a
	// creation worker, returning it ends the creation cycle
	slot chan struct{}

	mu     sync.Mutex
	worker *createWorker
}

// Build wires the Tracker.
func (b Builder) Build() *Tracker {
	log := b.Logger
	if log == nil {
		log = hclog.Default()
	}
	log = log.Named("proctrack")
	fac := b.Facility
	if fac == nil {
		fac = jobapi.Detect(log)
	}
	slack := b.Slack
	if slack <= 0 {
		slack = enumerateSlack
	}
	t := &Tracker{
		fac:   fac,
		log:   log,
		slack: slack,
		slot:  make(chan struct{}, 1),
	}
	t.slot <- struct{}{}
	log.Debug("tracker ready", "backend", fac.Name())
	return t
}

// Backend names the facility in use.
func (t *Tracker) Backend() string {
	return t.fac.Name()
}

// Create makes the job container for step and records its id in the
// step. A step that already has a container is logged and left alone.
// On facilities that bind new containers to the creating thread,
// Create parks a worker that holds the container until Add attaches
// the first process; only one such worker runs at a time, and Create
// blocks while a previous cycle is still open.
func (t *Tracker) Create(step *Step) error {
	if step.ContainerID != 0 {
		t.log.Error("create called for a step that has a container",
			"job", step.JobID, "step", step.StepID, "id", fmtID(step.ContainerID))
		return nil
	}

	if step.Forked || !t.fac.BindsCreator() {
		id, err := t.fac.Create(step.UID)
		if err != nil {
			return fmt.Errorf("proctrack: create container for job %d: %v", step.JobID, err)
		}
		step.ContainerID = id
		t.log.Debug("container created", "job", step.JobID, "step", step.StepID, "id", fmtID(id))
		return nil
	}

	select {
	case <-t.slot:
	default:
		t.log.Debug("waiting for previous creation worker to end")
		<-t.slot
	}

	w := newCreateWorker()
	go w.run(t.fac, step.UID)
	res := <-w.created
	if res.err != nil {
		<-w.done
		t.slot <- struct{}{}
		createWorkers.WithLabelValues("error").Inc()
		return fmt.Errorf("proctrack: create container for job %d: %v", step.JobID, res.err)
	}
	w.id = res.id
	t.mu.Lock()
	t.worker = w
	t.mu.Unlock()
	createWorkers.WithLabelValues("ok").Inc()

	step.ContainerID = res.id
	t.log.Debug("container created, worker holding",
		"job", step.JobID, "step", step.StepID, "id", fmtID(res.id))
	return nil
}

// Add attaches pid to the step's container and tags it with the step's
// application id. The creation worker holding the container, if any,
// is released once the pid is attached.
func (t *Tracker) Add(step *Step, pid int) error {
	if !step.Forked {
		done, err := t.attach(step, pid)
		if done || err != nil {
			return err
		}
	}
	t.endWorker(step.ContainerID)
	if err := t.fac.SetAppID(pid, step.AppID()); err != nil {
		return fmt.Errorf("proctrack: set application id for pid %d: %v", pid, err)
	}
	if err := t.fac.MarkApplication(pid); err != nil {
		return fmt.Errorf("proctrack: mark pid %d as application: %v", pid, err)
	}
	return nil
}

// attach binds pid to the step's container, recovering from a pid that
// is already bound somewhere. done reports that the attach was in
// place already and the rest of Add must be skipped.
func (t *Tracker) attach(step *Step, pid int) (done bool, err error) {
	id := step.ContainerID
	err = t.fac.Attach(pid, id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, jobapi.ErrAlreadyBound) {
		return false, fmt.Errorf("proctrack: attach pid %d to container %s: %v", pid, fmtID(id), err)
	}

	owner, lerr := t.fac.Container(pid)
	switch classifyAttach(owner, id, lerr == nil) {
	case attachNoop:
		// duplicate launch message, the pid is where it belongs
		t.log.Debug("pid already attached", "pid", pid, "id", fmtID(id))
		return true, nil
	case attachMove:
		prior, derr := t.fac.Detach(pid)
		if derr != nil {
			return false, fmt.Errorf("proctrack: detach pid %d from container %s: %v", pid, fmtID(owner), derr)
		}
		t.log.Error("pid was attached to a stale container, moving",
			"pid", pid, "from", fmtID(prior), "to", fmtID(id))
		attachMoves.Inc()
		if rerr := t.fac.Attach(pid, id); rerr != nil {
			return false, fmt.Errorf("proctrack: attach pid %d to container %s after move: %v", pid, fmtID(id), rerr)
		}
		return false, nil
	default:
		return false, fmt.Errorf("proctrack: attach pid %d to container %s: rejected but pid is unbound: %v", pid, fmtID(id), err)
	}
}

// Signal delivers sig to every process in the container. A container
// still held open by its creation worker has no processes: SIGKILL
// ends the worker, any other signal is logged and dropped.
func (t *Tracker) Signal(id uint64, sig syscall.Signal) error {
	if t.workerActive(id) {
		if sig == unix.SIGKILL {
			if t.endWorker(id) {
				t.log.Debug("ended creation worker on kill", "id", fmtID(id))
			}
			return nil
		}
		t.log.Error("signal for a container with no processes attached",
			"id", fmtID(id), "signal", unix.SignalName(sig))
		return nil
	}
	if err := t.fac.Signal(id, sig); err != nil {
		if errors.Is(err, jobapi.ErrGone) {
			suppressed("signal")
			t.log.Debug("container gone at signal", "id", fmtID(id))
			return nil
		}
		return fmt.Errorf("proctrack: signal container %s: %v", fmtID(id), err)
	}
	return nil
}

// Destroy reaps the container once its members are gone. It always
// succeeds: a container that is already gone needs no reaping, and the
// agent must not retry teardown forever.
func (t *Tracker) Destroy(id uint64) error {
	if t.workerActive(id) {
		// nothing ever attached; the worker keeps the container until
		// the step is killed or the tracker closes
		t.log.Debug("destroy before first attach", "id", fmtID(id))
		return nil
	}
	if err := t.fac.Wait(id); err != nil {
		suppressed("destroy")
		t.log.Debug("wait during destroy failed, container treated as gone",
			"id", fmtID(id), "error", err)
	}
	if err := t.fac.Remove(id); err != nil {
		suppressed("destroy")
		t.log.Debug("remove during destroy failed", "id", fmtID(id), "error", err)
	}
	return nil
}

// Wait blocks until the container has no members. Unlike Destroy, a
// wait the kernel cannot perform is reported to the caller.
func (t *Tracker) Wait(id uint64) error {
	if t.workerActive(id) {
		return nil
	}
	if err := t.fac.Wait(id); err != nil {
		return fmt.Errorf("proctrack: wait on container %s: %v", fmtID(id), err)
	}
	return nil
}

// Find returns the container holding pid, 0 when there is none.
func (t *Tracker) Find(pid int) uint64 {
	id, err := t.fac.Container(pid)
	if err != nil {
		return 0
	}
	return id
}

// HasMember reports whether pid belongs to container id.
func (t *Tracker) HasMember(id uint64, pid int) bool {
	return t.fac.HasPID(id, pid)
}

// Pids lists the processes in the container. Failures that mean the
// container emptied or vanished yield an empty list, not an error.
func (t *Tracker) Pids(id uint64) ([]int, error) {
	n, err := t.fac.Count(id)
	if err != nil {
		suppressed("pids")
		t.log.Debug("member count failed, container treated as empty",
			"id", fmtID(id), "error", err)
		return nil, nil
	}
	if n <= 0 {
		return nil, nil
	}
	// members can join between the count and the list; the slack
	// absorbs the difference
	pids, err := t.fac.List(id, n+t.slack)
	if err != nil {
		if errors.Is(err, jobapi.ErrEmptied) {
			suppressed("pids")
			t.log.Debug("container emptied during enumeration", "id", fmtID(id))
			return nil, nil
		}
		return nil, fmt.Errorf("proctrack: list container %s: %v", fmtID(id), err)
	}
	return pids, nil
}

// Close releases a creation worker that never saw an attach. Call it
// when the agent shuts down tracking.
func (t *Tracker) Close() error {
	t.mu.Lock()
	w := t.worker
	t.worker = nil
	t.mu.Unlock()
	if w != nil {
		close(w.release)
		<-w.done
		t.slot <- struct{}{}
		t.log.Debug("ended creation worker on close", "id", fmtID(w.id))
	}
	return nil
}

// workerActive reports whether the creation worker for id is parked.
func (t *Tracker) workerActive(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.worker != nil && t.worker.id == id
}

// endWorker releases the creation worker holding id open and waits for
// its thread to exit, freeing the creation slot.
func (t *Tracker) endWorker(id uint64) bool {
	t.mu.Lock()
	w := t.worker
	if w == nil || w.id != id {
		t.mu.Unlock()
		return false
	}
	t.worker = nil
	t.mu.Unlock()
	close(w.release)
	<-w.done
	t.slot <- struct{}{}
	return true
}

func fmtID(id uint64) string {
	return fmt.Sprintf("0x%08x", id)
}
