package jobapi

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"

	"github.com/nodeagent/go-proctrack/pkg/cgroup2"
)

// apidXattr labels a container directory with its application id.
const apidXattr = "user.jobtrack.apid"

// waitPoll bounds the sleep between populated checks when the events
// watch delivers nothing.
const waitPoll = 500 * time.Millisecond

// CgroupFacility implements job containers as leaf directories under a
// dedicated slice of the cgroup v2 hierarchy. The directory inode is
// the container id; directories survive without members, so creation
// needs no holder thread.
type CgroupFacility struct {
	base     string
	parent   cgroup2.Dir
	prefix   string
	procRoot string
	log      hclog.Logger
}

var _ Facility = &CgroupFacility{}

// OpenCgroup prepares the tracking slice under the default cgroup
// mount. Fails when the unified hierarchy is not mounted or the slice
// cannot be created.
func OpenCgroup(prefix, procRoot string, log hclog.Logger) (*CgroupFacility, error) {
	if !cgroup2.Mounted(cgroup2.MountPoint) {
		return nil, fmt.Errorf("jobapi: %s is not a cgroup v2 mount", cgroup2.MountPoint)
	}
	return openCgroupAt(cgroup2.MountPoint, prefix, procRoot, log)
}

func openCgroupAt(base, prefix, procRoot string, log hclog.Logger) (*CgroupFacility, error) {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if procRoot == "" {
		procRoot = defaultProcRoot
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	parent := cgroup2.New(base, prefix)
	if err := parent.Create(); err != nil {
		return nil, fmt.Errorf("jobapi: prepare %s: %w", parent.Path(), err)
	}
	return &CgroupFacility{
		base:     base,
		parent:   parent,
		prefix:   prefix,
		procRoot: procRoot,
		log:      log.Named("cgroup"),
	}, nil
}

// dir resolves a container id to its directory by scanning the slice.
func (f *CgroupFacility) dir(id uint64) (cgroup2.Dir, error) {
	children, err := f.parent.Children()
	if err != nil {
		return cgroup2.Dir{}, fmt.Errorf("jobapi: scan %s: %w", f.parent.Path(), err)
	}
	for _, c := range children {
		cid, err := c.ID()
		if err != nil {
			continue // removed while scanning
		}
		if cid == id {
			return c, nil
		}
	}
	return cgroup2.Dir{}, fmt.Errorf("jobapi: container %#x: %w", id, ErrGone)
}

func (f *CgroupFacility) Create(uid uint32) (uint64, error) {
	d, err := f.parent.CreateChild("jc*")
	if err != nil {
		return 0, fmt.Errorf("jobapi: create container dir: %w", err)
	}
	// hand the directory to the job user so same-uid helpers can move
	// their processes into it
	if err := os.Chown(d.Path(), int(uid), -1); err != nil {
		f.log.Warn("chown container dir", "path", d.Path(), "error", err)
	}
	id, err := d.ID()
	if err != nil {
		return 0, fmt.Errorf("jobapi: stat container dir: %w", err)
	}
	f.log.Trace("container dir created", "path", d.Path(), "id", id)
	return id, nil
}

func (f *CgroupFacility) Attach(pid int, id uint64) error {
	// mirror the kernel module contract: a pid bound elsewhere is
	// rejected, the caller decides whether to move it
	if owner, err := f.Container(pid); err == nil && owner != id {
		return fmt.Errorf("jobapi: attach pid %d to %#x: %w", pid, id, ErrAlreadyBound)
	}
	d, err := f.dir(id)
	if err != nil {
		return err
	}
	if err := d.AddProc(pid); err != nil {
		return fmt.Errorf("jobapi: attach pid %d to %#x: %w", pid, id, err)
	}
	return nil
}

func (f *CgroupFacility) Detach(pid int) (uint64, error) {
	owner, err := f.Container(pid)
	if err != nil {
		return 0, fmt.Errorf("jobapi: detach pid %d: %w", pid, err)
	}
	// parking the pid in the slice root takes it out of any container
	if err := f.parent.AddProc(pid); err != nil {
		return 0, fmt.Errorf("jobapi: detach pid %d: %w", pid, err)
	}
	return owner, nil
}

func (f *CgroupFacility) SetAppID(pid int, apid uint64) error {
	id, err := f.Container(pid)
	if err != nil {
		return fmt.Errorf("jobapi: set apid for pid %d: %w", pid, err)
	}
	d, err := f.dir(id)
	if err != nil {
		return err
	}
	if err := d.SetXattr(apidXattr, []byte(strconv.FormatUint(apid, 10))); err != nil {
		return fmt.Errorf("jobapi: set apid on %s: %w", d.Path(), err)
	}
	return nil
}

// MarkApplication is a kernel-module concept; plain cgroups have
// nothing to tag on the task itself.
func (f *CgroupFacility) MarkApplication(pid int) error {
	return nil
}

func (f *CgroupFacility) Container(pid int) (uint64, error) {
	rel, err := cgroup2.ProcGroupPath(f.procRoot, pid)
	if err != nil {
		return 0, fmt.Errorf("jobapi: container of pid %d: %w", pid, ErrNotFound)
	}
	if !strings.HasPrefix(rel, "/"+f.prefix+"/") {
		return 0, fmt.Errorf("jobapi: pid %d outside tracking slice: %w", pid, ErrNotFound)
	}
	id, err := cgroup2.New(f.base, rel).ID()
	if err != nil {
		return 0, fmt.Errorf("jobapi: container of pid %d: %w", pid, ErrNotFound)
	}
	return id, nil
}

func (f *CgroupFacility) HasPID(id uint64, pid int) bool {
	got, err := f.Container(pid)
	return err == nil && got == id
}

func (f *CgroupFacility) Signal(id uint64, sig syscall.Signal) error {
	d, err := f.dir(id)
	if err != nil {
		return err
	}
	if sig == unix.SIGKILL {
		if err := d.Kill(); err != nil {
			return fmt.Errorf("jobapi: kill container %#x: %w", id, err)
		}
		return nil
	}
	pids, err := d.Procs()
	if err != nil {
		return fmt.Errorf("jobapi: signal container %#x: %w", id, err)
	}
	for _, pid := range pids {
		if err := unix.Kill(pid, sig); err != nil && err != unix.ESRCH {
			return fmt.Errorf("jobapi: signal pid %d in %#x: %w", pid, id, err)
		}
	}
	return nil
}

// Wait blocks until the container has no members, watching the
// populated flag in cgroup.events and falling back to polling when the
// watch cannot be established.
func (f *CgroupFacility) Wait(id uint64) error {
	d, err := f.dir(id)
	if err != nil {
		return err
	}
	w, werr := fsnotify.NewWatcher()
	watching := false
	if werr == nil {
		defer w.Close()
		if aerr := w.Add(d.EventsPath()); aerr == nil {
			watching = true
		} else {
			werr = aerr
		}
	}
	if !watching {
		f.log.Debug("events watch unavailable, polling", "id", id, "error", werr)
	}
	for {
		populated, err := d.Populated()
		if err != nil {
			// directory went away, nothing left to wait for
			return nil
		}
		if !populated {
			return nil
		}
		if watching {
			select {
			case <-w.Events:
			case <-w.Errors:
			case <-time.After(waitPoll):
			}
		} else {
			time.Sleep(waitPoll)
		}
	}
}

func (f *CgroupFacility) Count(id uint64) (int, error) {
	d, err := f.dir(id)
	if err != nil {
		return 0, err
	}
	pids, err := d.Procs()
	if err != nil {
		return 0, fmt.Errorf("jobapi: count container %#x: %w", id, err)
	}
	return len(pids), nil
}

func (f *CgroupFacility) List(id uint64, max int) ([]int, error) {
	d, err := f.dir(id)
	if err != nil {
		return nil, fmt.Errorf("jobapi: list container %#x: %w", id, ErrEmptied)
	}
	pids, err := d.Procs()
	if err != nil {
		return nil, fmt.Errorf("jobapi: list container %#x: %w", id, ErrEmptied)
	}
	if len(pids) > max {
		pids = pids[:max]
	}
	return pids, nil
}

// Remove prunes the container directory once it is empty.
func (f *CgroupFacility) Remove(id uint64) error {
	d, err := f.dir(id)
	if err != nil {
		return nil // already gone
	}
	if err := d.Remove(); err != nil {
		return fmt.Errorf("jobapi: remove container %#x: %w", id, err)
	}
	return nil
}

// BindsCreator reports false: directories survive without members.
func (f *CgroupFacility) BindsCreator() bool {
	return false
}

func (f *CgroupFacility) Name() string {
	return "cgroup"
}
