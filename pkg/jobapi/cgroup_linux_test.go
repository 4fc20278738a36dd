package jobapi

import (
	"errors"
	"os"
	"path"
	"strconv"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"
)

// newTestCgroup builds a facility over a scratch hierarchy with a
// scratch proc root.
func newTestCgroup(t *testing.T) (*CgroupFacility, string) {
	t.Helper()
	f, err := openCgroupAt(t.TempDir(), "jobtrack", t.TempDir(), hclog.NewNullLogger())
	if err != nil {
		t.Fatal(err)
	}
	return f, f.procRoot
}

// bindProc writes a proc cgroup entry placing pid at rel.
func bindProc(t *testing.T, procRoot string, pid int, rel string) {
	t.Helper()
	dir := path.Join(procRoot, strconv.Itoa(pid))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path.Join(dir, "cgroup"), []byte("0::"+rel+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func (f *CgroupFacility) mustCreate(t *testing.T) (uint64, string) {
	t.Helper()
	id, err := f.Create(uint32(os.Getuid()))
	if err != nil {
		t.Fatal(err)
	}
	d, err := f.dir(id)
	if err != nil {
		t.Fatal(err)
	}
	return id, "/" + f.prefix + "/" + path.Base(d.Path())
}

func TestCgroupCreateAndLookup(t *testing.T) {
	t.Parallel()
	f, procRoot := newTestCgroup(t)
	id, rel := f.mustCreate(t)
	if id == 0 {
		t.Fatal("Create returned id 0")
	}

	bindProc(t, procRoot, 500, rel)
	got, err := f.Container(500)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Errorf("Container(500) = %#x, want %#x", got, id)
	}
	if !f.HasPID(id, 500) {
		t.Error("HasPID = false, want true")
	}

	bindProc(t, procRoot, 501, "/user.slice/session-1.scope")
	if _, err := f.Container(501); !errors.Is(err, ErrNotFound) {
		t.Errorf("Container outside slice: error = %v, want ErrNotFound", err)
	}
	if _, err := f.Container(502); !errors.Is(err, ErrNotFound) {
		t.Errorf("Container of unknown pid: error = %v, want ErrNotFound", err)
	}
}

func TestCgroupAttach(t *testing.T) {
	t.Parallel()
	f, procRoot := newTestCgroup(t)
	id, _ := f.mustCreate(t)

	bindProc(t, procRoot, 600, "/user.slice/session-1.scope")
	if err := f.Attach(600, id); err != nil {
		t.Fatal(err)
	}
	d, err := f.dir(id)
	if err != nil {
		t.Fatal(err)
	}
	pids, err := d.Procs()
	if err != nil {
		t.Fatal(err)
	}
	if len(pids) != 1 || pids[0] != 600 {
		t.Errorf("container procs = %v, want [600]", pids)
	}
}

func TestCgroupAttachAlreadyBound(t *testing.T) {
	t.Parallel()
	f, procRoot := newTestCgroup(t)
	_, rel1 := f.mustCreate(t)
	id2, _ := f.mustCreate(t)

	bindProc(t, procRoot, 601, rel1)
	err := f.Attach(601, id2)
	if !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("Attach of bound pid: error = %v, want ErrAlreadyBound", err)
	}
}

func TestCgroupDetach(t *testing.T) {
	t.Parallel()
	f, procRoot := newTestCgroup(t)
	id, rel := f.mustCreate(t)

	bindProc(t, procRoot, 700, rel)
	got, err := f.Detach(700)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Errorf("Detach returned %#x, want %#x", got, id)
	}
	parked, err := f.parent.Procs()
	if err != nil {
		t.Fatal(err)
	}
	if len(parked) != 1 || parked[0] != 700 {
		t.Errorf("slice root procs = %v, want [700]", parked)
	}

	if _, err := f.Detach(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Detach of unbound pid: error = %v, want ErrNotFound", err)
	}
}

func TestCgroupSetAppID(t *testing.T) {
	t.Parallel()
	f, procRoot := newTestCgroup(t)
	id, rel := f.mustCreate(t)

	bindProc(t, procRoot, 800, rel)
	err := f.SetAppID(800, 0xdeadbeef)
	if errors.Is(err, unix.EOPNOTSUPP) {
		t.Skipf("filesystem does not support user xattrs: %v", err)
	}
	if err != nil {
		t.Fatal(err)
	}

	d, err := f.dir(id)
	if err != nil {
		t.Fatal(err)
	}
	got, err := d.GetXattr(apidXattr)
	if err != nil {
		t.Fatal(err)
	}
	if want := strconv.FormatUint(0xdeadbeef, 10); string(got) != want {
		t.Errorf("apid xattr = %q, want %q", got, want)
	}
}

func TestCgroupSignalKill(t *testing.T) {
	t.Parallel()
	f, _ := newTestCgroup(t)
	id, _ := f.mustCreate(t)

	if err := f.Signal(id, unix.SIGKILL); err != nil {
		t.Fatal(err)
	}
	d, err := f.dir(id)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path.Join(d.Path(), "cgroup.kill"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "1" {
		t.Errorf("cgroup.kill content = %q, want %q", b, "1")
	}

	if err := f.Signal(0xbad, unix.SIGKILL); !errors.Is(err, ErrGone) {
		t.Errorf("Signal on unknown id: error = %v, want ErrGone", err)
	}
}

func TestCgroupWait(t *testing.T) {
	t.Parallel()
	f, _ := newTestCgroup(t)
	id, _ := f.mustCreate(t)
	d, err := f.dir(id)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(d.EventsPath(), []byte("populated 0\nfrozen 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- f.Wait(id) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return for an empty container")
	}

	if err := f.Wait(0xbad); !errors.Is(err, ErrGone) {
		t.Errorf("Wait on unknown id: error = %v, want ErrGone", err)
	}
}

func TestCgroupWaitBlocksUntilEmpty(t *testing.T) {
	t.Parallel()
	f, _ := newTestCgroup(t)
	id, _ := f.mustCreate(t)
	d, err := f.dir(id)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(d.EventsPath(), []byte("populated 1\nfrozen 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- f.Wait(id) }()

	select {
	case <-done:
		t.Fatal("Wait returned while the container was populated")
	case <-time.After(100 * time.Millisecond):
	}

	if err := os.WriteFile(d.EventsPath(), []byte("populated 0\nfrozen 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Wait did not notice the container emptying")
	}
}

func TestCgroupCountAndList(t *testing.T) {
	t.Parallel()
	f, _ := newTestCgroup(t)
	id, _ := f.mustCreate(t)
	d, err := f.dir(id)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path.Join(d.Path(), "cgroup.procs"), []byte("10\n20\n30\n"), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := f.Count(id)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}

	pids, err := f.List(id, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(pids) != 2 {
		t.Errorf("List capped at 2 returned %v", pids)
	}

	if _, err := f.Count(0xbad); !errors.Is(err, ErrGone) {
		t.Errorf("Count on unknown id: error = %v, want ErrGone", err)
	}
	if _, err := f.List(0xbad, 8); !errors.Is(err, ErrEmptied) {
		t.Errorf("List on unknown id: error = %v, want ErrEmptied", err)
	}
}

func TestCgroupRemove(t *testing.T) {
	t.Parallel()
	f, _ := newTestCgroup(t)
	id, _ := f.mustCreate(t)

	if err := f.Remove(id); err != nil {
		t.Fatal(err)
	}
	if _, err := f.dir(id); !errors.Is(err, ErrGone) {
		t.Errorf("dir after Remove: error = %v, want ErrGone", err)
	}
	// removing twice is fine
	if err := f.Remove(id); err != nil {
		t.Fatal(err)
	}
}
