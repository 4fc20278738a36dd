package jobapi

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"strconv"
	"syscall"
	"unsafe"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"
)

// Argument blocks for the job device ioctls. Layouts match the job
// kernel module's uapi header; every block is 8-byte aligned.
type jobCreate struct {
	jid     uint64 // 0 asks the kernel to pick; result written back
	uid     uint32
	options uint32
}

type jobPid struct {
	jid uint64 // written back by detach and getjid
	pid int32
	_   int32
}

type jobApid struct {
	apid uint64
	pid  int32
	_    int32
}

type jobSignal struct {
	jid uint64
	sig int32
	_   int32
}

type jobWait struct {
	jid     uint64
	status  int32
	options int32
}

type jobCount struct {
	jid   uint64
	count int32 // written back
	_     int32
}

type jobList struct {
	jid   uint64
	buf   uint64 // pointer to an int32 pid buffer
	size  uint32 // buffer capacity in entries
	count uint32 // written back
}

const jobMagic = 'j'

// iowr encodes an _IOWR request number for the job device.
func iowr(nr, size uintptr) uintptr {
	const (
		iocWrite = 1
		iocRead  = 2
	)
	return (iocRead|iocWrite)<<30 | size<<16 | jobMagic<<8 | nr
}

var (
	jobIocCreate  = iowr(0x01, unsafe.Sizeof(jobCreate{}))
	jobIocAttach  = iowr(0x02, unsafe.Sizeof(jobPid{}))
	jobIocDetach  = iowr(0x03, unsafe.Sizeof(jobPid{}))
	jobIocSetApid = iowr(0x04, unsafe.Sizeof(jobApid{}))
	jobIocGetJid  = iowr(0x05, unsafe.Sizeof(jobPid{}))
	jobIocSignal  = iowr(0x06, unsafe.Sizeof(jobSignal{}))
	jobIocWait    = iowr(0x07, unsafe.Sizeof(jobWait{}))
	jobIocCount   = iowr(0x08, unsafe.Sizeof(jobCount{}))
	jobIocList    = iowr(0x09, unsafe.Sizeof(jobList{}))
)

// Device drives the job kernel module through ioctls on its device
// node. Containers die with their last member task, so a freshly
// created one lives only as long as the creating thread.
type Device struct {
	f        *os.File
	procRoot string
	log      hclog.Logger
}

var _ Facility = &Device{}

// OpenDevice opens the job device node. Fails when the module is not
// loaded or the node is absent.
func OpenDevice(device, procRoot string, log hclog.Logger) (*Device, error) {
	if device == "" {
		device = defaultDevice
	}
	if procRoot == "" {
		procRoot = defaultProcRoot
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("jobapi: open job device: %w", err)
	}
	d := &Device{f: f, procRoot: procRoot, log: log.Named("jobdev")}
	d.log.Debug("job device opened", "device", device)
	return d, nil
}

// Close releases the device node.
func (d *Device) Close() error {
	return d.f.Close()
}

func (d *Device) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Create asks the kernel for a fresh container owned by uid. The
// container is bound to the calling thread: callers must keep that
// thread alive (and locked, under the Go runtime) until a real member
// attaches.
func (d *Device) Create(uid uint32) (uint64, error) {
	a := jobCreate{uid: uid}
	if err := d.ioctl(jobIocCreate, unsafe.Pointer(&a)); err != nil {
		return 0, fmt.Errorf("jobapi: create container: %w", err)
	}
	d.log.Trace("container created", "id", a.jid, "uid", uid)
	return a.jid, nil
}

func (d *Device) Attach(pid int, id uint64) error {
	a := jobPid{jid: id, pid: int32(pid)}
	err := d.ioctl(jobIocAttach, unsafe.Pointer(&a))
	switch err {
	case nil:
		return nil
	case unix.EINVAL:
		// the module rejects attach for a task that is in a container
		return fmt.Errorf("jobapi: attach pid %d to %#x: %w", pid, id, ErrAlreadyBound)
	default:
		return fmt.Errorf("jobapi: attach pid %d to %#x: %w", pid, id, err)
	}
}

func (d *Device) Detach(pid int) (uint64, error) {
	a := jobPid{pid: int32(pid)}
	if err := d.ioctl(jobIocDetach, unsafe.Pointer(&a)); err != nil {
		return 0, fmt.Errorf("jobapi: detach pid %d: %w", pid, err)
	}
	return a.jid, nil
}

func (d *Device) SetAppID(pid int, apid uint64) error {
	a := jobApid{apid: apid, pid: int32(pid)}
	if err := d.ioctl(jobIocSetApid, unsafe.Pointer(&a)); err != nil {
		return fmt.Errorf("jobapi: set apid for pid %d: %w", pid, err)
	}
	return nil
}

func (d *Device) MarkApplication(pid int) error {
	return markApplication(d.procRoot, pid)
}

// markApplication writes the per-task application marker exposed by
// the job module under proc.
func markApplication(procRoot string, pid int) error {
	p := path.Join(procRoot, strconv.Itoa(pid), "task_is_app")
	f, err := os.OpenFile(p, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("jobapi: open %s: %w", p, err)
	}
	defer f.Close()
	if _, err := f.WriteString("1"); err != nil {
		return fmt.Errorf("jobapi: write %s: %w", p, err)
	}
	return nil
}

func (d *Device) Container(pid int) (uint64, error) {
	a := jobPid{pid: int32(pid)}
	if err := d.ioctl(jobIocGetJid, unsafe.Pointer(&a)); err != nil {
		return 0, fmt.Errorf("jobapi: container of pid %d: %w", pid, ErrNotFound)
	}
	return a.jid, nil
}

func (d *Device) HasPID(id uint64, pid int) bool {
	got, err := d.Container(pid)
	return err == nil && got == id
}

func (d *Device) Signal(id uint64, sig syscall.Signal) error {
	a := jobSignal{jid: id, sig: int32(sig)}
	err := d.ioctl(jobIocSignal, unsafe.Pointer(&a))
	switch err {
	case nil:
		return nil
	case unix.ENODATA, unix.EBADF:
		// container already torn down
		return fmt.Errorf("jobapi: signal container %#x: %w", id, ErrGone)
	default:
		return fmt.Errorf("jobapi: signal container %#x: %w", id, err)
	}
}

// Wait parks the calling task in the kernel until the container loses
// its last member.
func (d *Device) Wait(id uint64) error {
	a := jobWait{jid: id}
	err := d.ioctl(jobIocWait, unsafe.Pointer(&a))
	switch err {
	case nil:
		return nil
	case unix.ENODATA, unix.EBADF:
		return fmt.Errorf("jobapi: wait on container %#x: %w", id, ErrGone)
	default:
		return fmt.Errorf("jobapi: wait on container %#x: %w", id, err)
	}
}

func (d *Device) Count(id uint64) (int, error) {
	a := jobCount{jid: id}
	if err := d.ioctl(jobIocCount, unsafe.Pointer(&a)); err != nil {
		return 0, fmt.Errorf("jobapi: count container %#x: %w", id, err)
	}
	return int(a.count), nil
}

func (d *Device) List(id uint64, max int) ([]int, error) {
	if max <= 0 {
		return nil, nil
	}
	buf := make([]int32, max)
	a := jobList{
		jid:  id,
		buf:  uint64(uintptr(unsafe.Pointer(&buf[0]))),
		size: uint32(max),
	}
	err := d.ioctl(jobIocList, unsafe.Pointer(&a))
	runtime.KeepAlive(buf)
	switch err {
	case nil:
	case unix.ENODATA:
		// lost the race against the last member exiting
		return nil, fmt.Errorf("jobapi: list container %#x: %w", id, ErrEmptied)
	default:
		return nil, fmt.Errorf("jobapi: list container %#x: %w", id, err)
	}
	n := int(a.count)
	if n > len(buf) {
		n = len(buf)
	}
	pids := make([]int, n)
	for i, p := range buf[:n] {
		pids[i] = int(p)
	}
	return pids, nil
}

// Remove is a no-op: the module reaps a container with its last member.
func (d *Device) Remove(id uint64) error {
	return nil
}

// BindsCreator reports true: the module ties a new container to the
// creating task.
func (d *Device) BindsCreator() bool {
	return true
}

func (d *Device) Name() string {
	return "jobdev"
}
