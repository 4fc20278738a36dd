package cgroup2

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path"
	"strconv"
	"strings"
	"syscall"
)

// MountPoint is the systemd default mount point of the unified hierarchy.
const MountPoint = "/sys/fs/cgroup"

const (
	cgroupProcs  = "cgroup.procs"
	cgroupEvents = "cgroup.events"
	cgroupKill   = "cgroup.kill"

	filePerm = 0644
	dirPerm  = 0755
)

// Dir is a handle to one cgroup directory. The zero value is not usable.
type Dir struct {
	path string
}

// New joins parts below no particular root, so the first part is
// usually MountPoint.
func New(parts ...string) Dir {
	return Dir{path: path.Join(parts...)}
}

// Path returns the absolute directory path.
func (d Dir) Path() string {
	return d.path
}

// EventsPath returns the path of the cgroup.events file, for callers
// that want to watch it.
func (d Dir) EventsPath() string {
	return path.Join(d.path, cgroupEvents)
}

// Create makes the directory, including missing parents.
func (d Dir) Create() error {
	return os.MkdirAll(d.path, dirPerm)
}

// CreateChild creates a uniquely named child directory following the
// MkdirTemp pattern convention ("jc*" places the random part after "jc").
func (d Dir) CreateChild(pattern string) (Dir, error) {
	p, err := os.MkdirTemp(d.path, pattern)
	if err != nil {
		return Dir{}, err
	}
	return Dir{path: p}, nil
}

// Children lists the direct child cgroups.
func (d Dir) Children() ([]Dir, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, err
	}
	var children []Dir
	for _, e := range entries {
		if e.IsDir() {
			children = append(children, Dir{path: path.Join(d.path, e.Name())})
		}
	}
	return children, nil
}

// Exists reports whether the directory is present.
func (d Dir) Exists() bool {
	st, err := os.Stat(d.path)
	return err == nil && st.IsDir()
}

// AddProc moves pid into this cgroup.
func (d Dir) AddProc(pid int) error {
	return writeFile(path.Join(d.path, cgroupProcs), []byte(strconv.Itoa(pid)))
}

// Procs reads the member pids.
func (d Dir) Procs() ([]int, error) {
	b, err := readFile(path.Join(d.path, cgroupProcs))
	if err != nil {
		return nil, err
	}
	return parseProcs(b)
}

// Populated reads the populated flag from cgroup.events, which covers
// this cgroup and all of its descendants.
func (d Dir) Populated() (bool, error) {
	b, err := readFile(path.Join(d.path, cgroupEvents))
	if err != nil {
		return false, err
	}
	return parsePopulated(b)
}

// Kill writes cgroup.kill, terminating every member with SIGKILL.
func (d Dir) Kill() error {
	return writeFile(path.Join(d.path, cgroupKill), []byte("1"))
}

// Remove deletes the cgroup directory. The kernel refuses while the
// cgroup is still populated.
func (d Dir) Remove() error {
	return os.Remove(d.path)
}

func parseProcs(b []byte) ([]int, error) {
	var pids []int
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, err
		}
		pids = append(pids, pid)
	}
	return pids, s.Err()
}

func parsePopulated(b []byte) (bool, error) {
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		parts := strings.Fields(s.Text())
		if len(parts) == 2 && parts[0] == "populated" {
			return parts[1] == "1", nil
		}
	}
	if err := s.Err(); err != nil {
		return false, err
	}
	return false, os.ErrNotExist
}

// ProcGroupPath returns the unified hierarchy path of pid relative to the
// mount point (e.g. "/jobtrack/jc123456"), read from procRoot/<pid>/cgroup.
func ProcGroupPath(procRoot string, pid int) (string, error) {
	b, err := readFile(path.Join(procRoot, strconv.Itoa(pid), "cgroup"))
	if err != nil {
		return "", err
	}
	p, ok := parseProcGroup(b)
	if !ok {
		return "", os.ErrNotExist
	}
	return p, nil
}

// parseProcGroup extracts the v2 entry "0::<path>" from a proc cgroup file.
func parseProcGroup(b []byte) (string, bool) {
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		parts := strings.SplitN(s.Text(), ":", 3)
		if len(parts) == 3 && parts[0] == "0" && parts[1] == "" {
			return parts[2], true
		}
	}
	return "", false
}

// readFile handles potential EINTR errors while reading the slow
// device (cgroupfs).
func readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	for err != nil && errors.Is(err, syscall.EINTR) {
		data, err = os.ReadFile(p)
	}
	return data, err
}

// writeFile handles potential EINTR errors while writing to the slow
// device (cgroupfs).
func writeFile(p string, content []byte) error {
	err := os.WriteFile(p, content, filePerm)
	for err != nil && errors.Is(err, syscall.EINTR) {
		err = os.WriteFile(p, content, filePerm)
	}
	return err
}
