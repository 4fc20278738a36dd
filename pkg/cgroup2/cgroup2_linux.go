package cgroup2

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Mounted reports whether base is mounted as cgroup v2.
func Mounted(base string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(base, &st); err != nil {
		return false
	}
	return st.Type == unix.CGROUP2_SUPER_MAGIC
}

// ID returns the inode number of the cgroup directory. On cgroup v2 the
// inode is the kernel cgroup id, stable for the life of the directory.
func (d Dir) ID() (uint64, error) {
	st, err := os.Stat(d.path)
	if err != nil {
		return 0, err
	}
	sys, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, os.ErrInvalid
	}
	return sys.Ino, nil
}

// SetXattr attaches an extended attribute to the cgroup directory.
// cgroupfs supports user xattrs since Linux 5.8.
func (d Dir) SetXattr(name string, value []byte) error {
	return unix.Setxattr(d.path, name, value, 0)
}

// GetXattr reads an extended attribute from the cgroup directory.
func (d Dir) GetXattr(name string) ([]byte, error) {
	buf := make([]byte, 64)
	n, err := unix.Getxattr(d.path, name, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
