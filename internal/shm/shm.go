// Package shm manages the backing shared-memory region for the
// multi-process transport: a file-backed mmap so producer and worker
// processes can map the same bytes, named with a random suffix so
// concurrent VM instances never collide (spec §9's open question).
package shm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Region is one mapped shared-memory region plus the file that backs
// it. Close unmaps the region; Unlink additionally removes the backing
// file.
type Region struct {
	Name string
	Path string
	Data []byte

	file *os.File
}

// Prefix is the well-known name stem; Create appends a random suffix
// to it so multiple VM instances on the same host never collide.
const Prefix = "vpmu_cache_ring_buffer"

// Create allocates a new Region of size bytes under os.TempDir,
// mapped MAP_SHARED so every process that opens the same path and
// maps it observes the same memory.
func Create(size int) (*Region, error) {
	name := fmt.Sprintf("%s_%s", Prefix, uuid.New().String())
	path := filepath.Join(os.TempDir(), name)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create shm region %q: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("size shm region %q: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("mmap shm region %q: %w", path, err)
	}
	return &Region{Name: name, Path: path, Data: data, file: f}, nil
}

// Open maps an existing region by path, for a worker process that
// inherited the path (rather than the fd) across an exec boundary.
func Open(path string, size int) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open shm region %q: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap shm region %q: %w", path, err)
	}
	return &Region{Name: filepath.Base(path), Path: path, Data: data, file: f}, nil
}

// Close unmaps the region and closes the file descriptor without
// removing the backing file (a worker should not unlink what the
// producer still owns).
func (r *Region) Close() error {
	if r == nil {
		return nil
	}
	if err := unix.Munmap(r.Data); err != nil {
		return fmt.Errorf("munmap shm region %q: %w", r.Path, err)
	}
	return r.file.Close()
}

// Unlink closes the region and removes its backing file. Producer-only;
// called on destroy() and by the zombie reaper on a detected producer
// death, so no backing file leaks across runs.
func (r *Region) Unlink() error {
	if r == nil {
		return nil
	}
	if err := r.Close(); err != nil {
		return err
	}
	return os.Remove(r.Path)
}
