//go:build unix

// Package shm maps a file-backed shared-memory segment into the process
// and guards it with cross-process file locks. Worker processes of one
// host attach to the same segment file (usually on /dev/shm) and address
// its contents by byte offset only, never by pointer.
package shm

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// InitFunc stamps a freshly created segment. It runs exactly once per
// segment lifetime, in whichever process wins the creation race, while
// the init lock is still held.
type InitFunc func(data []byte) error

// Segment is one process's attachment to a shared-memory region mapped
// with MAP_SHARED.
type Segment struct {
	path    string
	file    *os.File
	data    []byte
	created bool
	guard   *Guard

	closeOnce sync.Once
	closeErr  error
}

// Open creates or attaches to the segment at path.
//
// The create-or-attach decision is serialized by an exclusive flock on a
// sibling "<path>.init" file, so two processes racing to attach first
// cannot both initialize the arena. The winner sizes the file (the fresh
// mapping is zero-filled by the kernel) and runs init on it; every later
// attacher maps the existing file without re-zeroing.
func Open(path string, size int, init InitFunc) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: invalid segment size %d", size)
	}

	initLock, err := os.OpenFile(path+".init", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm: open init lock: %w", err)
	}
	defer initLock.Close()

	if err := flock(int(initLock.Fd()), unix.LOCK_EX); err != nil {
		return nil, fmt.Errorf("shm: acquire init lock: %w", err)
	}
	defer flock(int(initLock.Fd()), unix.LOCK_UN)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm: open segment: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shm: stat segment: %w", err)
	}

	created := info.Size() == 0
	if created {
		if err := file.Truncate(int64(size)); err != nil {
			file.Close()
			return nil, fmt.Errorf("shm: size segment: %w", err)
		}
	} else if info.Size() != int64(size) {
		file.Close()
		return nil, fmt.Errorf("shm: segment %s is %d bytes, want %d", path, info.Size(), size)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shm: map segment: %w", err)
	}

	seg := &Segment{
		path:    path,
		file:    file,
		data:    data,
		created: created,
		guard:   newGuard(int(file.Fd())),
	}

	if created && init != nil {
		if err := init(data); err != nil {
			seg.Close()
			os.Remove(path)
			return nil, fmt.Errorf("shm: initialize segment: %w", err)
		}
	}

	slog.Debug("segment mapped",
		"path", path,
		"size", size,
		"created", created)

	return seg, nil
}

// Data returns the mapped arena. The slice stays valid until Close.
func (s *Segment) Data() []byte { return s.data }

// Guard returns the segment's cross-process reader-writer lock.
func (s *Segment) Guard() *Guard { return s.guard }

// Created reports whether this attachment initialized the segment.
func (s *Segment) Created() bool { return s.created }

// Path returns the segment file path.
func (s *Segment) Path() string { return s.path }

// Close unmaps the segment for this process. The segment file stays
// behind for other attached processes; call Unlink at host shutdown to
// remove it.
func (s *Segment) Close() error {
	s.closeOnce.Do(func() {
		if s.data != nil {
			s.closeErr = unix.Munmap(s.data)
			s.data = nil
		}
		if err := s.file.Close(); s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// Unlink removes the segment and init lock files. Only the host should
// call this, and only at shutdown of the whole process group.
func (s *Segment) Unlink() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shm: unlink segment: %w", err)
	}
	if err := os.Remove(s.path + ".init"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shm: unlink init lock: %w", err)
	}
	return nil
}

// Exists reports whether a segment file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
