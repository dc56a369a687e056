package pidlock

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	// ErrAlreadyLocked indicates another open file description holds the lock.
	ErrAlreadyLocked = errors.New("pid file is locked by another process")
	// ErrCorruptPID indicates the pid file does not contain a pid that may be signalled.
	ErrCorruptPID = errors.New("pid file does not contain a valid pid")
)

// File is an opened, not yet locked, pid file.
type File struct {
	path string
	file *os.File
}

// OpenOrCreate opens path for reading and writing, creating it when absent.
// Existing content is left untouched so a rejected start never clobbers the
// running daemon's pid.
func OpenOrCreate(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pid file %s: %w", path, err)
	}
	return &File{path: path, file: f}, nil
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// TryAcquire takes the exclusive lock without blocking. The File is consumed:
// on success its descriptor moves into the Guard, on failure it is closed.
func (f *File) TryAcquire() (*Guard, error) {
	if f == nil || f.file == nil {
		return nil, errors.New("pid file is not open")
	}
	file := f.file
	f.file = nil
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyLocked
		}
		return nil, fmt.Errorf("lock pid file %s: %w", f.path, err)
	}
	return &Guard{path: f.path, file: file}, nil
}

// Close releases the descriptor of a File that was never acquired.
func (f *File) Close() error {
	if f == nil || f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// Guard is a held exclusive lock on the pid file.
type Guard struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Adopt wraps a descriptor inherited from the launching process and confirms
// it carries the exclusive lock. Re-locking the same open file description is
// a no-op for the kernel; a description without the lock fails with
// ErrAlreadyLocked while the real holder is alive.
func Adopt(fd uintptr, path string) (*Guard, error) {
	file := os.NewFile(fd, path)
	if file == nil {
		return nil, fmt.Errorf("inherited descriptor %d is invalid", fd)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat inherited pid file: %w", err)
	}
	if !info.Mode().IsRegular() {
		_ = file.Close()
		return nil, fmt.Errorf("inherited descriptor %d is not a regular file", fd)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyLocked
		}
		return nil, fmt.Errorf("confirm pid file lock: %w", err)
	}
	// Inheritance cleared close-on-exec. Without it every program the daemon
	// starts would share the lock and keep it after the daemon dies.
	unix.CloseOnExec(int(file.Fd()))
	return &Guard{path: path, file: file}, nil
}

// Path returns the locked file location.
func (g *Guard) Path() string { return g.path }

// Descriptor exposes the locked file so it can be handed to a child process.
func (g *Guard) Descriptor() *os.File {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.file
}

// Truncate empties the file and rewinds the write offset.
func (g *Guard) Truncate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.file == nil {
		return errGuardClosed
	}
	return g.truncateLocked()
}

func (g *Guard) truncateLocked() error {
	if err := g.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := g.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind pid file: %w", err)
	}
	return nil
}

// WriteText appends text at the current offset.
func (g *Guard) WriteText(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.file == nil {
		return errGuardClosed
	}
	if _, err := g.file.WriteString(text); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// WritePID replaces the file content with pid and flushes it to disk.
func (g *Guard) WritePID(pid int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.file == nil {
		return errGuardClosed
	}
	if err := g.truncateLocked(); err != nil {
		return err
	}
	if _, err := g.file.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := g.file.Sync(); err != nil {
		return fmt.Errorf("sync pid file: %w", err)
	}
	return nil
}

// Leak gives up this process's claim without unlocking. The descriptor is
// closed, so the lock lives on only through descriptors already inherited by
// a child and disappears when the last of them closes.
func (g *Guard) Leak() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.file == nil {
		return nil
	}
	err := g.file.Close()
	g.file = nil
	return err
}

// Release unlocks and closes. It is a no-op after Leak.
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(g.file.Fd()), unix.LOCK_UN)
	closeErr := g.file.Close()
	g.file = nil
	if unlockErr != nil {
		return fmt.Errorf("unlock pid file: %w", unlockErr)
	}
	return closeErr
}

var errGuardClosed = errors.New("pid file guard already released")

// ReadPID reads and validates the pid stored at path. A missing file yields an
// error matching os.ErrNotExist.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, err
		}
		return 0, fmt.Errorf("read pid file %s: %w", path, err)
	}
	return ParsePID(string(data))
}

// ParsePID validates pid file content: a positive decimal integer that fits a
// kernel pid_t, surrounding whitespace allowed, never the caller's own pid.
func ParsePID(content string) (int, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return 0, fmt.Errorf("%w: file is empty", ErrCorruptPID)
	}
	parsed, err := strconv.ParseInt(text, 10, 32)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %s is out of range for a pid", ErrCorruptPID, text)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrCorruptPID, text)
	}
	pid := int(parsed)
	if pid <= 0 {
		return 0, fmt.Errorf("%w: pid must be positive, got %d", ErrCorruptPID, pid)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("%w: pid %d is the current process", ErrCorruptPID, pid)
	}
	return pid, nil
}
