// Package transaction provides the advisory lock that serializes binary
// installation into a storage directory, across goroutines and processes.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	// LockFileName is the lock file created inside the guarded directory.
	LockFileName = "install.lock"

	// StaleLockThreshold is the age after which a lock whose holder cannot be
	// identified is considered abandoned.
	StaleLockThreshold = 10 * time.Minute

	// DefaultPollInterval is how often Acquire retries a held lock.
	DefaultPollInterval = 100 * time.Millisecond
)

var (
	ErrLockExists = errors.New("install lock exists: another installation may be in progress")
)

// Lock represents a held install lock.
type Lock struct {
	path string
	file *os.File
}

// TryAcquire attempts to take the lock in dir without waiting. It returns
// ErrLockExists when another holder has it. A lock whose recorded process
// has exited is broken and retaken once.
func TryAcquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, LockFileName)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if stale, _ := isLockStale(lockPath); !stale {
			return nil, ErrLockExists
		}
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, ErrLockExists
		}
	}

	lockData := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// Acquire waits until the lock in dir can be taken or ctx is done. A
// non-positive poll uses DefaultPollInterval.
func Acquire(ctx context.Context, dir string, poll time.Duration) (*Lock, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lock, err := TryAcquire(dir)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockExists) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for install lock: %w", ctx.Err())
		case <-time.After(poll):
		}
	}
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release releases the lock. Safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}

	return nil
}

// isLockStale reports whether the holder recorded in lockPath is gone. A live
// holder keeps its lock however long the install takes. Only a lock without a
// readable pid falls back to StaleLockThreshold.
func isLockStale(lockPath string) (bool, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false, err
	}

	if pid, ok := lockPID(string(data)); ok {
		alive, err := process.PidExists(pid)
		if err == nil {
			return !alive, nil
		}
	}

	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > StaleLockThreshold, nil
}

// lockPID extracts the pid= line written by TryAcquire.
func lockPID(data string) (int32, bool) {
	for _, line := range strings.Split(data, "\n") {
		value, found := strings.CutPrefix(strings.TrimSpace(line), "pid=")
		if !found {
			continue
		}
		pid, err := strconv.ParseInt(value, 10, 32)
		if err != nil || pid <= 0 {
			return 0, false
		}
		return int32(pid), true
	}
	return 0, false
}
