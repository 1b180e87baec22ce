package meta

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"emperror.dev/errors"
)

// ErrBusy is returned by Lock.TryAcquire when another pk process already
// holds the metadata lock. Per spec.md §4.5 step 1 / §5, a second
// invocation never blocks waiting for the lock — it fails fast.
var ErrBusy = errors.Sentinel("busy: another pancake process holds the metadata lock")

// staleAfter is how long a lock held by a dead pid is tolerated before it
// may be broken by a fresh process. This only matters if a process crashed
// between acquiring the lock and writing its pid, or if pid reuse races
// with the liveness check.
const staleAfter = 2 * time.Second

type lockPayload struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
}

// Lock is the process-exclusive handle on .pancake/lock (spec.md §6/§4.2).
// It is a distinct artifact from stacks.json: acquiring it is what makes an
// Operation Engine invocation exclusive, independent of how the metadata
// file itself happens to be written.
type Lock struct {
	path string
}

func NewLock(pancakeDir string) *Lock {
	return &Lock{path: filepath.Join(pancakeDir, "lock")}
}

// TryAcquire creates the lock file, failing with ErrBusy if another live
// process already holds it. A lock held by a pid that is no longer alive
// (and older than staleAfter) is broken automatically.
func (l *Lock) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create pancake directory")
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			payload := lockPayload{PID: os.Getpid(), StartedAt: time.Now()}
			enc := json.NewEncoder(f)
			werr := enc.Encode(payload)
			_ = f.Close()
			if werr != nil {
				_ = os.Remove(l.path)
				return errors.Wrap(werr, "failed to write lock file")
			}
			return nil
		}
		if !os.IsExist(err) {
			return errors.Wrap(err, "failed to create lock file")
		}
		if l.breakIfStale() {
			continue
		}
		return ErrBusy
	}
	return ErrBusy
}

// breakIfStale removes the lock file if the pid that created it is no
// longer alive and the lock is older than staleAfter. Returns true if it
// removed the lock (caller should retry TryAcquire).
func (l *Lock) breakIfStale() bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	var payload lockPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return false
	}
	if time.Since(payload.StartedAt) < staleAfter {
		return false
	}
	if processAlive(payload.PID) {
		return false
	}
	return os.Remove(l.path) == nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness
	// without actually delivering a signal.
	return proc.Signal(syscall.Signal(0)) == nil
}

// Release removes the lock file. Safe to call even if the file is already
// gone.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to release lock file")
	}
	return nil
}
