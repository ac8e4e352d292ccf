package kernel

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
)

// sidecarPath returns the advisory-lock sidecar for an OKS file path
// : "…/foo.xml" -> "…/.oks-lock-foo.xml.txt".
func sidecarPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	return filepath.Join(dir, ".oks-lock-"+base+".txt")
}

// FileLock is one file's advisory write lock: an OS file lock on the
// sidecar guards against concurrent writers across processes, while the
// sidecar's text content documents who holds it for humans inspecting a
// stale lock by hand.
type FileLock struct {
	sidecar string
	flock   *flock.Flock
}

// AcquireLock attempts to acquire path's advisory write lock. A sidecar
// left behind by a crashed process is stale by definition (nobody holds the
// OS lock on it), so acquisition simply succeeds and rewrites it. A live
// holder causes ErrFileLocked, wrapping the sidecar's recorded contents.
func AcquireLock(path string) (*FileLock, error) {
	sidecar := sidecarPath(path)
	fl := flock.New(sidecar)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("kernel: lock %s: %w", sidecar, err)
	}
	if !ok {
		contents, _ := os.ReadFile(sidecar)
		return nil, fmt.Errorf("%w: %s", ErrFileLocked, string(contents))
	}

	if err := os.WriteFile(sidecar, []byte(lockContents()), 0o644); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("kernel: write lock sidecar %s: %w", sidecar, err)
	}
	return &FileLock{sidecar: sidecar, flock: fl}, nil
}

// Release unlocks and removes the sidecar. Locking is
// advisory and writer-only: readers never call AcquireLock.
func (l *FileLock) Release() error {
	if l == nil {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("kernel: unlock %s: %w", l.sidecar, err)
	}
	return os.Remove(l.sidecar)
}

// lockContents renders the single-line sidecar format:
// "process <pid> on <hostname> started by <user> at <UTC simple time>".
func lockContents() string {
	host, _ := os.Hostname()
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	return fmt.Sprintf("process %s on %s started by %s at %s",
		strconv.Itoa(os.Getpid()), host, username, time.Now().UTC().Format("20060102T150405"))
}
