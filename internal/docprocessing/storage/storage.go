package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// uploadSafeName matches file names the model file API accepts as is.
var uploadSafeName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Workspace is an isolated scratch directory owned by a single request.
// Everything written through it is removed by Close.
type Workspace struct {
	mu     sync.Mutex
	dir    string
	closed bool
}

// NewWorkspace creates a fresh directory under baseDir (the OS temp dir
// when empty).
func NewWorkspace(baseDir string) (*Workspace, error) {
	dir, err := os.MkdirTemp(baseDir, "medocr-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Save writes r to a file named after the base of name and returns its path.
// At most limit bytes are accepted when limit is positive.
func (w *Workspace) Save(name string, r io.Reader, limit int64) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		base = "upload"
	}
	path := filepath.Join(w.dir, base)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", base, err)
	}
	defer f.Close()

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", base, err)
	}
	if limit > 0 && n > limit {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, base, limit)
	}
	return path, nil
}

// Close removes the workspace and everything in it. It is safe to call
// more than once.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return os.RemoveAll(w.dir)
}

// UploadSafeCopy returns a path whose base name only uses characters the
// file API accepts. When path already qualifies it is returned unchanged;
// otherwise a same-format copy is made next to it. The returned cleanup
// must always be called and removes the copy, if any.
func UploadSafeCopy(path string) (string, func(), error) {
	noop := func() {}
	if uploadSafeName.MatchString(filepath.Base(path)) {
		return path, noop, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !uploadSafeName.MatchString(ext) {
		ext = ""
	}
	safe := filepath.Join(filepath.Dir(path), "upload_"+uuid.NewString()+ext)

	if err := copyFile(path, safe); err != nil {
		os.Remove(safe)
		return "", noop, err
	}
	return safe, func() { os.Remove(safe) }, nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("open %s: %w", from, err)
	}
	defer in.Close()

	out, err := os.OpenFile(to, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create upload copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy upload: %w", err)
	}
	return out.Close()
}

// ZeroBytes overwrites a byte slice with zeros so page images do not
// linger in memory after the model call.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
