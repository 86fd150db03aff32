package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidArtifactName is returned for artifact names that are empty or
// would escape the sink directory.
var ErrInvalidArtifactName = errors.New("output: invalid artifact name")

// FileSink writes named artifacts as files in one directory.
// It satisfies shader.Sink.
type FileSink struct {
	dir string
}

// NewFileSink returns a sink rooted at dir, creating it if needed. An empty
// dir means the working directory.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create artifact dir: %w", err)
	}
	return &FileSink{dir: filepath.Clean(dir)}, nil
}

// Dir returns the directory artifacts are written to.
func (s *FileSink) Dir() string { return s.dir }

// Path returns the file path an artifact called name is written to.
func (s *FileSink) Path(name string) string { return filepath.Join(s.dir, name) }

// WriteArtifact atomically replaces the file name in the sink directory.
func (s *FileSink) WriteArtifact(name string, data []byte) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidArtifactName, name)
	}
	path := s.Path(name)
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	slogger().Debug("output: artifact written", "path", path, "bytes", len(data))
	return nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it over path. The temporary file is removed on every failure.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output: create dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("output: create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("output: sync %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("output: close %s: %w", path, err)
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("output: chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("output: rename %s: %w", path, err)
	}
	return nil
}
