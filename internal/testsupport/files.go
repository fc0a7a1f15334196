package testsupport

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// TreeSnapshot maps every regular file under root to its content and
// modification time, for asserting that a run wrote nothing or produced
// identical output.
type TreeSnapshot map[string]FileState

// FileState is one file in a TreeSnapshot.
type FileState struct {
	Content string
	ModNano int64
}

// Snapshot walks root.
func Snapshot(t testing.TB, root string) TreeSnapshot {
	t.Helper()
	out := TreeSnapshot{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = FileState{Content: string(data), ModNano: info.ModTime().UnixNano()}
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot %s: %v", root, err)
	}
	return out
}

// Paths returns the snapshot's relative paths, sorted.
func (s TreeSnapshot) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Contents drops modification times.
func (s TreeSnapshot) Contents() map[string]string {
	out := make(map[string]string, len(s))
	for p, f := range s {
		out[p] = f.Content
	}
	return out
}
