package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// stagingDirName holds per-attempt staging directories under the store root.
// Nothing under it is ever served as a committed artifact.
const stagingDirName = ".staging"

// FSStore is a filesystem-backed artifact store. Committed artifacts live at
// <root>/<project>/<stage>/<name>; candidates are written under a unique
// per-attempt staging directory first and become visible only via Promote.
type FSStore struct {
	root string
}

// NewFSStore creates an FSStore rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact: store root is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create store root %s: %w", dir, err)
	}
	return &FSStore{root: dir}, nil
}

// Root returns the store root directory.
func (s *FSStore) Root() string {
	return s.root
}

// Staged is a candidate artifact written to the staging area. It must be
// resolved by exactly one of Promote or Discard.
type Staged struct {
	store      *FSStore
	artifact   Artifact
	attemptDir string
	path       string
}

// Stage writes a candidate artifact to a fresh attempt directory under the
// staging area. The attempt directory name is a UUID, so concurrent attempts
// for different projects never collide.
func (s *FSStore) Stage(a Artifact) (*Staged, error) {
	if err := validateAddress(a.ProjectID, a.Stage, a.Name); err != nil {
		return nil, err
	}

	attemptDir := filepath.Join(s.root, stagingDirName, uuid.NewString())
	if err := os.MkdirAll(attemptDir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create staging dir: %w", err)
	}

	p := filepath.Join(attemptDir, a.Name)
	if err := os.WriteFile(p, []byte(a.Content), 0o644); err != nil {
		os.RemoveAll(attemptDir)
		return nil, fmt.Errorf("artifact: write staged %s: %w", a.Name, err)
	}

	return &Staged{
		store:      s,
		artifact:   a,
		attemptDir: attemptDir,
		path:       p,
	}, nil
}

// Promote moves the staged artifact to its permanent location and returns a
// Ref to it. The rename makes the commit atomic on POSIX filesystems: readers
// observe either the previous committed content or the new one, never a
// partial write.
func (st *Staged) Promote() (Ref, error) {
	dir := filepath.Join(st.store.root, st.artifact.ProjectID, st.artifact.Stage)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Ref{}, fmt.Errorf("artifact: create %s: %w", dir, err)
	}

	dst := filepath.Join(dir, st.artifact.Name)
	if err := os.Rename(st.path, dst); err != nil {
		return Ref{}, fmt.Errorf("artifact: promote %s: %w", st.artifact.Name, err)
	}
	os.RemoveAll(st.attemptDir)

	return Ref{
		Name: st.artifact.Name,
		Kind: st.artifact.Kind,
		Path: dst,
	}, nil
}

// Discard removes the staged artifact without promoting it. Called when
// validation rejects the candidate content.
func (st *Staged) Discard() error {
	if err := os.RemoveAll(st.attemptDir); err != nil {
		return fmt.Errorf("artifact: discard staged %s: %w", st.artifact.Name, err)
	}
	return nil
}

// Read returns the content of a committed artifact.
func (s *FSStore) Read(projectID, stage, name string) (string, error) {
	if err := validateAddress(projectID, stage, name); err != nil {
		return "", err
	}
	p := filepath.Join(s.root, projectID, stage, name)
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("artifact: read %s: %w", p, err)
	}
	return string(data), nil
}

// Exists reports whether a committed artifact is present.
func (s *FSStore) Exists(projectID, stage, name string) bool {
	if err := validateAddress(projectID, stage, name); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.root, projectID, stage, name))
	return err == nil
}

// validateAddress rejects empty or path-escaping address components so a
// crafted project or artifact name cannot reach outside the store root.
func validateAddress(parts ...string) error {
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("artifact: empty address component")
		}
		if p != filepath.Base(p) || strings.HasPrefix(p, ".") {
			return fmt.Errorf("artifact: invalid address component %q", p)
		}
	}
	return nil
}
