package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArtifact() Artifact {
	return Artifact{
		ProjectID: "proj-1",
		Stage:     "architecture-design",
		Name:      "architecture-design.md",
		Kind:      KindDesignDocument,
		Content:   "# Architecture\n\ndetails\n",
	}
}

func TestStage_NotVisibleUntilPromoted(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	a := testArtifact()

	staged, err := s.Stage(a)
	require.NoError(t, err)

	// Staged content exists on disk but is not a committed artifact yet.
	assert.False(t, s.Exists(a.ProjectID, a.Stage, a.Name))
	_, err = s.Read(a.ProjectID, a.Stage, a.Name)
	assert.Error(t, err)

	ref, err := staged.Promote()
	require.NoError(t, err)
	assert.Equal(t, a.Name, ref.Name)
	assert.Equal(t, a.Kind, ref.Kind)

	assert.True(t, s.Exists(a.ProjectID, a.Stage, a.Name))
	content, err := s.Read(a.ProjectID, a.Stage, a.Name)
	require.NoError(t, err)
	assert.Equal(t, a.Content, content)
}

func TestDiscard_LeavesNoTrace(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStore(root)
	require.NoError(t, err)
	a := testArtifact()

	staged, err := s.Stage(a)
	require.NoError(t, err)
	require.NoError(t, staged.Discard())

	assert.False(t, s.Exists(a.ProjectID, a.Stage, a.Name))

	// The per-attempt staging directory is gone too.
	entries, err := os.ReadDir(filepath.Join(root, stagingDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPromote_ReplacesPreviousCommit(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	a := testArtifact()

	first, err := s.Stage(a)
	require.NoError(t, err)
	_, err = first.Promote()
	require.NoError(t, err)

	a.Content = "# Architecture v2\n\nrevised\n"
	second, err := s.Stage(a)
	require.NoError(t, err)
	_, err = second.Promote()
	require.NoError(t, err)

	content, err := s.Read(a.ProjectID, a.Stage, a.Name)
	require.NoError(t, err)
	assert.Equal(t, a.Content, content)
}

func TestStage_ConcurrentAttemptsDoNotCollide(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	a := testArtifact()
	b := testArtifact()
	b.Content = "# Other candidate\n"

	sa, err := s.Stage(a)
	require.NoError(t, err)
	sb, err := s.Stage(b)
	require.NoError(t, err)

	// Discarding one attempt must not disturb the other.
	require.NoError(t, sa.Discard())
	ref, err := sb.Promote()
	require.NoError(t, err)

	content, err := s.Read(a.ProjectID, a.Stage, ref.Name)
	require.NoError(t, err)
	assert.Equal(t, b.Content, content)
}

func TestValidateAddress_RejectsEscapes(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	bad := []Artifact{
		{ProjectID: "", Stage: "s", Name: "n"},
		{ProjectID: "../up", Stage: "s", Name: "n"},
		{ProjectID: "p", Stage: "a/b", Name: "n"},
		{ProjectID: "p", Stage: "s", Name: ".hidden"},
	}
	for _, a := range bad {
		_, err := s.Stage(a)
		assert.Error(t, err, "project=%q stage=%q name=%q", a.ProjectID, a.Stage, a.Name)
	}

	_, err = s.Read("p", "..", "n")
	assert.Error(t, err)
	assert.False(t, s.Exists("p", "s", "../../etc/passwd"))
}
