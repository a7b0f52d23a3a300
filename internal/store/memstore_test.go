package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/agentforge/internal/artifact"
)

var testStages = []string{"requirements-analysis", "architecture-design", "review"}

func newTestStore(t *testing.T) *MemStore {
	t.Helper()
	m := NewMemStore(testStages)
	require.NoError(t, m.Init(context.Background()))
	return m
}

func TestCreateProject_Idempotent(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	p1, err := m.CreateProject(ctx, "p1", "First")
	require.NoError(t, err)
	require.Equal(t, StatusPending, p1.Status)
	require.Len(t, p1.Stages, len(testStages))

	// A second create with the same id must return the existing project,
	// not error and not reset anything.
	require.NoError(t, m.MarkStageCompleted(ctx, "p1", "requirements-analysis", nil))

	p2, err := m.CreateProject(ctx, "p1", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "First", p2.Name)
	assert.True(t, p2.Stages[0].Completed)
}

func TestCreateProject_EveryStageHasStatusEntry(t *testing.T) {
	m := newTestStore(t)

	p, err := m.CreateProject(context.Background(), "p1", "First")
	require.NoError(t, err)

	require.Len(t, p.Stages, len(testStages))
	for i, id := range testStages {
		assert.Equal(t, id, p.Stages[i].Stage)
		assert.False(t, p.Stages[i].Completed)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	m := newTestStore(t)

	_, err := m.GetProject(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkStageCompleted_RecordsArtifacts(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	_, err := m.CreateProject(ctx, "p1", "First")
	require.NoError(t, err)

	refs := []artifact.Ref{{Name: "requirements-analysis.md", Kind: artifact.KindDesignDocument, Path: "/tmp/x"}}
	require.NoError(t, m.MarkStageCompleted(ctx, "p1", "requirements-analysis", refs))

	ss, err := m.GetStageStatus(ctx, "p1", "requirements-analysis")
	require.NoError(t, err)
	assert.True(t, ss.Completed)
	assert.Empty(t, ss.Error)
	assert.Equal(t, refs, ss.Artifacts)
}

func TestMarkStageFailed_RecordsCause(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	_, err := m.CreateProject(ctx, "p1", "First")
	require.NoError(t, err)

	require.NoError(t, m.MarkStageFailed(ctx, "p1", "architecture-design", "generation timed out"))

	ss, err := m.GetStageStatus(ctx, "p1", "architecture-design")
	require.NoError(t, err)
	assert.False(t, ss.Completed)
	assert.Equal(t, "generation timed out", ss.Error)
}

func TestMarkStage_UnknownStageFailsLoudly(t *testing.T) {
	// An unsequenced stage id must produce an explicit error, never a
	// silent no-op: a no-op is indistinguishable from "nothing ran yet".
	m := newTestStore(t)
	ctx := context.Background()

	_, err := m.CreateProject(ctx, "p1", "First")
	require.NoError(t, err)

	var unknownErr *UnknownStageError

	err = m.MarkStageCompleted(ctx, "p1", "deployment", nil)
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "deployment", unknownErr.Stage)

	err = m.MarkStageFailed(ctx, "p1", "deployment", "boom")
	require.ErrorAs(t, err, &unknownErr)

	_, err = m.GetStageStatus(ctx, "p1", "deployment")
	require.ErrorAs(t, err, &unknownErr)
}

func TestSetProjectStatus(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	_, err := m.CreateProject(ctx, "p1", "First")
	require.NoError(t, err)

	require.NoError(t, m.SetProjectStatus(ctx, "p1", StatusBuilding, 1))

	p, err := m.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusBuilding, p.Status)
	assert.Equal(t, 1, p.CurrentStage)

	assert.ErrorIs(t, m.SetProjectStatus(ctx, "absent", StatusFailed, 0), ErrNotFound)
}

func TestListProjects_CreationOrder(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		_, err := m.CreateProject(ctx, id, id)
		require.NoError(t, err)
	}

	projects, err := m.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "c", projects[0].ID)
	assert.Equal(t, "a", projects[1].ID)
	assert.Equal(t, "b", projects[2].ID)
}

func TestGetProject_ReturnsIndependentCopy(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	_, err := m.CreateProject(ctx, "p1", "First")
	require.NoError(t, err)

	p, err := m.GetProject(ctx, "p1")
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the store.
	p.Stages[0].Completed = true
	p.Status = StatusCompleted

	fresh, err := m.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, fresh.Stages[0].Completed)
	assert.Equal(t, StatusPending, fresh.Status)
}

func TestCheckStageConsistency(t *testing.T) {
	m := newTestStore(t)

	// Matching sets pass.
	require.NoError(t, CheckStageConsistency(m, testStages))

	// A sequenced stage the store does not record is a startup error.
	extra := append(append([]string(nil), testStages...), "deployment")
	err := CheckStageConsistency(m, extra)
	require.Error(t, err)

	// A differently ordered set is also rejected.
	swapped := []string{testStages[1], testStages[0], testStages[2]}
	require.Error(t, CheckStageConsistency(m, swapped))
}
