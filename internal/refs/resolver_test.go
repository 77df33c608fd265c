package refs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

func TestDetectLongestNameWins(t *testing.T) {
	d := NewDetector([]string{"Spec.md", "Overview-Spec.md"}, nil)

	matches := d.Detect("please check Overview-Spec.md before merging")
	require.Len(t, matches, 1)
	assert.Equal(t, "Overview-Spec.md", matches[0].Name)
	assert.Equal(t, models.RefFile, matches[0].Type)
}

func TestDetectBoundaryRules(t *testing.T) {
	d := NewDetector([]string{"Spec.md"}, nil)

	// Flanked by identifier bytes: part of a longer token, not a mention.
	assert.Empty(t, d.Detect("see Overview-Spec.mdx for details"))
	assert.Empty(t, d.Detect("file MySpec.md exists"))

	// Punctuation and whitespace are acceptable boundaries.
	assert.Len(t, d.Detect("open Spec.md."), 1)
	assert.Len(t, d.Detect("(Spec.md)"), 1)
	assert.Len(t, d.Detect("Spec.md"), 1)
}

func TestDetectTasksAndOrdering(t *testing.T) {
	d := NewDetector([]string{"Plan.md"}, []string{"wire up auth"})

	matches := d.Detect("after wire up auth, update Plan.md")
	require.Len(t, matches, 2)
	assert.Equal(t, models.RefTask, matches[0].Type)
	assert.Equal(t, "wire up auth", matches[0].Name)
	assert.Equal(t, models.RefFile, matches[1].Type)
	assert.True(t, matches[0].Start < matches[1].Start)
}

func TestReferencesDeduplicates(t *testing.T) {
	d := NewDetector([]string{"Plan.md"}, nil)

	refs := d.References("Plan.md then Plan.md again")
	require.Len(t, refs, 1)
	assert.Equal(t, models.Reference{Type: models.RefFile, Name: "Plan.md"}, refs[0])
}

func TestResolveLazily(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	ctx := context.Background()

	project, err := st.CreateProject(ctx, models.Project{Name: "Demo"})
	require.NoError(t, err)
	task, err := st.CreateTask(ctx, models.Task{ProjectID: project.ID, Title: "ship v1"})
	require.NoError(t, err)

	r := NewResolver(st, project.ID)

	got, err := r.Resolve(ctx, models.Reference{Type: models.RefFile, Name: "Project-Overview.md"})
	require.NoError(t, err)
	require.NotNil(t, got.Artifact)
	assert.Equal(t, "Project-Overview.md", got.Artifact.Name)

	got, err = r.Resolve(ctx, models.Reference{Type: models.RefTask, Name: "ship v1"})
	require.NoError(t, err)
	require.NotNil(t, got.Task)
	assert.Equal(t, task.ID, got.Task.ID)

	// A rename after detection surfaces as not-found at click time.
	newName := "Renamed.md"
	overview, err := st.GetArtifactByName(ctx, project.ID, "Project-Overview.md")
	require.NoError(t, err)
	_, err = st.UpdateArtifact(ctx, overview.ID, store.ArtifactUpdate{Name: &newName})
	require.NoError(t, err)

	_, err = r.Resolve(ctx, models.Reference{Type: models.RefFile, Name: "Project-Overview.md"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDetectorForProject(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	ctx := context.Background()

	project, err := st.CreateProject(ctx, models.Project{Name: "Demo"})
	require.NoError(t, err)

	d, err := DetectorForProject(ctx, st, project.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, d.Detect("start with Project-Overview.md"))
}

func TestAnnotateRewritesMentions(t *testing.T) {
	d := NewDetector([]string{"Spec.md"}, []string{"ship v1"})

	got := d.Annotate("update Spec.md before ship v1 lands")
	assert.Equal(t, "update [[file:Spec.md]] before [[task:ship v1]] lands", got)

	// Text without mentions comes back untouched.
	assert.Equal(t, "nothing to see", d.Annotate("nothing to see"))
}
