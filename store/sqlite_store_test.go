package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeproj/forge/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateProjectSeedsTemplates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, models.Project{Name: "Demo"})
	require.NoError(t, err)
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, models.ProjectPlanning, project.Status)

	artifacts, err := s.ListArtifacts(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 5)

	names := make(map[string]bool)
	for _, a := range artifacts {
		names[a.Name] = true
		assert.Equal(t, models.ArtifactDoc, a.Type)
		assert.NotEmpty(t, a.Content)
	}
	assert.True(t, names["Project-Overview.md"])
	assert.True(t, names["Implementation-Plan.md"])
}

func TestDeleteProjectCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, models.Project{Name: "Demo"})
	require.NoError(t, err)

	task, err := s.CreateTask(ctx, models.Task{ProjectID: project.ID, Title: "ship it"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, project.ID))

	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	artifacts, err := s.ListArtifacts(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestArtifactRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, models.Project{Name: "Demo"})
	require.NoError(t, err)

	created, err := s.CreateArtifact(ctx, models.Artifact{
		ProjectID: project.ID,
		Name:      "Notes.md",
		Content:   "# Notes\n",
	})
	require.NoError(t, err)

	byName, err := s.GetArtifactByName(ctx, project.ID, "Notes.md")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	newContent := "# Notes\n\nupdated\n"
	updated, err := s.UpdateArtifact(ctx, created.ID, ArtifactUpdate{Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, newContent, updated.Content)
	assert.True(t, updated.LastEdited.After(created.LastEdited) || updated.LastEdited.Equal(created.LastEdited))

	// Artifact writes bump the project's recency stamp.
	refreshed, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.LastEdited.Before(project.LastEdited))

	_, err = s.GetArtifact(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskQuadrantDerivedOnWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, models.Project{Name: "Demo"})
	require.NoError(t, err)

	task, err := s.CreateTask(ctx, models.Task{
		ProjectID:  project.ID,
		Title:      "urgent and important",
		Priority:   models.PriorityHigh,
		Importance: models.ImportanceHigh,
		// Deliberately wrong; the store must recompute it.
		Quadrant: models.QuadrantFour,
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuadrantOne, task.Quadrant)

	low := models.PriorityLow
	updated, err := s.UpdateTask(ctx, task.ID, TaskUpdate{Priority: &low})
	require.NoError(t, err)
	assert.Equal(t, models.QuadrantTwo, updated.Quadrant)

	fetched, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuadrantTwo, fetched.Quadrant)
}

func TestAppendMessageReturnsDefinitiveIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, models.Project{Name: "Demo"})
	require.NoError(t, err)

	session, err := s.CreateSession(ctx, models.ChatSession{ProjectID: project.ID, Title: "First"})
	require.NoError(t, err)

	first, idx, err := s.AppendMessage(ctx, session.ID, models.Message{
		Role:    models.RoleUser,
		Content: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.NotEmpty(t, first.ID)

	_, idx, err = s.AppendMessage(ctx, session.ID, models.Message{
		Role:    models.RoleAssistant,
		Content: "hi",
		ToolCalls: []models.ToolCall{{
			Name: models.ToolCreateDocument,
			Args: models.ToolCallArgs{Name: "Spec.md", Content: "# Spec"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	loaded, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, first.ID, loaded.Messages[0].ID)
	require.Len(t, loaded.Messages[1].ToolCalls, 1)
	assert.Equal(t, models.ToolCreateDocument, loaded.Messages[1].ToolCalls[0].Name)
}

func TestSessionOrderingPinnedFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, models.Project{Name: "Demo"})
	require.NoError(t, err)

	older, err := s.CreateSession(ctx, models.ChatSession{ProjectID: project.ID, Title: "older"})
	require.NoError(t, err)
	newer, err := s.CreateSession(ctx, models.ChatSession{ProjectID: project.ID, Title: "newer"})
	require.NoError(t, err)

	pinned := true
	_, err = s.UpdateSession(ctx, older.ID, SessionUpdate{Pinned: &pinned})
	require.NoError(t, err)

	sessions, err := s.ListSessions(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, older.ID, sessions[0].ID)
	assert.Equal(t, newer.ID, sessions[1].ID)
}
