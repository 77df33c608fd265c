/*
Copyright © 2025 The Forge Authors
*/
package mcp

import (
	"context"
	"errors"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

// scriptedAssistant serves the create tools from a real local store and
// returns a canned proposal for edits.
type scriptedAssistant struct {
	st       store.ProjectStore
	editFail error
}

func (a *scriptedAssistant) SendChatMessage(ctx context.Context, sessionID string, req store.SendMessageRequest) (models.Message, int, error) {
	return models.Message{}, 0, errors.New("not exposed over MCP")
}

func (a *scriptedAssistant) ExecuteToolCall(ctx context.Context, projectID string, call models.ToolCall) (store.ToolResult, error) {
	switch call.Name {
	case models.ToolCreateDocument:
		artifact, err := a.st.CreateArtifact(ctx, models.Artifact{
			ProjectID: projectID,
			Name:      call.Args.Name,
			Category:  call.Args.Category,
			Content:   call.Args.Content,
		})
		if err != nil {
			return store.ToolResult{}, err
		}
		return store.ToolResult{Success: true, Artifact: &artifact}, nil
	case models.ToolCreateTasks:
		var tasks []models.Task
		for _, spec := range call.Args.Tasks {
			task, err := a.st.CreateTask(ctx, models.Task{ProjectID: projectID, Title: spec.Title})
			if err != nil {
				return store.ToolResult{}, err
			}
			tasks = append(tasks, task)
		}
		return store.ToolResult{Success: true, Tasks: tasks}, nil
	}
	return store.ToolResult{}, errors.New("unsupported tool")
}

func (a *scriptedAssistant) EditDocument(ctx context.Context, projectID string, req store.EditRequest) (store.EditResult, error) {
	if a.editFail != nil {
		return store.EditResult{}, a.editFail
	}
	var artifact models.Artifact
	var err error
	if req.ArtifactID != "" {
		artifact, err = a.st.GetArtifact(ctx, req.ArtifactID)
	} else {
		artifact, err = a.st.GetArtifactByName(ctx, projectID, req.ArtifactName)
	}
	if err != nil {
		return store.EditResult{}, err
	}
	return store.EditResult{
		Success:         true,
		ArtifactID:      artifact.ID,
		OriginalContent: artifact.Content,
		ModifiedContent: artifact.Content + "\nrevised\n",
		EditType:        req.ToolName.EditKind(),
		EditSummary:     "Revised the document",
	}, nil
}

func (a *scriptedAssistant) EditSelection(ctx context.Context, req store.EditSelectionRequest) (store.EditSelectionResult, error) {
	if a.editFail != nil {
		return store.EditSelectionResult{}, a.editFail
	}
	return store.EditSelectionResult{Success: true, EditedText: "polished: " + req.Selection}, nil
}

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore, models.Project) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	project, err := st.CreateProject(context.Background(), models.Project{Name: "Demo"})
	require.NoError(t, err)

	return NewServer(st, &scriptedAssistant{st: st}, "test"), st, project
}

func callParams[T any](args T) *mcpsdk.CallToolParamsFor[T] {
	return &mcpsdk.CallToolParamsFor[T]{Arguments: args}
}

func TestListProjectsTool(t *testing.T) {
	s, _, project := newTestServer(t)

	res, err := s.listProjectsHandler()(context.Background(), nil, callParams(ListProjectsParams{}))
	require.NoError(t, err)
	require.Equal(t, 1, res.StructuredContent.Count)
	assert.Equal(t, project.ID, res.StructuredContent.Projects[0].ID)
	assert.Equal(t, "planning", res.StructuredContent.Projects[0].Status)
}

func TestListDocumentsToolIncludesTemplates(t *testing.T) {
	s, _, project := newTestServer(t)

	res, err := s.listDocumentsHandler()(context.Background(), nil, callParams(ProjectScopedParams{ProjectID: project.ID}))
	require.NoError(t, err)
	assert.Equal(t, 5, res.StructuredContent.Count)

	_, err = s.listDocumentsHandler()(context.Background(), nil, callParams(ProjectScopedParams{}))
	assert.ErrorContains(t, err, "project_id is required")
}

func TestCreateDocumentTool(t *testing.T) {
	s, st, project := newTestServer(t)
	ctx := context.Background()

	res, err := s.createDocumentHandler()(ctx, nil, callParams(CreateDocumentParams{
		ProjectID: project.ID,
		Name:      "Notes.md",
		Content:   "# Notes",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Notes.md", res.StructuredContent.Name)

	artifact, err := st.GetArtifact(ctx, res.StructuredContent.ID)
	require.NoError(t, err)
	assert.Equal(t, "# Notes", artifact.Content)

	_, err = s.createDocumentHandler()(ctx, nil, callParams(CreateDocumentParams{ProjectID: project.ID, Name: "  "}))
	assert.ErrorContains(t, err, "name is required")
}

func TestCreateTasksTool(t *testing.T) {
	s, st, project := newTestServer(t)
	ctx := context.Background()

	res, err := s.createTasksHandler()(ctx, nil, callParams(CreateTasksParams{
		ProjectID: project.ID,
		Tasks: []models.TaskSpec{
			{Title: "Write docs"},
			{Title: "Ship release"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, res.StructuredContent.Count)

	tasks, err := st.ListTasks(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	_, err = s.createTasksHandler()(ctx, nil, callParams(CreateTasksParams{ProjectID: project.ID}))
	assert.ErrorContains(t, err, "At least one task")
}

func TestProposeAndApplyEdit(t *testing.T) {
	s, st, project := newTestServer(t)
	ctx := context.Background()

	proposal, err := s.proposeEditHandler()(ctx, nil, callParams(ProposeEditParams{
		ProjectID:    project.ID,
		Tool:         string(models.ToolRewriteDocument),
		DocumentName: "Project-Overview.md",
		Instructions: "Add a revision section",
	}))
	require.NoError(t, err)
	p := proposal.StructuredContent
	assert.NotEmpty(t, p.DocumentID)
	assert.Contains(t, p.ProposedContent, "revised")

	applied, err := s.applyEditHandler()(ctx, nil, callParams(ApplyEditParams{
		DocumentID:      p.DocumentID,
		OriginalContent: p.OriginalContent,
		Content:         p.ProposedContent,
	}))
	require.NoError(t, err)
	assert.Equal(t, p.DocumentID, applied.StructuredContent.DocumentID)

	artifact, err := st.GetArtifact(ctx, p.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, p.ProposedContent, artifact.Content)
}

func TestApplyEditRefusesStaleProposal(t *testing.T) {
	s, st, project := newTestServer(t)
	ctx := context.Background()

	proposal, err := s.proposeEditHandler()(ctx, nil, callParams(ProposeEditParams{
		ProjectID:    project.ID,
		Tool:         string(models.ToolRewriteDocument),
		DocumentName: "Project-Overview.md",
		Instructions: "Rewrite it",
	}))
	require.NoError(t, err)
	p := proposal.StructuredContent

	// Someone else edits the document between propose and apply.
	newer := "external edit"
	_, err = st.UpdateArtifact(ctx, p.DocumentID, store.ArtifactUpdate{Content: &newer})
	require.NoError(t, err)

	_, err = s.applyEditHandler()(ctx, nil, callParams(ApplyEditParams{
		DocumentID:      p.DocumentID,
		OriginalContent: p.OriginalContent,
		Content:         p.ProposedContent,
	}))
	assert.ErrorContains(t, err, "changed since the proposal")

	artifact, err := st.GetArtifact(ctx, p.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, newer, artifact.Content)
}

func TestEditSelectionTool(t *testing.T) {
	s, _, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.editSelectionHandler()(ctx, nil, callParams(EditSelectionParams{
		Selection:   "the intro paragraph",
		Instruction: "make it punchier",
		FileType:    "markdown",
	}))
	require.NoError(t, err)
	assert.Equal(t, "polished: the intro paragraph", res.StructuredContent.EditedText)

	_, err = s.editSelectionHandler()(ctx, nil, callParams(EditSelectionParams{Instruction: "shorten"}))
	assert.ErrorContains(t, err, "selection is required")

	_, err = s.editSelectionHandler()(ctx, nil, callParams(EditSelectionParams{Selection: "text"}))
	assert.ErrorContains(t, err, "instruction is required")
}

func TestProposeEditRejectsNonEditTool(t *testing.T) {
	s, _, project := newTestServer(t)

	_, err := s.proposeEditHandler()(context.Background(), nil, callParams(ProposeEditParams{
		ProjectID:    project.ID,
		Tool:         string(models.ToolCreateDocument),
		DocumentName: "Project-Overview.md",
	}))
	assert.ErrorContains(t, err, "tool must be one of")
}
