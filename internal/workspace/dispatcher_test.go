package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

// fakeAssistant executes create tools against a real local store and
// produces scripted edit results, recording execution order.
type fakeAssistant struct {
	st store.ProjectStore

	mu    sync.Mutex
	order []models.ToolName

	reply      models.Message
	failCreate bool
	editFail   error
	transform  func(original string) (string, string)

	editEntered chan struct{}
	editRelease chan struct{}
}

func newFakeAssistant(st store.ProjectStore) *fakeAssistant {
	return &fakeAssistant{
		st: st,
		transform: func(original string) (string, string) {
			return original + "\nproposed\n", "Appended a proposed section"
		},
	}
}

func (f *fakeAssistant) record(name models.ToolName) {
	f.mu.Lock()
	f.order = append(f.order, name)
	f.mu.Unlock()
}

func (f *fakeAssistant) executionOrder() []models.ToolName {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ToolName, len(f.order))
	copy(out, f.order)
	return out
}

func (f *fakeAssistant) SendChatMessage(ctx context.Context, sessionID string, req store.SendMessageRequest) (models.Message, int, error) {
	if _, _, err := f.st.AppendMessage(ctx, sessionID, models.Message{Role: models.RoleUser, Content: req.Text}); err != nil {
		return models.Message{}, 0, err
	}
	reply := f.reply
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	reply.Role = models.RoleAssistant
	return f.st.AppendMessage(ctx, sessionID, reply)
}

func (f *fakeAssistant) ExecuteToolCall(ctx context.Context, projectID string, call models.ToolCall) (store.ToolResult, error) {
	f.record(call.Name)
	if f.failCreate {
		return store.ToolResult{}, errors.New("remote execution refused")
	}
	switch call.Name {
	case models.ToolCreateDocument:
		artifact, err := f.st.CreateArtifact(ctx, models.Artifact{
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
			task, err := f.st.CreateTask(ctx, models.Task{ProjectID: projectID, Title: spec.Title})
			if err != nil {
				return store.ToolResult{}, err
			}
			tasks = append(tasks, task)
		}
		return store.ToolResult{Success: true, Tasks: tasks}, nil
	}
	return store.ToolResult{}, fmt.Errorf("unexpected tool %s", call.Name)
}

func (f *fakeAssistant) EditDocument(ctx context.Context, projectID string, req store.EditRequest) (store.EditResult, error) {
	f.record(req.ToolName)
	if f.editEntered != nil {
		close(f.editEntered)
		<-f.editRelease
	}
	if f.editFail != nil {
		return store.EditResult{}, f.editFail
	}

	var artifact models.Artifact
	var err error
	if req.ArtifactID != "" {
		artifact, err = f.st.GetArtifact(ctx, req.ArtifactID)
	} else {
		artifact, err = f.st.GetArtifactByName(ctx, projectID, req.ArtifactName)
	}
	if err != nil {
		return store.EditResult{}, err
	}
	modified, summary := f.transform(artifact.Content)
	return store.EditResult{
		Success:         true,
		ArtifactID:      artifact.ID,
		OriginalContent: artifact.Content,
		ModifiedContent: modified,
		EditType:        req.ToolName.EditKind(),
		EditSummary:     summary,
	}, nil
}

func (f *fakeAssistant) EditSelection(ctx context.Context, req store.EditSelectionRequest) (store.EditSelectionResult, error) {
	return store.EditSelectionResult{Success: true, EditedText: req.Selection}, nil
}

type dispatchFixture struct {
	st         *store.SQLiteStore
	assistant  *fakeAssistant
	cache      *Cache
	dispatcher *Dispatcher
	project    models.Project

	mu            sync.Mutex
	opened        []string // "name|mode"
	resolved      []string // "messageID|accepted"
	notifications []string
	invalidations int
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	project, err := st.CreateProject(context.Background(), models.Project{Name: "Demo"})
	require.NoError(t, err)

	fx := &dispatchFixture{st: st, assistant: newFakeAssistant(st), cache: NewCache(), project: project}
	events := Events{
		ArtifactOpened: func(artifact models.Artifact, mode Mode) {
			fx.mu.Lock()
			fx.opened = append(fx.opened, artifact.Name+"|"+string(mode))
			fx.mu.Unlock()
		},
		DiffResolved: func(messageID string, accepted bool) {
			fx.mu.Lock()
			fx.resolved = append(fx.resolved, fmt.Sprintf("%s|%t", messageID, accepted))
			fx.mu.Unlock()
		},
		TasksInvalidated: func() {
			fx.mu.Lock()
			fx.invalidations++
			fx.mu.Unlock()
		},
		Notify: func(text string) {
			fx.mu.Lock()
			fx.notifications = append(fx.notifications, text)
			fx.mu.Unlock()
		},
	}
	fx.dispatcher = NewDispatcher(fx.cache, st, fx.assistant, project.ID, events)
	return fx
}

func assistantMessage(calls ...models.ToolCall) models.Message {
	return models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, Content: "on it", ToolCalls: calls}
}

func TestDispatchCreateDocument(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	msg := assistantMessage(models.ToolCall{
		Name: models.ToolCreateDocument,
		Args: models.ToolCallArgs{Name: "README.md", Category: "Docs", Content: "# Title"},
	})
	fx.dispatcher.Dispatch(ctx, msg, 1)

	created, ok := fx.dispatcher.CreatedArtifact(msg.ID)
	require.True(t, ok)
	assert.Equal(t, "README.md", created.Name)
	assert.Equal(t, "Docs", created.Category)
	assert.Equal(t, "# Title", created.Content)
	assert.NotEmpty(t, created.ID)

	// The artifact got a server identity and is open for editing.
	stored, err := fx.st.GetArtifact(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "README.md", stored.Name)
	assert.Equal(t, []string{"README.md|edit"}, fx.opened)

	id, ok := fx.dispatcher.MessageIDAt(1)
	require.True(t, ok)
	assert.Equal(t, msg.ID, id)

	outcomes := fx.dispatcher.Outcomes(msg.ID)
	require.Len(t, outcomes, 1)
	assert.Equal(t, CallSucceeded, outcomes[0].Status)
}

func TestDispatchCreateTasksInvalidatesTaskList(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()
	fx.cache.Put(tasksKey, []models.Task{})

	msg := assistantMessage(models.ToolCall{
		Name: models.ToolCreateTasks,
		Args: models.ToolCallArgs{Tasks: []models.TaskSpec{{Title: "one"}, {Title: "two"}}},
	})
	fx.dispatcher.Dispatch(ctx, msg, 0)

	_, cached := fx.cache.Read(tasksKey)
	assert.False(t, cached, "task list should be invalidated")
	assert.Equal(t, 1, fx.invalidations)
	assert.Empty(t, fx.opened, "create_tasks must not open an editor")

	tasks, err := fx.st.ListTasks(ctx, fx.project.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestDispatchSequentialOrderWithinMessage(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	// B edits the document A creates; it can only succeed if A's result
	// is recorded before B starts.
	msg := assistantMessage(
		models.ToolCall{
			Name: models.ToolCreateDocument,
			Args: models.ToolCallArgs{Name: "Spec.md", Content: "v1"},
		},
		models.ToolCall{
			Name: models.ToolRewriteDocument,
			Args: models.ToolCallArgs{ArtifactName: "Spec.md", Instructions: "expand"},
		},
	)
	fx.dispatcher.Dispatch(ctx, msg, 0)

	assert.Equal(t, []models.ToolName{models.ToolCreateDocument, models.ToolRewriteDocument}, fx.assistant.executionOrder())

	outcomes := fx.dispatcher.Outcomes(msg.ID)
	require.Len(t, outcomes, 2)
	assert.Equal(t, CallSucceeded, outcomes[0].Status)
	assert.Equal(t, CallSucceeded, outcomes[1].Status)

	review, ok := fx.dispatcher.Review(msg.ID)
	require.True(t, ok)
	assert.Equal(t, ReviewReady, review.State)
}

func TestDispatchFailureDoesNotBlockSiblings(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()
	fx.assistant.editFail = errors.New("transform unavailable")

	msg := assistantMessage(
		models.ToolCall{
			Name: models.ToolRewriteDocument,
			Args: models.ToolCallArgs{ArtifactName: "Project-Overview.md", Instructions: "rewrite"},
		},
		models.ToolCall{
			Name: models.ToolCreateDocument,
			Args: models.ToolCallArgs{Name: "Notes.md", Content: "# Notes"},
		},
	)
	fx.dispatcher.Dispatch(ctx, msg, 0)

	outcomes := fx.dispatcher.Outcomes(msg.ID)
	require.Len(t, outcomes, 2)
	assert.Equal(t, CallFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Detail, "transform unavailable")
	assert.Equal(t, CallSucceeded, outcomes[1].Status)

	// The failed edit left a review record with a failure status line.
	review, ok := fx.dispatcher.Review(msg.ID)
	require.True(t, ok)
	assert.Equal(t, ReviewNone, review.State)
	assert.Contains(t, review.StatusText, "Edit failed")

	require.Len(t, fx.notifications, 1)
	assert.Contains(t, fx.notifications[0], "rewrite_document")
}

func TestDispatchEditLifecycle(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	fx.assistant.editEntered = make(chan struct{})
	fx.assistant.editRelease = make(chan struct{})

	msg := assistantMessage(models.ToolCall{
		Name: models.ToolInsertInDocument,
		Args: models.ToolCallArgs{ArtifactName: "Project-Overview.md", Instructions: "add a goals section"},
	})

	done := make(chan struct{})
	go func() {
		fx.dispatcher.Dispatch(ctx, msg, 3)
		close(done)
	}()

	// Mid-flight: the review exists in loading state with a kind-specific
	// status line, and neither preview nor resolve is allowed.
	<-fx.assistant.editEntered
	review, ok := fx.dispatcher.Review(msg.ID)
	require.True(t, ok)
	assert.Equal(t, ReviewLoading, review.State)
	assert.Equal(t, "Inserting into document…", review.StatusText)

	_, err := fx.dispatcher.Preview(ctx, msg.ID)
	assert.ErrorIs(t, err, ErrReviewLoading)
	assert.ErrorIs(t, fx.dispatcher.Accept(ctx, msg.ID), ErrReviewLoading)

	close(fx.assistant.editRelease)
	<-done

	review, _ = fx.dispatcher.Review(msg.ID)
	assert.Equal(t, ReviewReady, review.State)
	assert.Equal(t, models.EditInsert, review.Kind)
	require.NotNil(t, review.OriginalContent)
	assert.NotEqual(t, *review.OriginalContent, review.ProposedContent)
	assert.Equal(t, "Appended a proposed section", review.Summary)

	// The edit opened the diff view for the target artifact.
	fx.mu.Lock()
	opened := fx.opened
	fx.mu.Unlock()
	require.Len(t, opened, 1)
	assert.Equal(t, "Project-Overview.md|diff", opened[0])

	open, isOpen := fx.dispatcher.OpenReview()
	require.True(t, isOpen)
	assert.Equal(t, msg.ID, open)
}

func TestDispatchIgnoresNonAssistantMessages(t *testing.T) {
	fx := newDispatchFixture(t)

	fx.dispatcher.Dispatch(context.Background(), models.Message{
		ID:   uuid.NewString(),
		Role: models.RoleUser,
		ToolCalls: []models.ToolCall{{
			Name: models.ToolCreateDocument,
			Args: models.ToolCallArgs{Name: "Sneaky.md"},
		}},
	}, 0)

	assert.Empty(t, fx.assistant.executionOrder())
}
