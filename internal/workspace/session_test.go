package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

func openTestSession(t *testing.T, assistant *fakeAssistant, st *store.SQLiteStore, projectID string) *Session {
	t.Helper()
	s, err := Open(context.Background(), st, assistant, projectID, Options{
		AutosaveDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestOpenCreatesSessionWhenNoneExists(t *testing.T) {
	fx := newDispatchFixture(t)

	s := openTestSession(t, fx.assistant, fx.st, fx.project.ID)
	assert.NotEmpty(t, s.ID())

	sessions, err := fx.st.ListSessions(context.Background(), fx.project.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, s.ID(), sessions[0].ID)
}

func TestOpenPicksExistingSessionAndRehydrates(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	chat, err := fx.st.CreateSession(ctx, models.ChatSession{ProjectID: fx.project.ID, Title: "existing"})
	require.NoError(t, err)
	created, _, err := fx.st.AppendMessage(ctx, chat.ID, models.Message{
		Role:    models.RoleAssistant,
		Content: "made it",
		ToolCalls: []models.ToolCall{{
			Name: models.ToolCreateDocument,
			Args: models.ToolCallArgs{Name: "Old.md", Content: "# Old"},
		}},
	})
	require.NoError(t, err)

	s := openTestSession(t, fx.assistant, fx.st, fx.project.ID)
	assert.Equal(t, chat.ID, s.ID())

	artifact, ok := s.Engine().CreatedArtifact(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Old.md", artifact.Name)
}

func TestSendMessageDispatchesToolCalls(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	fx.assistant.reply = models.Message{
		Content: "creating it now",
		ToolCalls: []models.ToolCall{{
			Name: models.ToolCreateDocument,
			Args: models.ToolCallArgs{Name: "README.md", Category: "Docs", Content: "# Title"},
		}},
	}

	s := openTestSession(t, fx.assistant, fx.st, fx.project.ID)
	reply, err := s.SendMessage(ctx, store.SendMessageRequest{Text: "create a README"})
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)

	// The transcript holds both turns, reconciled from the store.
	messages := s.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "create a README", messages[0].Content)
	assert.Equal(t, reply.ID, messages[1].ID)

	// The tool call ran and its artifact is tracked under the reply ID.
	artifact, ok := s.Engine().CreatedArtifact(reply.ID)
	require.True(t, ok)
	assert.Equal(t, "README.md", artifact.Name)

	// The reply index came from the store's append result.
	id, ok := s.Engine().MessageIDAt(1)
	require.True(t, ok)
	assert.Equal(t, reply.ID, id)
}

func TestSendMessageRollsBackOnFailure(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	s := openTestSession(t, fx.assistant, fx.st, fx.project.ID)
	require.Empty(t, s.Messages())

	// Sending against a session the store no longer knows fails remotely.
	require.NoError(t, fx.st.DeleteSession(ctx, s.ID()))

	_, err := s.SendMessage(ctx, store.SendMessageRequest{Text: "hello?"})
	require.Error(t, err)

	// The optimistic user message was rolled back.
	assert.Empty(t, s.Messages())
}

func TestEditArtifactDebouncedAutosave(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	s := openTestSession(t, fx.assistant, fx.st, fx.project.ID)
	overview, err := fx.st.GetArtifactByName(ctx, fx.project.ID, "Project-Overview.md")
	require.NoError(t, err)

	require.NoError(t, s.EditArtifact(overview.ID, "draft 1"))
	require.NoError(t, s.EditArtifact(overview.ID, "draft 2"))

	// The cache reflects the latest keystroke immediately.
	cached, ok := ReadAs[models.Artifact](s.Cache(), artifactKey(overview.ID))
	require.True(t, ok)
	assert.Equal(t, "draft 2", cached.Content)

	// After the quiet period only the final content reaches the store.
	require.Eventually(t, func() bool {
		stored, err := fx.st.GetArtifact(ctx, overview.ID)
		return err == nil && stored.Content == "draft 2"
	}, time.Second, 10*time.Millisecond)
}

func TestAutosaveFailureRestoresConfirmedContent(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	s := openTestSession(t, fx.assistant, fx.st, fx.project.ID)
	overview, err := fx.st.GetArtifactByName(ctx, fx.project.ID, "Project-Overview.md")
	require.NoError(t, err)

	require.NoError(t, s.EditArtifact(overview.ID, "doomed keystrokes"))

	// The store rejects the save: the document vanished remotely.
	require.NoError(t, fx.st.DeleteArtifact(ctx, overview.ID))
	require.Error(t, s.FlushEdits(ctx, overview.ID))

	// The cache falls back to the server-confirmed content, not the
	// unsaved optimistic copy.
	cached, ok := ReadAs[models.Artifact](s.Cache(), artifactKey(overview.ID))
	require.True(t, ok)
	assert.Equal(t, overview.Content, cached.Content)
}

func TestAutosaveAdvancesConfirmedBaseAcrossSaves(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	s := openTestSession(t, fx.assistant, fx.st, fx.project.ID)
	overview, err := fx.st.GetArtifactByName(ctx, fx.project.ID, "Project-Overview.md")
	require.NoError(t, err)

	// A successful save promotes its content to the confirmed base.
	require.NoError(t, s.EditArtifact(overview.ID, "saved draft"))
	require.NoError(t, s.FlushEdits(ctx, overview.ID))

	// The next dirty cycle fails; rollback lands on the saved draft,
	// not on the content the session was opened with.
	require.NoError(t, s.EditArtifact(overview.ID, "lost draft"))
	require.NoError(t, fx.st.DeleteArtifact(ctx, overview.ID))
	require.Error(t, s.FlushEdits(ctx, overview.ID))

	cached, ok := ReadAs[models.Artifact](s.Cache(), artifactKey(overview.ID))
	require.True(t, ok)
	assert.Equal(t, "saved draft", cached.Content)
}

func TestEditArtifactBlockedWhileUnderReview(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	s := openTestSession(t, fx.assistant, fx.st, fx.project.ID)

	msg := assistantMessage(models.ToolCall{
		Name: models.ToolRewriteDocument,
		Args: models.ToolCallArgs{ArtifactName: "Project-Overview.md", Instructions: "rewrite"},
	})
	s.Engine().Dispatch(ctx, msg, 0)
	review, ok := s.Engine().Review(msg.ID)
	require.True(t, ok)

	err := s.EditArtifact(review.ArtifactID, "meddling")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "under review")

	// A different artifact is unaffected.
	other, err := fx.st.GetArtifactByName(ctx, fx.project.ID, "Technical-Stack.md")
	require.NoError(t, err)
	assert.NoError(t, s.EditArtifact(other.ID, "unrelated edit"))

	// Resolving the review lifts the block.
	require.NoError(t, s.Engine().Reject(msg.ID))
	assert.NoError(t, s.EditArtifact(review.ArtifactID, "now fine"))
}

func TestSetPinnedResortsSessionList(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	older, err := fx.st.CreateSession(ctx, models.ChatSession{ProjectID: fx.project.ID, Title: "older"})
	require.NoError(t, err)
	_, err = fx.st.CreateSession(ctx, models.ChatSession{ProjectID: fx.project.ID, Title: "newer"})
	require.NoError(t, err)

	s, err := Open(ctx, fx.st, fx.assistant, fx.project.ID, Options{SessionID: older.ID})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })

	require.NoError(t, s.SetPinned(ctx, true))

	sessions, ok := ReadAs[[]models.ChatSession](s.Cache(), sessionsKey)
	require.True(t, ok)
	require.Len(t, sessions, 2)
	assert.Equal(t, older.ID, sessions[0].ID)
	assert.True(t, sessions[0].Pinned)
}

func TestCloseDiscardsDerivedState(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()

	s, err := Open(ctx, fx.st, fx.assistant, fx.project.ID, Options{})
	require.NoError(t, err)

	msg := assistantMessage(models.ToolCall{
		Name: models.ToolCreateDocument,
		Args: models.ToolCallArgs{Name: "Temp.md", Content: "# Temp"},
	})
	s.Engine().Dispatch(ctx, msg, 0)
	_, ok := s.Engine().CreatedArtifact(msg.ID)
	require.True(t, ok)

	require.NoError(t, s.Close(ctx))

	_, ok = s.Engine().CreatedArtifact(msg.ID)
	assert.False(t, ok, "derived state must not survive a session switch")
}

func TestSyntheticIDsAreUnique(t *testing.T) {
	a, b := syntheticID(), syntheticID()
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, uuid.Nil.String(), a)
}
