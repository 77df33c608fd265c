package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

// dispatchEdit runs one edit tool call to completion and returns the
// message ID of the resulting ready review.
func dispatchEdit(t *testing.T, fx *dispatchFixture, artifactName string) string {
	t.Helper()
	msg := assistantMessage(models.ToolCall{
		Name: models.ToolRewriteDocument,
		Args: models.ToolCallArgs{ArtifactName: artifactName, Instructions: "rework it"},
	})
	fx.dispatcher.Dispatch(context.Background(), msg, 0)

	review, ok := fx.dispatcher.Review(msg.ID)
	require.True(t, ok)
	require.Equal(t, ReviewReady, review.State)
	return msg.ID
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, ReviewNone.canTransition(ReviewLoading))
	assert.True(t, ReviewLoading.canTransition(ReviewReady))
	assert.True(t, ReviewLoading.canTransition(ReviewNone))
	assert.True(t, ReviewReady.canTransition(ReviewStale))
	assert.True(t, ReviewReady.canTransition(ReviewAccepted))
	assert.True(t, ReviewReady.canTransition(ReviewRejected))
	assert.True(t, ReviewStale.canTransition(ReviewReady))
	assert.True(t, ReviewStale.canTransition(ReviewRejected))

	// No path from stale to accepted, and resolved states are terminal.
	assert.False(t, ReviewStale.canTransition(ReviewAccepted))
	assert.False(t, ReviewAccepted.canTransition(ReviewReady))
	assert.False(t, ReviewRejected.canTransition(ReviewReady))
	assert.False(t, ReviewNone.canTransition(ReviewReady))
}

func TestAcceptPersistsProposal(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()
	messageID := dispatchEdit(t, fx, "Project-Overview.md")

	review, _ := fx.dispatcher.Review(messageID)
	require.NoError(t, fx.dispatcher.Accept(ctx, messageID))

	// The proposed content is now the artifact's live content, in both
	// the cache and the store.
	stored, err := fx.st.GetArtifact(ctx, review.ArtifactID)
	require.NoError(t, err)
	assert.Equal(t, review.ProposedContent, stored.Content)

	cached, ok := ReadAs[models.Artifact](fx.cache, artifactKey(review.ArtifactID))
	require.True(t, ok)
	assert.Equal(t, review.ProposedContent, cached.Content)

	after, _ := fx.dispatcher.Review(messageID)
	assert.Equal(t, ReviewAccepted, after.State)

	// The viewer closed and the artifact reopened in plain-edit mode.
	_, isOpen := fx.dispatcher.OpenReview()
	assert.False(t, isOpen)
	fx.mu.Lock()
	defer fx.mu.Unlock()
	assert.Contains(t, fx.resolved, messageID+"|true")
	assert.Equal(t, "Project-Overview.md|edit", fx.opened[len(fx.opened)-1])
}

func TestRejectLeavesArtifactUntouched(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()
	messageID := dispatchEdit(t, fx, "Project-Overview.md")

	review, _ := fx.dispatcher.Review(messageID)
	before, err := fx.st.GetArtifact(ctx, review.ArtifactID)
	require.NoError(t, err)

	require.NoError(t, fx.dispatcher.Reject(messageID))

	after, err := fx.st.GetArtifact(ctx, review.ArtifactID)
	require.NoError(t, err)
	assert.Equal(t, before.Content, after.Content)

	resolved, _ := fx.dispatcher.Review(messageID)
	assert.Equal(t, ReviewRejected, resolved.State)
	fx.mu.Lock()
	defer fx.mu.Unlock()
	assert.Contains(t, fx.resolved, messageID+"|false")
}

func TestStalenessDetectedOnExternalEdit(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()
	messageID := dispatchEdit(t, fx, "Project-Overview.md")

	review, _ := fx.dispatcher.Review(messageID)

	// A direct edit lands on the artifact while the review is open.
	newContent := "manually changed\n"
	_, err := fx.st.UpdateArtifact(ctx, review.ArtifactID, store.ArtifactUpdate{Content: &newContent})
	require.NoError(t, err)
	edited, err := fx.st.GetArtifact(ctx, review.ArtifactID)
	require.NoError(t, err)
	fx.cache.Put(artifactKey(review.ArtifactID), edited)

	previewed, err := fx.dispatcher.Preview(ctx, messageID)
	require.NoError(t, err)
	assert.Equal(t, ReviewStale, previewed.State)

	// A stale review must not be silently accepted.
	assert.ErrorIs(t, fx.dispatcher.Accept(ctx, messageID), ErrStaleReview)

	// Reject is still allowed from stale.
	require.NoError(t, fx.dispatcher.Reject(messageID))
}

func TestStaleReviewRecoversIfContentRestored(t *testing.T) {
	fx := newDispatchFixture(t)
	ctx := context.Background()
	messageID := dispatchEdit(t, fx, "Project-Overview.md")

	review, _ := fx.dispatcher.Review(messageID)
	original := *review.OriginalContent

	tmp := "transient change\n"
	artifact, ok := ReadAs[models.Artifact](fx.cache, artifactKey(review.ArtifactID))
	require.True(t, ok)
	artifact.Content = tmp
	fx.cache.Put(artifactKey(review.ArtifactID), artifact)

	previewed, err := fx.dispatcher.Preview(ctx, messageID)
	require.NoError(t, err)
	require.Equal(t, ReviewStale, previewed.State)

	// Restoring the original content makes the proposal valid again.
	artifact.Content = original
	fx.cache.Put(artifactKey(review.ArtifactID), artifact)

	previewed, err = fx.dispatcher.Preview(ctx, messageID)
	require.NoError(t, err)
	assert.Equal(t, ReviewReady, previewed.State)
	require.NoError(t, fx.dispatcher.Accept(ctx, messageID))
}

func TestPreviewUnknownMessage(t *testing.T) {
	fx := newDispatchFixture(t)
	_, err := fx.dispatcher.Preview(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNoReview)
	assert.ErrorIs(t, fx.dispatcher.Accept(context.Background(), "nope"), ErrNoReview)
	assert.ErrorIs(t, fx.dispatcher.Reject("nope"), ErrNoReview)
}
