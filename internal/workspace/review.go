package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgeproj/forge/models"
)

// ReviewState is the lifecycle position of a diff review.
type ReviewState string

const (
	ReviewNone     ReviewState = "none"
	ReviewLoading  ReviewState = "loading"
	ReviewReady    ReviewState = "ready"
	ReviewStale    ReviewState = "stale"
	ReviewAccepted ReviewState = "accepted"
	ReviewRejected ReviewState = "rejected"
)

// reviewTransitions is the full set of legal state changes. Anything not
// listed is rejected; in particular there is no path from stale to
// accepted, a stale proposal must be re-requested or discarded.
var reviewTransitions = map[ReviewState][]ReviewState{
	ReviewNone:    {ReviewLoading},
	ReviewLoading: {ReviewReady, ReviewNone},
	ReviewReady:   {ReviewStale, ReviewAccepted, ReviewRejected},
	ReviewStale:   {ReviewReady, ReviewRejected},
}

func (s ReviewState) canTransition(to ReviewState) bool {
	for _, next := range reviewTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrStaleReview is returned when accept is attempted on a review whose
// artifact changed after the proposal was generated.
var ErrStaleReview = errors.New("review is stale: the document changed after this proposal was generated")

// ErrReviewLoading is returned when a review is inspected or resolved
// while its edit operation is still in flight.
var ErrReviewLoading = errors.New("review is still loading")

// ErrNoReview is returned when no diff review exists for the message.
var ErrNoReview = errors.New("no diff review for message")

// DiffReview is the proposal produced by one edit-kind tool call, keyed by
// the ID of the assistant message that requested it.
type DiffReview struct {
	MessageID    string
	ArtifactID   string
	ArtifactName string
	Kind         models.EditKind
	// OriginalContent is nil for reviews rebuilt from history: the store
	// does not persist pre-edit snapshots, so rehydrated reviews can say
	// what was edited but cannot be diffed against the true original.
	OriginalContent *string
	ProposedContent string
	Summary         string
	State           ReviewState
	// StatusText is the human-readable progress or failure line shown in
	// the transcript next to the tool call.
	StatusText string
	// Rehydrated reviews are read-only: with no proposed content on
	// record, accepting one would wipe the document.
	Rehydrated bool
}

func (r *DiffReview) transition(to ReviewState) error {
	if !r.State.canTransition(to) {
		return fmt.Errorf("illegal review transition %s -> %s", r.State, to)
	}
	r.State = to
	return nil
}

// refreshStaleness recomputes the ready/stale split against the
// artifact's live content. An accepted review is never stale; its
// acceptance is what produced the live content.
func (r *DiffReview) refreshStaleness(liveContent string) {
	if r.State != ReviewReady && r.State != ReviewStale {
		return
	}
	stale := false
	if r.OriginalContent != nil {
		stale = liveContent != *r.OriginalContent
	} else {
		stale = liveContent != r.ProposedContent
	}
	if stale && r.State == ReviewReady {
		_ = r.transition(ReviewStale)
	} else if !stale && r.State == ReviewStale {
		_ = r.transition(ReviewReady)
	}
}

// reviewLoadingText maps an edit kind to the status line shown while the
// edit operation runs.
func reviewLoadingText(kind models.EditKind) string {
	switch kind {
	case models.EditRewrite:
		return "Rewriting document…"
	case models.EditInsert:
		return "Inserting into document…"
	case models.EditReplace:
		return "Replacing in document…"
	}
	return "Editing document…"
}

// Preview returns the review for inspection, with staleness recomputed
// against the artifact's current content. Disallowed while loading.
func (d *Dispatcher) Preview(ctx context.Context, messageID string) (DiffReview, error) {
	d.mu.Lock()
	review, ok := d.reviews[messageID]
	d.mu.Unlock()
	if !ok {
		return DiffReview{}, ErrNoReview
	}
	if review.State == ReviewLoading {
		return DiffReview{}, ErrReviewLoading
	}
	if review.Rehydrated {
		// Degraded read-only display; there is no snapshot to compare
		// the live document against.
		d.mu.Lock()
		defer d.mu.Unlock()
		return *review, nil
	}

	live, err := d.liveContent(ctx, review)
	if err != nil {
		return DiffReview{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	review.refreshStaleness(live)
	d.openReviewID = messageID
	return *review, nil
}

// Accept persists the proposed content as the artifact's new content and
// closes the review, reopening the artifact in plain-edit mode. Only legal
// from ready: a stale review must be re-derived, not blindly accepted.
func (d *Dispatcher) Accept(ctx context.Context, messageID string) error {
	d.mu.Lock()
	review, ok := d.reviews[messageID]
	d.mu.Unlock()
	if !ok {
		return ErrNoReview
	}
	if review.State == ReviewLoading {
		return ErrReviewLoading
	}
	if review.Rehydrated {
		return fmt.Errorf("historical review for %s cannot be accepted: proposal content was not persisted", review.ArtifactName)
	}

	live, err := d.liveContent(ctx, review)
	if err != nil {
		return err
	}

	d.mu.Lock()
	review.refreshStaleness(live)
	if review.State != ReviewReady {
		state := review.State
		d.mu.Unlock()
		if state == ReviewStale {
			return ErrStaleReview
		}
		return fmt.Errorf("illegal review transition %s -> %s", state, ReviewAccepted)
	}
	proposed := review.ProposedContent
	artifactID := review.ArtifactID
	d.mu.Unlock()

	key := artifactKey(artifactID)
	err = d.cache.Mutate(ctx, key,
		func(old any) any {
			if artifact, ok := old.(models.Artifact); ok {
				artifact.Content = proposed
				return artifact
			}
			return old
		},
		func(ctx context.Context) (any, error) {
			updated, err := d.store.UpdateArtifact(ctx, artifactID, artifactUpdateContent(proposed))
			if err != nil {
				return nil, err
			}
			return updated, nil
		})
	if err != nil {
		return fmt.Errorf("persist accepted edit: %w", err)
	}

	d.mu.Lock()
	if err := review.transition(ReviewAccepted); err != nil {
		d.mu.Unlock()
		return err
	}
	review.StatusText = "Edit applied"
	if d.openReviewID == messageID {
		d.openReviewID = ""
	}
	d.mu.Unlock()

	d.events.diffResolved(messageID, true)
	if artifact, ok := ReadAs[models.Artifact](d.cache, key); ok {
		d.events.artifactOpened(artifact, ModeEdit)
	}
	return nil
}

// Reject discards the proposal and closes the viewer. The artifact is
// untouched and no remote call is made.
func (d *Dispatcher) Reject(messageID string) error {
	d.mu.Lock()
	review, ok := d.reviews[messageID]
	if !ok {
		d.mu.Unlock()
		return ErrNoReview
	}
	if review.State == ReviewLoading {
		d.mu.Unlock()
		return ErrReviewLoading
	}
	if err := review.transition(ReviewRejected); err != nil {
		d.mu.Unlock()
		return err
	}
	review.StatusText = "Edit discarded"
	if d.openReviewID == messageID {
		d.openReviewID = ""
	}
	d.mu.Unlock()

	d.events.diffResolved(messageID, false)
	return nil
}

// liveContent reads the artifact's current content, preferring the cache
// over a store round-trip.
func (d *Dispatcher) liveContent(ctx context.Context, review *DiffReview) (string, error) {
	if artifact, ok := ReadAs[models.Artifact](d.cache, artifactKey(review.ArtifactID)); ok {
		return artifact.Content, nil
	}
	artifact, err := d.store.GetArtifact(ctx, review.ArtifactID)
	if err != nil {
		return "", fmt.Errorf("load document for review: %w", err)
	}
	d.cache.Put(artifactKey(review.ArtifactID), artifact)
	return artifact.Content, nil
}
