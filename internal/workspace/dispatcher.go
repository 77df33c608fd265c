package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

// Mode tells the editor surface how to open an artifact.
type Mode string

const (
	ModeEdit Mode = "edit"
	ModeDiff Mode = "diff"
)

// CallStatus is the derived execution status of one tool call. It lives
// here, outside the immutable message, keyed by message ID.
type CallStatus string

const (
	CallPending   CallStatus = "pending"
	CallSucceeded CallStatus = "succeeded"
	CallFailed    CallStatus = "failed"
)

// ToolOutcome records how one tool call in a message went.
type ToolOutcome struct {
	Name   models.ToolName
	Status CallStatus
	Detail string
}

// Events are the callbacks the dispatcher raises toward collaborators
// (editor surface, transcript renderer, notification area). Nil fields
// are simply skipped.
type Events struct {
	// ArtifactOpened asks the editor to show an artifact, either for
	// plain editing or for diff review.
	ArtifactOpened func(artifact models.Artifact, mode Mode)
	// DiffResolved fires when a review is accepted or rejected.
	DiffResolved func(messageID string, accepted bool)
	// TasksInvalidated fires after create_tasks succeeds so board views
	// refetch and re-derive quadrants.
	TasksInvalidated func()
	// Notify surfaces a non-blocking, user-visible notification.
	Notify func(text string)
}

func (e Events) artifactOpened(artifact models.Artifact, mode Mode) {
	if e.ArtifactOpened != nil {
		e.ArtifactOpened(artifact, mode)
	}
}

func (e Events) diffResolved(messageID string, accepted bool) {
	if e.DiffResolved != nil {
		e.DiffResolved(messageID, accepted)
	}
}

func (e Events) tasksInvalidated() {
	if e.TasksInvalidated != nil {
		e.TasksInvalidated()
	}
}

func (e Events) notify(text string) {
	if e.Notify != nil {
		e.Notify(text)
	}
}

const tasksKey = "tasks"

func artifactKey(id string) string { return "artifact:" + id }

func artifactUpdateContent(content string) store.ArtifactUpdate {
	return store.ArtifactUpdate{Content: &content}
}

// Dispatcher turns the tool calls embedded in assistant messages into
// durable state changes, tracking per-message derived state: created
// artifacts, diff reviews, and per-call outcomes. All of it is keyed by
// the message's stable ID; a positional index map exists only for
// transcript lookups.
type Dispatcher struct {
	mu        sync.Mutex
	cache     *Cache
	store     store.ProjectStore
	assistant store.AssistantClient
	projectID string
	events    Events

	created   map[string]models.Artifact
	reviews   map[string]*DiffReview
	outcomes  map[string][]ToolOutcome
	indexToID map[int]string

	openReviewID string
}

func NewDispatcher(cache *Cache, st store.ProjectStore, assistant store.AssistantClient, projectID string, events Events) *Dispatcher {
	return &Dispatcher{
		cache:     cache,
		store:     st,
		assistant: assistant,
		projectID: projectID,
		events:    events,
		created:   make(map[string]models.Artifact),
		reviews:   make(map[string]*DiffReview),
		outcomes:  make(map[string][]ToolOutcome),
		indexToID: make(map[int]string),
	}
}

// Dispatch executes the tool calls of one assistant message, strictly in
// order: a later call may reference an artifact created by an earlier one
// in the same message. One failing call records its failure, raises a
// notification, and lets its siblings run; no error escapes the dispatch
// boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, msg models.Message, index int) {
	if msg.Role != models.RoleAssistant || len(msg.ToolCalls) == 0 {
		return
	}

	d.mu.Lock()
	d.indexToID[index] = msg.ID
	d.outcomes[msg.ID] = make([]ToolOutcome, len(msg.ToolCalls))
	for i, call := range msg.ToolCalls {
		d.outcomes[msg.ID][i] = ToolOutcome{Name: call.Name, Status: CallPending}
	}
	d.mu.Unlock()

	for i, call := range msg.ToolCalls {
		var err error
		switch {
		case call.Name == models.ToolCreateDocument:
			err = d.runCreateDocument(ctx, msg.ID, call)
		case call.Name == models.ToolCreateTasks:
			err = d.runCreateTasks(ctx, call)
		case call.Name.IsEdit():
			err = d.runEdit(ctx, msg.ID, call)
		default:
			err = fmt.Errorf("unknown tool %q", call.Name)
		}

		d.mu.Lock()
		if err != nil {
			d.outcomes[msg.ID][i] = ToolOutcome{Name: call.Name, Status: CallFailed, Detail: err.Error()}
		} else {
			d.outcomes[msg.ID][i] = ToolOutcome{Name: call.Name, Status: CallSucceeded}
		}
		d.mu.Unlock()

		if err != nil {
			slog.Warn("tool call failed", "tool", call.Name, "message", msg.ID, "error", err)
			d.events.notify(fmt.Sprintf("%s failed: %v", call.Name, err))
		}
	}
}

func (d *Dispatcher) runCreateDocument(ctx context.Context, messageID string, call models.ToolCall) error {
	result, err := d.assistant.ExecuteToolCall(ctx, d.projectID, call)
	if err != nil {
		return err
	}
	if !result.Success || result.Artifact == nil {
		return fmt.Errorf("document was not created: %s", result.Message)
	}

	artifact := *result.Artifact
	d.cache.Put(artifactKey(artifact.ID), artifact)

	d.mu.Lock()
	d.created[messageID] = artifact
	d.mu.Unlock()

	d.events.artifactOpened(artifact, ModeEdit)
	return nil
}

func (d *Dispatcher) runCreateTasks(ctx context.Context, call models.ToolCall) error {
	result, err := d.assistant.ExecuteToolCall(ctx, d.projectID, call)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("tasks were not created: %s", result.Message)
	}
	// Board views refetch and re-derive quadrants from the store.
	d.cache.Invalidate(tasksKey)
	d.events.tasksInvalidated()
	return nil
}

func (d *Dispatcher) runEdit(ctx context.Context, messageID string, call models.ToolCall) error {
	kind := call.Name.EditKind()

	review := &DiffReview{
		MessageID:    messageID,
		ArtifactID:   call.Args.ArtifactID,
		ArtifactName: call.Args.ArtifactName,
		Kind:         kind,
		State:        ReviewNone,
		StatusText:   reviewLoadingText(kind),
	}
	_ = review.transition(ReviewLoading)

	d.mu.Lock()
	d.reviews[messageID] = review
	d.mu.Unlock()

	result, err := d.assistant.EditDocument(ctx, d.projectID, store.EditRequest{
		ToolName:     call.Name,
		ArtifactID:   call.Args.ArtifactID,
		ArtifactName: call.Args.ArtifactName,
		Instructions: call.Args.Instructions,
	})
	if err != nil || !result.Success {
		d.mu.Lock()
		_ = review.transition(ReviewNone)
		if err != nil {
			review.StatusText = fmt.Sprintf("Edit failed: %v", err)
		} else {
			review.StatusText = "Edit failed"
			err = fmt.Errorf("edit was not produced")
		}
		d.mu.Unlock()
		return err
	}

	artifact, lookupErr := d.store.GetArtifact(ctx, result.ArtifactID)
	if lookupErr == nil {
		d.cache.Put(artifactKey(artifact.ID), artifact)
	}

	d.mu.Lock()
	original := result.OriginalContent
	review.ArtifactID = result.ArtifactID
	if review.ArtifactName == "" && lookupErr == nil {
		review.ArtifactName = artifact.Name
	}
	review.OriginalContent = &original
	review.ProposedContent = result.ModifiedContent
	review.Summary = result.EditSummary
	review.StatusText = result.EditSummary
	if err := review.transition(ReviewReady); err != nil {
		d.mu.Unlock()
		return err
	}
	d.openReviewID = messageID
	d.mu.Unlock()

	if lookupErr == nil {
		d.events.artifactOpened(artifact, ModeDiff)
	}
	return nil
}

// CreatedArtifact returns the artifact a message's create_document call
// produced, if any.
func (d *Dispatcher) CreatedArtifact(messageID string) (models.Artifact, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	artifact, ok := d.created[messageID]
	return artifact, ok
}

// Review returns a copy of the diff review keyed by message ID.
func (d *Dispatcher) Review(messageID string) (DiffReview, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	review, ok := d.reviews[messageID]
	if !ok {
		return DiffReview{}, false
	}
	return *review, true
}

// MessageIDAt maps a transcript position to the stable message ID the
// side maps are keyed by.
func (d *Dispatcher) MessageIDAt(index int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.indexToID[index]
	return id, ok
}

// Outcomes returns the per-call execution statuses for a message.
func (d *Dispatcher) Outcomes(messageID string) []ToolOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	outcomes, ok := d.outcomes[messageID]
	if !ok {
		return nil
	}
	out := make([]ToolOutcome, len(outcomes))
	copy(out, outcomes)
	return out
}

// OpenReview returns the message ID of the currently open review, if one
// is open. At most one review is open at a time.
func (d *Dispatcher) OpenReview() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openReviewID, d.openReviewID != ""
}

// Discard drops all derived state. Called on session switch; dispatcher
// state must never leak across session boundaries.
func (d *Dispatcher) Discard() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = make(map[string]models.Artifact)
	d.reviews = make(map[string]*DiffReview)
	d.outcomes = make(map[string][]ToolOutcome)
	d.indexToID = make(map[int]string)
	d.openReviewID = ""
}

// syntheticID mints an ID for artifacts rebuilt from history, where the
// server-issued ID was never recorded in the tool-call arguments.
func syntheticID() string {
	return "hist-" + uuid.NewString()
}
