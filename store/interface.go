package store

import (
	"context"
	"errors"

	"github.com/forgeproj/forge/models"
)

// ErrNotFound is returned when a requested resource does not exist. Callers
// are expected to surface it as a non-fatal "not found" notification rather
// than treating it as a failure of the store itself.
var ErrNotFound = errors.New("resource not found")

// ArtifactUpdate carries the fields accepted by UpdateArtifact. Nil fields
// are left untouched.
type ArtifactUpdate struct {
	Name     *string
	Category *string
	Content  *string
	Priority *int
}

// TaskUpdate carries the fields accepted by UpdateTask. Nil fields are left
// untouched. Changing Priority or Importance recomputes the quadrant.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	Importance  *models.TaskImportance
	Difficulty  *models.TaskDifficulty
	LinkedFiles []string
}

// SessionUpdate carries the fields accepted by UpdateSession.
type SessionUpdate struct {
	Title  *string
	Pinned *bool
}

// ProjectStore defines the persistence contract for project resources.
// Implementations: SQLiteStore (local database), FileStore (single-file
// JSON/YAML/TOML with locking), HTTPStore (remote Forge API).
type ProjectStore interface {
	// Projects. CreateProject seeds the default document templates.
	CreateProject(ctx context.Context, project models.Project) (models.Project, error)
	GetProject(ctx context.Context, id string) (models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	// DeleteProject removes the project and cascades to its artifacts,
	// tasks, and chat sessions.
	DeleteProject(ctx context.Context, id string) error

	// Artifacts. UpdateArtifact bumps the owning project's LastEdited.
	CreateArtifact(ctx context.Context, artifact models.Artifact) (models.Artifact, error)
	GetArtifact(ctx context.Context, id string) (models.Artifact, error)
	// GetArtifactByName resolves an artifact by its exact name within a
	// project; used by reference resolution and name-addressed edits.
	GetArtifactByName(ctx context.Context, projectID, name string) (models.Artifact, error)
	ListArtifacts(ctx context.Context, projectID string) ([]models.Artifact, error)
	UpdateArtifact(ctx context.Context, id string, update ArtifactUpdate) (models.Artifact, error)
	DeleteArtifact(ctx context.Context, id string) error

	// Tasks.
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, update TaskUpdate) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// Chat sessions. AppendMessage returns the stored message and its
	// definitive index in the transcript; callers derive the message index
	// from this result instead of predicting it locally.
	CreateSession(ctx context.Context, session models.ChatSession) (models.ChatSession, error)
	GetSession(ctx context.Context, id string) (models.ChatSession, error)
	ListSessions(ctx context.Context, projectID string) ([]models.ChatSession, error)
	UpdateSession(ctx context.Context, id string, update SessionUpdate) (models.ChatSession, error)
	DeleteSession(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, sessionID string, message models.Message) (models.Message, int, error)

	// Close releases any resources held by the store, such as file locks
	// or database connections.
	Close() error
}

// SendMessageRequest is the payload for AssistantClient.SendChatMessage.
type SendMessageRequest struct {
	Text                  string   `json:"text"`
	ContextMode           string   `json:"contextMode,omitempty"`
	ReferencedArtifactIDs []string `json:"referencedArtifactIds,omitempty"`
	ReferencedTaskIDs     []string `json:"referencedTaskIds,omitempty"`
	WebSearch             bool     `json:"webSearch,omitempty"`
	ModelPreset           string   `json:"modelPreset,omitempty"`
}

// ToolResult is the outcome of ExecuteToolCall.
type ToolResult struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message,omitempty"`
	Artifact *models.Artifact `json:"artifact,omitempty"`
	Tasks    []models.Task    `json:"tasks,omitempty"`
}

// EditRequest asks the assistant to transform a document.
type EditRequest struct {
	ToolName     models.ToolName `json:"toolName"`
	ArtifactID   string          `json:"artifactId,omitempty"`
	ArtifactName string          `json:"artifactName,omitempty"`
	Instructions string          `json:"instructions"`
}

// EditSelectionRequest asks the assistant to rewrite just a selected span
// of a document. ContextBefore and ContextAfter carry the text immediately
// surrounding the selection so the result stays consistent with it.
type EditSelectionRequest struct {
	Selection     string `json:"selection"`
	ContextBefore string `json:"contextBefore,omitempty"`
	ContextAfter  string `json:"contextAfter,omitempty"`
	Instruction   string `json:"instruction"`
	FileType      string `json:"fileType,omitempty"`
}

// EditSelectionResult carries the replacement for the selected span. The
// caller splices it back into the editor buffer; nothing is persisted.
type EditSelectionResult struct {
	Success    bool   `json:"success"`
	EditedText string `json:"editedText"`
}

// EditResult is the outcome of EditDocument: the original snapshot, the
// proposed content, and a human-readable summary for the review UI.
type EditResult struct {
	Success         bool            `json:"success"`
	ArtifactID      string          `json:"artifactId"`
	OriginalContent string          `json:"originalContent"`
	ModifiedContent string          `json:"modifiedContent"`
	EditType        models.EditKind `json:"editType"`
	EditSummary     string          `json:"editSummary"`
}

// AssistantClient abstracts the AI-backed remote operations. The engine
// treats each call as a single logical unit: EditDocument in particular is
// a multi-step operation (fetch original, transform, diff) awaited as one.
type AssistantClient interface {
	// SendChatMessage appends the user text, obtains the assistant reply,
	// and returns the definitive reply message together with its index.
	SendChatMessage(ctx context.Context, sessionID string, req SendMessageRequest) (models.Message, int, error)
	ExecuteToolCall(ctx context.Context, projectID string, call models.ToolCall) (ToolResult, error)
	EditDocument(ctx context.Context, projectID string, req EditRequest) (EditResult, error)
	// EditSelection rewrites a selected span in place of a whole-document
	// edit. It never writes to the store.
	EditSelection(ctx context.Context, req EditSelectionRequest) (EditSelectionResult, error)
}
