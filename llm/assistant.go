package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

const contextContentLimit = 2000

// Assistant adapts a Provider and a local ProjectStore into a
// store.AssistantClient, so the workspace can run fully locally with the
// same call surface the remote API offers.
type Assistant struct {
	provider Provider
	store    store.ProjectStore
}

var _ store.AssistantClient = (*Assistant)(nil)

func NewAssistant(provider Provider, st store.ProjectStore) *Assistant {
	return &Assistant{provider: provider, store: st}
}

// SendChatMessage appends the user's message to the session, generates the
// assistant reply, appends that too, and returns the reply with the index
// the store assigned to it.
func (a *Assistant) SendChatMessage(ctx context.Context, sessionID string, req store.SendMessageRequest) (models.Message, int, error) {
	session, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.Message{}, 0, fmt.Errorf("load session: %w", err)
	}

	system, err := a.buildSystemInstruction(ctx, session.ProjectID, req)
	if err != nil {
		return models.Message{}, 0, err
	}

	userMsg, _, err := a.store.AppendMessage(ctx, sessionID, models.Message{
		Role:    models.RoleUser,
		Content: req.Text,
	})
	if err != nil {
		return models.Message{}, 0, fmt.Errorf("append user message: %w", err)
	}

	history := append(session.Messages, userMsg)
	resp, err := a.provider.Chat(ctx, ChatRequest{
		Model:     ModelForPreset(req.ModelPreset),
		System:    system,
		History:   history,
		WebSearch: req.WebSearch,
	})
	if err != nil {
		return models.Message{}, 0, fmt.Errorf("generate reply: %w", err)
	}

	reply, idx, err := a.store.AppendMessage(ctx, sessionID, models.Message{
		Role:      models.RoleAssistant,
		Content:   resp.Text,
		ToolCalls: resp.ToolCalls,
	})
	if err != nil {
		return models.Message{}, 0, fmt.Errorf("append assistant message: %w", err)
	}
	return reply, idx, nil
}

func (a *Assistant) buildSystemInstruction(ctx context.Context, projectID string, req store.SendMessageRequest) (string, error) {
	project, err := a.store.GetProject(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load project: %w", err)
	}
	artifacts, err := a.store.ListArtifacts(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("list artifacts: %w", err)
	}
	tasks, err := a.store.ListTasks(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}

	if req.ContextMode == "referenced" {
		artifacts = filterByID(artifacts, req.ReferencedArtifactIDs, func(a models.Artifact) string { return a.ID })
		tasks = filterByID(tasks, req.ReferencedTaskIDs, func(t models.Task) string { return t.ID })
	}

	return fmt.Sprintf(`You are Forge AI, an expert software architect and coding assistant.
You are helping a developer with their project: %s.
Status: %s

CONTEXT:
The user has shared the following project context with you. Use it to answer questions accurately.

FILES:
%s

TASKS:
%s

INSTRUCTIONS:
- Be concise, technical, and helpful.
- If writing code, use Markdown code blocks.
- If the user asks about a specific file, refer to its content.
- Use the provided tools to create documents and tasks or to propose document edits.
- If web search is enabled, use it to find up-to-date information.`,
		project.Name, project.Status, formatArtifacts(artifacts), formatTasks(tasks)), nil
}

func filterByID[T any](items []T, ids []string, idOf func(T) string) []T {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []T
	for _, item := range items {
		if wanted[idOf(item)] {
			out = append(out, item)
		}
	}
	return out
}

func formatArtifacts(artifacts []models.Artifact) string {
	if len(artifacts) == 0 {
		return "No files referenced."
	}
	var b strings.Builder
	for _, a := range artifacts {
		content := a.Content
		suffix := ""
		if len(content) > contextContentLimit {
			content = content[:contextContentLimit]
			suffix = "..."
		}
		fmt.Fprintf(&b, "- %s (%s):\n```\n%s%s\n```\n", a.Name, a.Type, content, suffix)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTasks(tasks []models.Task) string {
	if len(tasks) == 0 {
		return "No tasks."
	}
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "- [%s] %s (Priority: %s)\n", t.Status, t.Title, t.Priority)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ExecuteToolCall runs one create-kind tool call against the store. Edit
// kinds never reach here; they go through EditDocument and a diff review.
func (a *Assistant) ExecuteToolCall(ctx context.Context, projectID string, call models.ToolCall) (store.ToolResult, error) {
	switch call.Name {
	case models.ToolCreateDocument:
		if call.Args.Name == "" {
			return store.ToolResult{}, fmt.Errorf("create_document requires a name")
		}
		artifact, err := a.store.CreateArtifact(ctx, models.Artifact{
			ProjectID: projectID,
			Name:      call.Args.Name,
			Type:      models.ArtifactDoc,
			Category:  call.Args.Category,
			Content:   call.Args.Content,
		})
		if err != nil {
			return store.ToolResult{}, fmt.Errorf("create document: %w", err)
		}
		return store.ToolResult{
			Success:  true,
			Message:  fmt.Sprintf("Created %s", artifact.Name),
			Artifact: &artifact,
		}, nil

	case models.ToolCreateTasks:
		if len(call.Args.Tasks) == 0 {
			return store.ToolResult{}, fmt.Errorf("create_tasks requires at least one task")
		}
		var created []models.Task
		for _, spec := range call.Args.Tasks {
			task, err := a.store.CreateTask(ctx, models.Task{
				ProjectID:   projectID,
				Title:       spec.Title,
				Description: spec.Description,
				Priority:    models.TaskPriority(spec.Priority),
				Importance:  models.TaskImportance(spec.Importance),
				Difficulty:  models.TaskDifficulty(spec.Difficulty),
			})
			if err != nil {
				return store.ToolResult{}, fmt.Errorf("create task %q: %w", spec.Title, err)
			}
			created = append(created, task)
		}
		return store.ToolResult{
			Success: true,
			Message: fmt.Sprintf("Created %d task(s)", len(created)),
			Tasks:   created,
		}, nil

	default:
		return store.ToolResult{}, fmt.Errorf("tool %q cannot be executed directly", call.Name)
	}
}

// EditDocument produces a proposed edit without persisting anything. The
// caller owns the accept/reject decision.
func (a *Assistant) EditDocument(ctx context.Context, projectID string, req store.EditRequest) (store.EditResult, error) {
	kind := req.ToolName.EditKind()
	if kind == "" {
		return store.EditResult{}, fmt.Errorf("tool %q is not an edit", req.ToolName)
	}

	var artifact models.Artifact
	var err error
	switch {
	case req.ArtifactID != "":
		artifact, err = a.store.GetArtifact(ctx, req.ArtifactID)
	case req.ArtifactName != "":
		artifact, err = a.store.GetArtifactByName(ctx, projectID, req.ArtifactName)
	default:
		return store.EditResult{}, fmt.Errorf("edit request names no document")
	}
	if err != nil {
		return store.EditResult{}, fmt.Errorf("resolve document: %w", err)
	}

	outcome, err := a.provider.TransformDocument(ctx, ModelForPreset(PresetFast), kind, artifact.Content, req.Instructions)
	if err != nil {
		return store.EditResult{}, fmt.Errorf("transform document: %w", err)
	}

	return store.EditResult{
		Success:         true,
		ArtifactID:      artifact.ID,
		OriginalContent: artifact.Content,
		ModifiedContent: outcome.ModifiedContent,
		EditType:        kind,
		EditSummary:     outcome.Summary,
	}, nil
}

// EditSelection rewrites just a selected span. Nothing is written to the
// store; the caller splices the result back into the editor buffer.
func (a *Assistant) EditSelection(ctx context.Context, req store.EditSelectionRequest) (store.EditSelectionResult, error) {
	if req.Selection == "" {
		return store.EditSelectionResult{}, fmt.Errorf("selection is empty")
	}
	if req.Instruction == "" {
		return store.EditSelectionResult{}, fmt.Errorf("edit instruction is required")
	}

	edited, err := a.provider.TransformSelection(ctx, ModelForPreset(PresetFast), SelectionRequest{
		Selection:     req.Selection,
		ContextBefore: req.ContextBefore,
		ContextAfter:  req.ContextAfter,
		Instruction:   req.Instruction,
		FileType:      req.FileType,
	})
	if err != nil {
		return store.EditSelectionResult{}, fmt.Errorf("transform selection: %w", err)
	}
	return store.EditSelectionResult{Success: true, EditedText: edited}, nil
}
