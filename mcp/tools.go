/*
Copyright © 2025 The Forge Authors
*/
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
	"github.com/forgeproj/forge/types"
)

// Param and response shapes for the workspace tools.

type ListProjectsParams struct{}

type ProjectSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
	Count    int              `json:"count"`
}

type ProjectScopedParams struct {
	ProjectID string `json:"project_id"`
}

type DocumentSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
	Priority int    `json:"priority"`
}

type DocumentListResponse struct {
	Documents []DocumentSummary `json:"documents"`
	Count     int               `json:"count"`
}

type TaskSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Quadrant string `json:"quadrant"`
}

type TaskListResponse struct {
	Tasks []TaskSummary `json:"tasks"`
	Count int           `json:"count"`
}

type CreateDocumentParams struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	Content   string `json:"content"`
}

type DocumentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateTasksParams struct {
	ProjectID string            `json:"project_id"`
	Tasks     []models.TaskSpec `json:"tasks"`
}

type ProposeEditParams struct {
	ProjectID    string `json:"project_id"`
	Tool         string `json:"tool"` // rewrite_document, insert_in_document, replace_in_document
	DocumentID   string `json:"document_id,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
	Instructions string `json:"instructions"`
}

type ProposeEditResponse struct {
	DocumentID      string `json:"document_id"`
	EditType        string `json:"edit_type"`
	Summary         string `json:"summary"`
	OriginalContent string `json:"original_content"`
	ProposedContent string `json:"proposed_content"`
}

type EditSelectionParams struct {
	Selection     string `json:"selection"`
	ContextBefore string `json:"context_before,omitempty"`
	ContextAfter  string `json:"context_after,omitempty"`
	Instruction   string `json:"instruction"`
	FileType      string `json:"file_type,omitempty"`
}

type EditSelectionResponse struct {
	EditedText string `json:"edited_text"`
}

type ApplyEditParams struct {
	DocumentID string `json:"document_id"`
	// OriginalContent is the snapshot the proposal was generated against.
	// The apply is refused if the live document no longer matches it.
	OriginalContent string `json:"original_content"`
	Content         string `json:"content"`
}

type ApplyEditResponse struct {
	DocumentID string `json:"document_id"`
}

func textResult[T any](text string, payload T) *mcpsdk.CallToolResultFor[T] {
	return &mcpsdk.CallToolResultFor[T]{
		Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		StructuredContent: payload,
	}
}

func storeError(err error, resource string) error {
	if errors.Is(err, store.ErrNotFound) {
		return types.NewOpError("NOT_FOUND", fmt.Sprintf("%s not found", resource), nil)
	}
	return types.NewOpError("STORE_ERROR", err.Error(), nil)
}

func (s *Server) listProjectsHandler() mcpsdk.ToolHandlerFor[ListProjectsParams, ProjectListResponse] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, _ *mcpsdk.CallToolParamsFor[ListProjectsParams]) (*mcpsdk.CallToolResultFor[ProjectListResponse], error) {
		projects, err := s.store.ListProjects(ctx)
		if err != nil {
			return nil, storeError(err, "projects")
		}
		resp := ProjectListResponse{Count: len(projects)}
		for _, p := range projects {
			resp.Projects = append(resp.Projects, ProjectSummary{ID: p.ID, Name: p.Name, Status: string(p.Status)})
		}
		return textResult(fmt.Sprintf("%d project(s)", resp.Count), resp), nil
	}
}

func (s *Server) listDocumentsHandler() mcpsdk.ToolHandlerFor[ProjectScopedParams, DocumentListResponse] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[ProjectScopedParams]) (*mcpsdk.CallToolResultFor[DocumentListResponse], error) {
		if params.Arguments.ProjectID == "" {
			return nil, types.NewOpError("MISSING_PROJECT", "project_id is required", nil)
		}
		artifacts, err := s.store.ListArtifacts(ctx, params.Arguments.ProjectID)
		if err != nil {
			return nil, storeError(err, "project")
		}
		resp := DocumentListResponse{Count: len(artifacts)}
		for _, a := range artifacts {
			resp.Documents = append(resp.Documents, DocumentSummary{
				ID: a.ID, Name: a.Name, Type: string(a.Type), Category: a.Category, Priority: a.Priority,
			})
		}
		return textResult(fmt.Sprintf("%d document(s)", resp.Count), resp), nil
	}
}

func (s *Server) listTasksHandler() mcpsdk.ToolHandlerFor[ProjectScopedParams, TaskListResponse] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[ProjectScopedParams]) (*mcpsdk.CallToolResultFor[TaskListResponse], error) {
		if params.Arguments.ProjectID == "" {
			return nil, types.NewOpError("MISSING_PROJECT", "project_id is required", nil)
		}
		tasks, err := s.store.ListTasks(ctx, params.Arguments.ProjectID)
		if err != nil {
			return nil, storeError(err, "project")
		}
		resp := TaskListResponse{Count: len(tasks)}
		for _, t := range tasks {
			resp.Tasks = append(resp.Tasks, TaskSummary{
				ID: t.ID, Title: t.Title, Status: string(t.Status), Quadrant: string(t.Quadrant),
			})
		}
		return textResult(fmt.Sprintf("%d task(s)", resp.Count), resp), nil
	}
}

func (s *Server) createDocumentHandler() mcpsdk.ToolHandlerFor[CreateDocumentParams, DocumentResponse] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[CreateDocumentParams]) (*mcpsdk.CallToolResultFor[DocumentResponse], error) {
		args := params.Arguments
		if args.ProjectID == "" {
			return nil, types.NewOpError("MISSING_PROJECT", "project_id is required", nil)
		}
		if strings.TrimSpace(args.Name) == "" {
			return nil, types.NewOpError("MISSING_NAME", "Document name is required", map[string]interface{}{
				"field": "name",
			})
		}

		result, err := s.assistant.ExecuteToolCall(ctx, args.ProjectID, models.ToolCall{
			Name: models.ToolCreateDocument,
			Args: models.ToolCallArgs{Name: strings.TrimSpace(args.Name), Category: args.Category, Content: args.Content},
		})
		if err != nil {
			return nil, types.NewOpError("CREATE_FAILED", err.Error(), nil)
		}
		if !result.Success || result.Artifact == nil {
			return nil, types.NewOpError("CREATE_FAILED", result.Message, nil)
		}
		return textResult(
			fmt.Sprintf("Created document '%s' with ID: %s", result.Artifact.Name, result.Artifact.ID),
			DocumentResponse{ID: result.Artifact.ID, Name: result.Artifact.Name},
		), nil
	}
}

func (s *Server) createTasksHandler() mcpsdk.ToolHandlerFor[CreateTasksParams, TaskListResponse] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[CreateTasksParams]) (*mcpsdk.CallToolResultFor[TaskListResponse], error) {
		args := params.Arguments
		if args.ProjectID == "" {
			return nil, types.NewOpError("MISSING_PROJECT", "project_id is required", nil)
		}
		if len(args.Tasks) == 0 {
			return nil, types.NewOpError("MISSING_TASKS", "At least one task is required", nil)
		}
		for _, spec := range args.Tasks {
			if strings.TrimSpace(spec.Title) == "" {
				return nil, types.NewOpError("MISSING_TITLE", "Task title is required", map[string]interface{}{
					"field": "title",
				})
			}
		}

		result, err := s.assistant.ExecuteToolCall(ctx, args.ProjectID, models.ToolCall{
			Name: models.ToolCreateTasks,
			Args: models.ToolCallArgs{Tasks: args.Tasks},
		})
		if err != nil {
			return nil, types.NewOpError("CREATE_FAILED", err.Error(), nil)
		}
		resp := TaskListResponse{Count: len(result.Tasks)}
		for _, t := range result.Tasks {
			resp.Tasks = append(resp.Tasks, TaskSummary{
				ID: t.ID, Title: t.Title, Status: string(t.Status), Quadrant: string(t.Quadrant),
			})
		}
		return textResult(fmt.Sprintf("Created %d task(s)", resp.Count), resp), nil
	}
}

func (s *Server) proposeEditHandler() mcpsdk.ToolHandlerFor[ProposeEditParams, ProposeEditResponse] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[ProposeEditParams]) (*mcpsdk.CallToolResultFor[ProposeEditResponse], error) {
		args := params.Arguments
		tool := models.ToolName(args.Tool)
		if !tool.IsEdit() {
			return nil, types.NewOpError("INVALID_TOOL", "tool must be one of rewrite_document, insert_in_document, replace_in_document", map[string]interface{}{
				"value": args.Tool,
			})
		}
		if args.ProjectID == "" {
			return nil, types.NewOpError("MISSING_PROJECT", "project_id is required", nil)
		}
		if args.DocumentID == "" && args.DocumentName == "" {
			return nil, types.NewOpError("MISSING_DOCUMENT", "document_id or document_name is required", nil)
		}

		result, err := s.assistant.EditDocument(ctx, args.ProjectID, store.EditRequest{
			ToolName:     tool,
			ArtifactID:   args.DocumentID,
			ArtifactName: args.DocumentName,
			Instructions: args.Instructions,
		})
		if err != nil {
			return nil, types.NewOpError("EDIT_FAILED", err.Error(), nil)
		}
		resp := ProposeEditResponse{
			DocumentID:      result.ArtifactID,
			EditType:        string(result.EditType),
			Summary:         result.EditSummary,
			OriginalContent: result.OriginalContent,
			ProposedContent: result.ModifiedContent,
		}
		return textResult("Proposed edit: "+result.EditSummary, resp), nil
	}
}

func (s *Server) editSelectionHandler() mcpsdk.ToolHandlerFor[EditSelectionParams, EditSelectionResponse] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[EditSelectionParams]) (*mcpsdk.CallToolResultFor[EditSelectionResponse], error) {
		args := params.Arguments
		if args.Selection == "" {
			return nil, types.NewOpError("MISSING_SELECTION", "selection is required", nil)
		}
		if strings.TrimSpace(args.Instruction) == "" {
			return nil, types.NewOpError("MISSING_INSTRUCTION", "instruction is required", map[string]interface{}{
				"field": "instruction",
			})
		}

		result, err := s.assistant.EditSelection(ctx, store.EditSelectionRequest{
			Selection:     args.Selection,
			ContextBefore: args.ContextBefore,
			ContextAfter:  args.ContextAfter,
			Instruction:   args.Instruction,
			FileType:      args.FileType,
		})
		if err != nil {
			return nil, types.NewOpError("EDIT_FAILED", err.Error(), nil)
		}
		return textResult("Selection rewritten", EditSelectionResponse{EditedText: result.EditedText}), nil
	}
}

func (s *Server) applyEditHandler() mcpsdk.ToolHandlerFor[ApplyEditParams, ApplyEditResponse] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[ApplyEditParams]) (*mcpsdk.CallToolResultFor[ApplyEditResponse], error) {
		args := params.Arguments
		if args.DocumentID == "" {
			return nil, types.NewOpError("MISSING_DOCUMENT", "document_id is required", nil)
		}

		live, err := s.store.GetArtifact(ctx, args.DocumentID)
		if err != nil {
			return nil, storeError(err, "document")
		}
		// Same guard as the in-app review: a proposal generated against an
		// older snapshot must not silently overwrite newer content.
		if live.Content != args.OriginalContent {
			return nil, types.NewOpError("STALE_PROPOSAL", "Document changed since the proposal was generated; re-propose the edit", map[string]interface{}{
				"document_id": args.DocumentID,
			})
		}

		if _, err := s.store.UpdateArtifact(ctx, args.DocumentID, store.ArtifactUpdate{Content: &args.Content}); err != nil {
			return nil, storeError(err, "document")
		}
		return textResult("Edit applied to "+live.Name, ApplyEditResponse{DocumentID: args.DocumentID}), nil
	}
}
