package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError emits the {"error","message"} body HTTPStore parses.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "store_error", err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return false
	}
	return true
}

// --- Projects ---

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var project models.Project
	if !decodeBody(w, r, &project) {
		return
	}
	created, err := s.store.CreateProject(r.Context(), project)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Files ---

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	artifacts, err := s.store.ListArtifacts(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (s *Server) handleGetFileByName(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.store.GetArtifactByName(r.Context(), r.PathValue("id"), r.PathValue("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var artifact models.Artifact
	if !decodeBody(w, r, &artifact) {
		return
	}
	created, err := s.store.CreateArtifact(r.Context(), artifact)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.store.GetArtifact(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	var update store.ArtifactUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	artifact, err := s.store.UpdateArtifact(r.Context(), r.PathValue("id"), update)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteArtifact(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Tasks ---

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var task models.Task
	if !decodeBody(w, r, &task) {
		return
	}
	created, err := s.store.CreateTask(r.Context(), task)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var update store.TaskUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	task, err := s.store.UpdateTask(r.Context(), r.PathValue("id"), update)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Chat sessions ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var session models.ChatSession
	if !decodeBody(w, r, &session) {
		return
	}
	created, err := s.store.CreateSession(r.Context(), session)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var update store.SessionUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	session, err := s.store.UpdateSession(r.Context(), r.PathValue("id"), update)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// messageEnvelope pairs a message with the index the store assigned to it.
type messageEnvelope struct {
	Message models.Message `json:"message"`
	Index   int            `json:"index"`
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var message models.Message
	if !decodeBody(w, r, &message) {
		return
	}
	stored, index, err := s.store.AppendMessage(r.Context(), r.PathValue("id"), message)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageEnvelope{Message: stored, Index: index})
}

// --- Assistant ---

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req store.SendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "text is required")
		return
	}
	reply, index, err := s.assistant.SendChatMessage(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageEnvelope{Message: reply, Index: index})
}

type executeToolRequest struct {
	ProjectID string              `json:"projectId"`
	Name      models.ToolName     `json:"name"`
	Args      models.ToolCallArgs `json:"args"`
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	var req executeToolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProjectID == "" || !req.Name.Known() {
		writeError(w, http.StatusBadRequest, "bad_request", "projectId and a known tool name are required")
		return
	}
	result, err := s.assistant.ExecuteToolCall(r.Context(), req.ProjectID, models.ToolCall{Name: req.Name, Args: req.Args})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type editDocumentRequest struct {
	ProjectID    string          `json:"projectId"`
	ToolName     models.ToolName `json:"toolName"`
	ArtifactID   string          `json:"artifactId,omitempty"`
	ArtifactName string          `json:"artifactName,omitempty"`
	Instructions string          `json:"instructions"`
}

func (s *Server) handleEditDocument(w http.ResponseWriter, r *http.Request) {
	var req editDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.ToolName.IsEdit() {
		writeError(w, http.StatusBadRequest, "bad_request", "toolName must be a document edit tool")
		return
	}
	result, err := s.assistant.EditDocument(r.Context(), req.ProjectID, store.EditRequest{
		ToolName:     req.ToolName,
		ArtifactID:   req.ArtifactID,
		ArtifactName: req.ArtifactName,
		Instructions: req.Instructions,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEditSelection(w http.ResponseWriter, r *http.Request) {
	var req store.EditSelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Selection == "" || req.Instruction == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "selection and instruction are required")
		return
	}
	result, err := s.assistant.EditSelection(r.Context(), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
