package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/forgeproj/forge/models"
)

// HTTPStore implements ProjectStore and AssistantClient against a remote
// workspace API over REST. Chat replies and document edits run server-side,
// so this is the backend the optimistic cache was designed around.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPStore creates a client for the API at baseURL. The token, when
// non-empty, is sent as a bearer credential on every request.
func NewHTTPStore(baseURL, token string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStore) Close() error { return nil }

// apiError is the wire shape of a non-2xx response body.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doJSON performs one request. A non-nil out is decoded from the response
// body. 404 is mapped to ErrNotFound so callers can branch on it.
func (s *HTTPStore) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && (ae.Error != "" || ae.Message != "") {
			msg := ae.Message
			if msg == "" {
				msg = ae.Error
			}
			return fmt.Errorf("%s %s: %s (status %d)", method, path, msg, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// --- Projects ---

func (s *HTTPStore) CreateProject(ctx context.Context, project models.Project) (models.Project, error) {
	var created models.Project
	err := s.doJSON(ctx, http.MethodPost, "/api/projects", project, &created)
	return created, err
}

func (s *HTTPStore) GetProject(ctx context.Context, id string) (models.Project, error) {
	var project models.Project
	err := s.doJSON(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &project)
	return project, err
}

func (s *HTTPStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := s.doJSON(ctx, http.MethodGet, "/api/projects", nil, &projects)
	return projects, err
}

func (s *HTTPStore) DeleteProject(ctx context.Context, id string) error {
	return s.doJSON(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
}

// --- Artifacts ---

func (s *HTTPStore) CreateArtifact(ctx context.Context, artifact models.Artifact) (models.Artifact, error) {
	var created models.Artifact
	err := s.doJSON(ctx, http.MethodPost, "/api/files", artifact, &created)
	return created, err
}

func (s *HTTPStore) GetArtifact(ctx context.Context, id string) (models.Artifact, error) {
	var artifact models.Artifact
	err := s.doJSON(ctx, http.MethodGet, "/api/files/"+url.PathEscape(id), nil, &artifact)
	return artifact, err
}

func (s *HTTPStore) GetArtifactByName(ctx context.Context, projectID, name string) (models.Artifact, error) {
	var artifact models.Artifact
	path := fmt.Sprintf("/api/projects/%s/files/by-name/%s", url.PathEscape(projectID), url.PathEscape(name))
	err := s.doJSON(ctx, http.MethodGet, path, nil, &artifact)
	return artifact, err
}

func (s *HTTPStore) ListArtifacts(ctx context.Context, projectID string) ([]models.Artifact, error) {
	var artifacts []models.Artifact
	err := s.doJSON(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/files", nil, &artifacts)
	return artifacts, err
}

func (s *HTTPStore) UpdateArtifact(ctx context.Context, id string, update ArtifactUpdate) (models.Artifact, error) {
	var artifact models.Artifact
	err := s.doJSON(ctx, http.MethodPatch, "/api/files/"+url.PathEscape(id), update, &artifact)
	return artifact, err
}

func (s *HTTPStore) DeleteArtifact(ctx context.Context, id string) error {
	return s.doJSON(ctx, http.MethodDelete, "/api/files/"+url.PathEscape(id), nil, nil)
}

// --- Tasks ---

func (s *HTTPStore) CreateTask(ctx context.Context, task models.Task) (models.Task, error) {
	var created models.Task
	err := s.doJSON(ctx, http.MethodPost, "/api/tasks", task, &created)
	return created, err
}

func (s *HTTPStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	err := s.doJSON(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &task)
	return task, err
}

func (s *HTTPStore) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	err := s.doJSON(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/tasks", nil, &tasks)
	return tasks, err
}

func (s *HTTPStore) UpdateTask(ctx context.Context, id string, update TaskUpdate) (models.Task, error) {
	var task models.Task
	err := s.doJSON(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), update, &task)
	return task, err
}

func (s *HTTPStore) DeleteTask(ctx context.Context, id string) error {
	return s.doJSON(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

// --- Chat sessions ---

func (s *HTTPStore) CreateSession(ctx context.Context, session models.ChatSession) (models.ChatSession, error) {
	var created models.ChatSession
	err := s.doJSON(ctx, http.MethodPost, "/api/chat/sessions", session, &created)
	return created, err
}

func (s *HTTPStore) GetSession(ctx context.Context, id string) (models.ChatSession, error) {
	var session models.ChatSession
	err := s.doJSON(ctx, http.MethodGet, "/api/chat/sessions/"+url.PathEscape(id), nil, &session)
	return session, err
}

func (s *HTTPStore) ListSessions(ctx context.Context, projectID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.doJSON(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/chat/sessions", nil, &sessions)
	return sessions, err
}

func (s *HTTPStore) UpdateSession(ctx context.Context, id string, update SessionUpdate) (models.ChatSession, error) {
	var session models.ChatSession
	err := s.doJSON(ctx, http.MethodPatch, "/api/chat/sessions/"+url.PathEscape(id), update, &session)
	return session, err
}

func (s *HTTPStore) DeleteSession(ctx context.Context, id string) error {
	return s.doJSON(ctx, http.MethodDelete, "/api/chat/sessions/"+url.PathEscape(id), nil, nil)
}

// appendMessageResponse carries the stored message plus the index the
// server assigned to it. The index is authoritative; local bookkeeping
// must adopt it rather than assume list position.
type appendMessageResponse struct {
	Message models.Message `json:"message"`
	Index   int            `json:"index"`
}

func (s *HTTPStore) AppendMessage(ctx context.Context, sessionID string, message models.Message) (models.Message, int, error) {
	var resp appendMessageResponse
	err := s.doJSON(ctx, http.MethodPost, "/api/chat/sessions/"+url.PathEscape(sessionID)+"/messages", message, &resp)
	if err != nil {
		return models.Message{}, 0, err
	}
	return resp.Message, resp.Index, nil
}

// --- AssistantClient ---

type sendMessagePayload struct {
	Text                  string `json:"text"`
	ContextMode           string `json:"contextMode,omitempty"`
	ReferencedArtifactIDs []string `json:"referencedArtifactIds,omitempty"`
	ReferencedTaskIDs     []string `json:"referencedTaskIds,omitempty"`
	WebSearch             bool   `json:"webSearch,omitempty"`
	ModelPreset           string `json:"modelPreset,omitempty"`
}

// SendChatMessage sends the user's text to the remote assistant and returns
// the assistant reply the server appended, along with its index.
func (s *HTTPStore) SendChatMessage(ctx context.Context, sessionID string, req SendMessageRequest) (models.Message, int, error) {
	payload := sendMessagePayload{
		Text:                  req.Text,
		ContextMode:           req.ContextMode,
		ReferencedArtifactIDs: req.ReferencedArtifactIDs,
		ReferencedTaskIDs:     req.ReferencedTaskIDs,
		WebSearch:             req.WebSearch,
		ModelPreset:           req.ModelPreset,
	}
	var resp appendMessageResponse
	err := s.doJSON(ctx, http.MethodPost, "/api/chat/sessions/"+url.PathEscape(sessionID)+"/send", payload, &resp)
	if err != nil {
		return models.Message{}, 0, err
	}
	return resp.Message, resp.Index, nil
}

type executeToolPayload struct {
	ProjectID string              `json:"projectId"`
	Name      models.ToolName     `json:"name"`
	Args      models.ToolCallArgs `json:"args"`
}

func (s *HTTPStore) ExecuteToolCall(ctx context.Context, projectID string, call models.ToolCall) (ToolResult, error) {
	payload := executeToolPayload{ProjectID: projectID, Name: call.Name, Args: call.Args}
	var result ToolResult
	err := s.doJSON(ctx, http.MethodPost, "/api/chat/tools/execute", payload, &result)
	return result, err
}

type editDocumentPayload struct {
	ProjectID    string          `json:"projectId"`
	ToolName     models.ToolName `json:"toolName"`
	ArtifactID   string          `json:"artifactId,omitempty"`
	ArtifactName string          `json:"artifactName,omitempty"`
	Instructions string          `json:"instructions"`
}

func (s *HTTPStore) EditDocument(ctx context.Context, projectID string, req EditRequest) (EditResult, error) {
	payload := editDocumentPayload{
		ProjectID:    projectID,
		ToolName:     req.ToolName,
		ArtifactID:   req.ArtifactID,
		ArtifactName: req.ArtifactName,
		Instructions: req.Instructions,
	}
	var result EditResult
	err := s.doJSON(ctx, http.MethodPost, "/api/chat/tools/edit", payload, &result)
	return result, err
}

func (s *HTTPStore) EditSelection(ctx context.Context, req EditSelectionRequest) (EditSelectionResult, error) {
	var result EditSelectionResult
	err := s.doJSON(ctx, http.MethodPost, "/api/chat/tools/edit-selection", req, &result)
	return result, err
}
