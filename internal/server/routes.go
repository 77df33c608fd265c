package server

import "net/http"

// registerRoutes sets up all API endpoints. Paths mirror what
// store.HTTPStore requests.
func (s *Server) registerRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("GET /api/projects/{id}/files", s.handleListFiles)
	mux.HandleFunc("GET /api/projects/{id}/files/by-name/{name}", s.handleGetFileByName)
	mux.HandleFunc("GET /api/projects/{id}/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/projects/{id}/chat/sessions", s.handleListSessions)

	mux.HandleFunc("POST /api/files", s.handleCreateFile)
	mux.HandleFunc("GET /api/files/{id}", s.handleGetFile)
	mux.HandleFunc("PATCH /api/files/{id}", s.handleUpdateFile)
	mux.HandleFunc("DELETE /api/files/{id}", s.handleDeleteFile)

	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)

	mux.HandleFunc("POST /api/chat/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/chat/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PATCH /api/chat/sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("DELETE /api/chat/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/chat/sessions/{id}/messages", s.handleAppendMessage)
	mux.HandleFunc("POST /api/chat/sessions/{id}/send", s.handleSendMessage)

	mux.HandleFunc("POST /api/chat/tools/execute", s.handleExecuteTool)
	mux.HandleFunc("POST /api/chat/tools/edit", s.handleEditDocument)
	mux.HandleFunc("POST /api/chat/tools/edit-selection", s.handleEditSelection)

	return s.corsMiddleware(s.authMiddleware(mux))
}
