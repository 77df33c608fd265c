package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/forgeproj/forge/models"
)

// sqliteTimeLayout keeps a fixed fractional width so text timestamps sort
// lexicographically in ORDER BY clauses.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements ProjectStore on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and bootstraps
// the schema. Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'planning',
		tags TEXT,
		difficulty TEXT DEFAULT 'medium',
		created_at TEXT NOT NULL,
		last_edited TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		category TEXT,
		content TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL DEFAULT 5,
		created_at TEXT NOT NULL,
		last_edited TEXT NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'todo',
		priority TEXT NOT NULL DEFAULT 'low',
		importance TEXT NOT NULL DEFAULT 'low',
		difficulty TEXT,
		quadrant TEXT NOT NULL,
		linked_files TEXT,
		due_date TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT,
		pinned INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		tool_calls TEXT,
		refs TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE,
		UNIQUE(session_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_project ON artifacts(project_id);
	CREATE INDEX IF NOT EXISTS idx_artifacts_name ON artifacts(project_id, name);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_project ON chat_sessions(project_id);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, idx);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// touchProject bumps the project's last_edited timestamp. Artifact writes
// call it so the dashboard's recency sort stays accurate.
func (s *SQLiteStore) touchProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE projects SET last_edited = ? WHERE id = ?",
		time.Now().UTC().Format(sqliteTimeLayout), projectID)
	return err
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, project models.Project) (models.Project, error) {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.Status == "" {
		project.Status = models.ProjectPlanning
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.LastEdited = now

	if err := models.ValidateStruct(project); err != nil {
		return models.Project{}, fmt.Errorf("validate project: %w", err)
	}

	tags, err := json.Marshal(project.Tags)
	if err != nil {
		return models.Project{}, fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, status, tags, difficulty, created_at, last_edited) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.Status, string(tags), project.Difficulty,
		now.Format(sqliteTimeLayout), now.Format(sqliteTimeLayout))
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}

	// Every new project starts with the standard document set.
	for _, artifact := range seedArtifacts(project.ID) {
		if _, err := s.insertArtifact(ctx, artifact); err != nil {
			return models.Project{}, fmt.Errorf("seed templates: %w", err)
		}
	}
	return project, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (models.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, tags, difficulty, created_at, last_edited FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, status, tags, difficulty, created_at, last_edited FROM projects ORDER BY last_edited DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (models.Project, error) {
	var p models.Project
	var tags sql.NullString
	var difficulty sql.NullString
	var createdAt, lastEdited string
	err := row.Scan(&p.ID, &p.Name, &p.Status, &tags, &difficulty, &createdAt, &lastEdited)
	if err == sql.ErrNoRows {
		return models.Project{}, ErrNotFound
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("scan project: %w", err)
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
			return models.Project{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	p.Difficulty = difficulty.String
	p.CreatedAt = parseTime(createdAt)
	p.LastEdited = parseTime(lastEdited)
	return p, nil
}

// --- Artifacts ---

func (s *SQLiteStore) insertArtifact(ctx context.Context, artifact models.Artifact) (models.Artifact, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, project_id, name, type, category, content, priority, created_at, last_edited)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		artifact.ID, artifact.ProjectID, artifact.Name, artifact.Type, artifact.Category,
		artifact.Content, artifact.Priority,
		artifact.CreatedAt.UTC().Format(sqliteTimeLayout),
		artifact.LastEdited.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return models.Artifact{}, fmt.Errorf("insert artifact: %w", err)
	}
	return artifact, nil
}

func (s *SQLiteStore) CreateArtifact(ctx context.Context, artifact models.Artifact) (models.Artifact, error) {
	if artifact.ID == "" {
		artifact.ID = uuid.NewString()
	}
	if artifact.Type == "" {
		artifact.Type = models.ArtifactDoc
	}
	if artifact.Priority == 0 {
		artifact.Priority = 5
	}
	now := time.Now().UTC()
	artifact.CreatedAt = now
	artifact.LastEdited = now

	if err := models.ValidateStruct(artifact); err != nil {
		return models.Artifact{}, fmt.Errorf("validate artifact: %w", err)
	}
	created, err := s.insertArtifact(ctx, artifact)
	if err != nil {
		return models.Artifact{}, err
	}
	_ = s.touchProject(ctx, artifact.ProjectID)
	return created, nil
}

const artifactColumns = `id, project_id, name, type, category, content, priority, created_at, last_edited`

func (s *SQLiteStore) GetArtifact(ctx context.Context, id string) (models.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	return scanArtifact(row)
}

func (s *SQLiteStore) GetArtifactByName(ctx context.Context, projectID, name string) (models.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE project_id = ? AND name = ?`, projectID, name)
	return scanArtifact(row)
}

func (s *SQLiteStore) ListArtifacts(ctx context.Context, projectID string) ([]models.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE project_id = ? ORDER BY priority DESC, name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

func (s *SQLiteStore) UpdateArtifact(ctx context.Context, id string, update ArtifactUpdate) (models.Artifact, error) {
	artifact, err := s.GetArtifact(ctx, id)
	if err != nil {
		return models.Artifact{}, err
	}
	if update.Name != nil {
		artifact.Name = *update.Name
	}
	if update.Category != nil {
		artifact.Category = *update.Category
	}
	if update.Content != nil {
		artifact.Content = *update.Content
	}
	if update.Priority != nil {
		artifact.Priority = *update.Priority
	}
	artifact.LastEdited = time.Now().UTC()

	if err := models.ValidateStruct(artifact); err != nil {
		return models.Artifact{}, fmt.Errorf("validate artifact: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE artifacts SET name = ?, category = ?, content = ?, priority = ?, last_edited = ? WHERE id = ?`,
		artifact.Name, artifact.Category, artifact.Content, artifact.Priority,
		artifact.LastEdited.Format(sqliteTimeLayout), id)
	if err != nil {
		return models.Artifact{}, fmt.Errorf("update artifact: %w", err)
	}
	_ = s.touchProject(ctx, artifact.ProjectID)
	return artifact, nil
}

func (s *SQLiteStore) DeleteArtifact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM artifacts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return requireAffected(res)
}

func scanArtifact(row rowScanner) (models.Artifact, error) {
	var a models.Artifact
	var category sql.NullString
	var createdAt, lastEdited string
	err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Type, &category, &a.Content, &a.Priority, &createdAt, &lastEdited)
	if err == sql.ErrNoRows {
		return models.Artifact{}, ErrNotFound
	}
	if err != nil {
		return models.Artifact{}, fmt.Errorf("scan artifact: %w", err)
	}
	a.Category = category.String
	a.CreatedAt = parseTime(createdAt)
	a.LastEdited = parseTime(lastEdited)
	return a, nil
}

// --- Tasks ---

func (s *SQLiteStore) CreateTask(ctx context.Context, task models.Task) (models.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = time.Now().UTC()
	task.Normalize()

	if err := models.ValidateStruct(task); err != nil {
		return models.Task{}, fmt.Errorf("validate task: %w", err)
	}

	linked, err := json.Marshal(task.LinkedFiles)
	if err != nil {
		return models.Task{}, fmt.Errorf("marshal linked files: %w", err)
	}
	var dueDate any
	if task.DueDate != nil {
		dueDate = task.DueDate.UTC().Format(sqliteTimeLayout)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, title, description, status, priority, importance, difficulty, quadrant, linked_files, due_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ProjectID, task.Title, task.Description, task.Status, task.Priority,
		task.Importance, task.Difficulty, task.Quadrant, string(linked), dueDate,
		task.CreatedAt.Format(sqliteTimeLayout))
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

const taskColumns = `id, project_id, title, description, status, priority, importance, difficulty, quadrant, linked_files, due_date, created_at`

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (s *SQLiteStore) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, update TaskUpdate) (models.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if update.Title != nil {
		task.Title = *update.Title
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.Priority != nil {
		task.Priority = *update.Priority
	}
	if update.Importance != nil {
		task.Importance = *update.Importance
	}
	if update.Difficulty != nil {
		task.Difficulty = *update.Difficulty
	}
	if update.LinkedFiles != nil {
		task.LinkedFiles = update.LinkedFiles
	}
	// Quadrant always follows its inputs.
	task.Normalize()

	if err := models.ValidateStruct(task); err != nil {
		return models.Task{}, fmt.Errorf("validate task: %w", err)
	}

	linked, err := json.Marshal(task.LinkedFiles)
	if err != nil {
		return models.Task{}, fmt.Errorf("marshal linked files: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, importance = ?, difficulty = ?, quadrant = ?, linked_files = ? WHERE id = ?`,
		task.Title, task.Description, task.Status, task.Priority, task.Importance,
		task.Difficulty, task.Quadrant, string(linked), id)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(res)
}

func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	var description, difficulty, linked, dueDate sql.NullString
	var createdAt string
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &description, &t.Status, &t.Priority,
		&t.Importance, &difficulty, &t.Quadrant, &linked, &dueDate, &createdAt)
	if err == sql.ErrNoRows {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("scan task: %w", err)
	}
	t.Description = description.String
	t.Difficulty = models.TaskDifficulty(difficulty.String)
	if linked.Valid && linked.String != "" && linked.String != "null" {
		if err := json.Unmarshal([]byte(linked.String), &t.LinkedFiles); err != nil {
			return models.Task{}, fmt.Errorf("decode linked files: %w", err)
		}
	}
	if dueDate.Valid && dueDate.String != "" {
		due := parseTime(dueDate.String)
		t.DueDate = &due
	}
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

// --- Chat sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context, session models.ChatSession) (models.ChatSession, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	if err := models.ValidateStruct(session); err != nil {
		return models.ChatSession{}, fmt.Errorf("validate session: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, project_id, title, pinned, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.ProjectID, session.Title, boolToInt(session.Pinned),
		now.Format(sqliteTimeLayout), now.Format(sqliteTimeLayout))
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("insert session: %w", err)
	}
	for i, m := range session.Messages {
		if _, err := s.insertMessage(ctx, session.ID, i, m); err != nil {
			return models.ChatSession{}, err
		}
	}
	return session, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (models.ChatSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, title, pinned, created_at, updated_at FROM chat_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err != nil {
		return models.ChatSession{}, err
	}
	messages, err := s.listMessages(ctx, id)
	if err != nil {
		return models.ChatSession{}, err
	}
	session.Messages = messages
	return session, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, projectID string) ([]models.ChatSession, error) {
	// Pinned sessions first, then most recently updated.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, title, pinned, created_at, updated_at FROM chat_sessions
		 WHERE project_id = ? ORDER BY pinned DESC, updated_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, update SessionUpdate) (models.ChatSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return models.ChatSession{}, err
	}
	if update.Title != nil {
		session.Title = *update.Title
	}
	if update.Pinned != nil {
		session.Pinned = *update.Pinned
	}
	session.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET title = ?, pinned = ?, updated_at = ? WHERE id = ?`,
		session.Title, boolToInt(session.Pinned), session.UpdatedAt.Format(sqliteTimeLayout), id)
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("update session: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chat_sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireAffected(res)
}

// AppendMessage stores the message at the next free index and returns the
// stored message together with that definitive index.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, message models.Message) (models.Message, int, error) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	var next int
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx), -1) + 1 FROM chat_messages WHERE session_id = ?`, sessionID)
	if err := row.Scan(&next); err != nil {
		return models.Message{}, 0, fmt.Errorf("next message index: %w", err)
	}

	if _, err := s.insertMessage(ctx, sessionID, next, message); err != nil {
		return models.Message{}, 0, err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(sqliteTimeLayout), sessionID)
	if err != nil {
		return models.Message{}, 0, fmt.Errorf("touch session: %w", err)
	}
	return message, next, nil
}

func (s *SQLiteStore) insertMessage(ctx context.Context, sessionID string, idx int, m models.Message) (models.Message, error) {
	toolCalls, err := json.Marshal(m.ToolCalls)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal tool calls: %w", err)
	}
	refs, err := json.Marshal(m.References)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal references: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, idx, role, content, tool_calls, refs, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, sessionID, idx, m.Role, m.Content, string(toolCalls), string(refs),
		m.CreatedAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) listMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, tool_calls, refs, created_at FROM chat_messages
		 WHERE session_id = ? ORDER BY idx`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var toolCalls, refs sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &toolCalls, &refs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" && toolCalls.String != "null" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		if refs.Valid && refs.String != "" && refs.String != "null" {
			if err := json.Unmarshal([]byte(refs.String), &m.References); err != nil {
				return nil, fmt.Errorf("decode references: %w", err)
			}
		}
		m.CreatedAt = parseTime(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func scanSession(row rowScanner) (models.ChatSession, error) {
	var session models.ChatSession
	var title sql.NullString
	var pinned int
	var createdAt, updatedAt string
	err := row.Scan(&session.ID, &session.ProjectID, &title, &pinned, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return models.ChatSession{}, ErrNotFound
	}
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("scan session: %w", err)
	}
	session.Title = title.String
	session.Pinned = pinned != 0
	session.CreatedAt = parseTime(createdAt)
	session.UpdatedAt = parseTime(updatedAt)
	return session, nil
}

// --- helpers ---

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
