package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/forgeproj/forge/models"
)

const checksumSuffix = ".checksum"

// fileDocument is the single on-disk document holding every entity. The
// file store trades query power for a format a user can read and edit.
type fileDocument struct {
	Projects  []models.Project     `json:"projects" yaml:"projects" toml:"projects"`
	Artifacts []models.Artifact    `json:"artifacts" yaml:"artifacts" toml:"artifacts"`
	Tasks     []models.Task        `json:"tasks" yaml:"tasks" toml:"tasks"`
	Sessions  []models.ChatSession `json:"sessions" yaml:"sessions" toml:"sessions"`
}

// FileStore implements ProjectStore on a single flat file, guarded by an
// advisory file lock so multiple processes can share it. Every operation
// reloads from disk first; the lock serializes writers.
type FileStore struct {
	filePath string
	format   string
	flk      *flock.Flock
	doc      fileDocument
}

// NewFileStore opens the store at filePath. Format must be one of
// "json", "yaml", or "toml".
func NewFileStore(filePath, format string) (*FileStore, error) {
	switch format {
	case "json", "yaml", "toml":
	default:
		return nil, fmt.Errorf("unsupported file format: %q", format)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	s := &FileStore{
		filePath: filePath,
		format:   format,
		flk:      flock.New(filePath),
	}
	if err := s.flk.Lock(); err != nil {
		return nil, fmt.Errorf("lock store file: %w", err)
	}
	defer func() { _ = s.flk.Unlock() }()
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Close() error {
	return s.flk.Unlock()
}

func fileChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// load reads the document from disk, verifying the checksum sidecar when
// one exists. A missing data file yields an empty document.
func (s *FileStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.doc = fileDocument{}
			return nil
		}
		return fmt.Errorf("read store file: %w", err)
	}

	checksumPath := s.filePath + checksumSuffix
	if expected, err := os.ReadFile(checksumPath); err == nil {
		if actual := fileChecksum(data); actual != strings.TrimSpace(string(expected)) {
			return fmt.Errorf("checksum mismatch for %s: file is corrupt or was modified outside the store", s.filePath)
		}
	}

	if len(data) == 0 {
		s.doc = fileDocument{}
		return nil
	}

	var doc fileDocument
	switch s.format {
	case "json":
		err = json.Unmarshal(data, &doc)
	case "yaml":
		err = yaml.Unmarshal(data, &doc)
	case "toml":
		err = toml.Unmarshal(data, &doc)
	}
	if err != nil {
		return fmt.Errorf("decode %s store file: %w", s.format, err)
	}
	s.doc = doc
	return nil
}

// save writes the document and its checksum atomically via temp files.
func (s *FileStore) save() error {
	var data []byte
	var err error
	switch s.format {
	case "json":
		data, err = json.MarshalIndent(s.doc, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(s.doc)
	case "toml":
		var buf strings.Builder
		err = toml.NewEncoder(&buf).Encode(s.doc)
		data = []byte(buf.String())
	}
	if err != nil {
		return fmt.Errorf("encode %s store file: %w", s.format, err)
	}

	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp store file: %w", err)
	}
	checksumPath := s.filePath + checksumSuffix
	tempChecksumPath := checksumPath + ".tmp"
	if err := os.WriteFile(tempChecksumPath, []byte(fileChecksum(data)), 0o644); err != nil {
		return fmt.Errorf("write temp checksum file: %w", err)
	}
	if err := os.Rename(tempPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	if err := os.Rename(tempChecksumPath, checksumPath); err != nil {
		return fmt.Errorf("replace checksum file: %w", err)
	}
	return nil
}

// withLock runs fn with the file lock held and the freshest document
// loaded. Mutations must call save themselves.
func (s *FileStore) withLock(fn func() error) error {
	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("lock store file: %w", err)
	}
	defer func() { _ = s.flk.Unlock() }()
	if err := s.load(); err != nil {
		return err
	}
	return fn()
}

func (s *FileStore) touchProject(projectID string) {
	for i := range s.doc.Projects {
		if s.doc.Projects[i].ID == projectID {
			s.doc.Projects[i].LastEdited = time.Now().UTC()
			return
		}
	}
}

// --- Projects ---

func (s *FileStore) CreateProject(_ context.Context, project models.Project) (models.Project, error) {
	err := s.withLock(func() error {
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
			return fmt.Errorf("validate project: %w", err)
		}
		s.doc.Projects = append(s.doc.Projects, project)
		s.doc.Artifacts = append(s.doc.Artifacts, seedArtifacts(project.ID)...)
		return s.save()
	})
	if err != nil {
		return models.Project{}, err
	}
	return project, nil
}

func (s *FileStore) GetProject(_ context.Context, id string) (models.Project, error) {
	var project models.Project
	err := s.withLock(func() error {
		for _, p := range s.doc.Projects {
			if p.ID == id {
				project = p
				return nil
			}
		}
		return ErrNotFound
	})
	return project, err
}

func (s *FileStore) ListProjects(_ context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := s.withLock(func() error {
		projects = append(projects, s.doc.Projects...)
		sort.Slice(projects, func(i, j int) bool {
			return projects[i].LastEdited.After(projects[j].LastEdited)
		})
		return nil
	})
	return projects, err
}

func (s *FileStore) DeleteProject(_ context.Context, id string) error {
	return s.withLock(func() error {
		idx := -1
		for i, p := range s.doc.Projects {
			if p.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		s.doc.Projects = append(s.doc.Projects[:idx], s.doc.Projects[idx+1:]...)

		// Cascade: drop everything owned by the project.
		s.doc.Artifacts = filterSlice(s.doc.Artifacts, func(a models.Artifact) bool { return a.ProjectID != id })
		s.doc.Tasks = filterSlice(s.doc.Tasks, func(t models.Task) bool { return t.ProjectID != id })
		s.doc.Sessions = filterSlice(s.doc.Sessions, func(c models.ChatSession) bool { return c.ProjectID != id })
		return s.save()
	})
}

func filterSlice[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// --- Artifacts ---

func (s *FileStore) CreateArtifact(_ context.Context, artifact models.Artifact) (models.Artifact, error) {
	err := s.withLock(func() error {
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
			return fmt.Errorf("validate artifact: %w", err)
		}
		s.doc.Artifacts = append(s.doc.Artifacts, artifact)
		s.touchProject(artifact.ProjectID)
		return s.save()
	})
	if err != nil {
		return models.Artifact{}, err
	}
	return artifact, nil
}

func (s *FileStore) GetArtifact(_ context.Context, id string) (models.Artifact, error) {
	var artifact models.Artifact
	err := s.withLock(func() error {
		for _, a := range s.doc.Artifacts {
			if a.ID == id {
				artifact = a
				return nil
			}
		}
		return ErrNotFound
	})
	return artifact, err
}

func (s *FileStore) GetArtifactByName(_ context.Context, projectID, name string) (models.Artifact, error) {
	var artifact models.Artifact
	err := s.withLock(func() error {
		for _, a := range s.doc.Artifacts {
			if a.ProjectID == projectID && a.Name == name {
				artifact = a
				return nil
			}
		}
		return ErrNotFound
	})
	return artifact, err
}

func (s *FileStore) ListArtifacts(_ context.Context, projectID string) ([]models.Artifact, error) {
	var artifacts []models.Artifact
	err := s.withLock(func() error {
		for _, a := range s.doc.Artifacts {
			if a.ProjectID == projectID {
				artifacts = append(artifacts, a)
			}
		}
		sort.Slice(artifacts, func(i, j int) bool {
			if artifacts[i].Priority != artifacts[j].Priority {
				return artifacts[i].Priority > artifacts[j].Priority
			}
			return artifacts[i].Name < artifacts[j].Name
		})
		return nil
	})
	return artifacts, err
}

func (s *FileStore) UpdateArtifact(_ context.Context, id string, update ArtifactUpdate) (models.Artifact, error) {
	var artifact models.Artifact
	err := s.withLock(func() error {
		for i := range s.doc.Artifacts {
			if s.doc.Artifacts[i].ID != id {
				continue
			}
			a := s.doc.Artifacts[i]
			if update.Name != nil {
				a.Name = *update.Name
			}
			if update.Category != nil {
				a.Category = *update.Category
			}
			if update.Content != nil {
				a.Content = *update.Content
			}
			if update.Priority != nil {
				a.Priority = *update.Priority
			}
			a.LastEdited = time.Now().UTC()
			if err := models.ValidateStruct(a); err != nil {
				return fmt.Errorf("validate artifact: %w", err)
			}
			s.doc.Artifacts[i] = a
			s.touchProject(a.ProjectID)
			artifact = a
			return s.save()
		}
		return ErrNotFound
	})
	return artifact, err
}

func (s *FileStore) DeleteArtifact(_ context.Context, id string) error {
	return s.withLock(func() error {
		before := len(s.doc.Artifacts)
		s.doc.Artifacts = filterSlice(s.doc.Artifacts, func(a models.Artifact) bool { return a.ID != id })
		if len(s.doc.Artifacts) == before {
			return ErrNotFound
		}
		return s.save()
	})
}

// --- Tasks ---

func (s *FileStore) CreateTask(_ context.Context, task models.Task) (models.Task, error) {
	err := s.withLock(func() error {
		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		task.CreatedAt = time.Now().UTC()
		task.Normalize()
		if err := models.ValidateStruct(task); err != nil {
			return fmt.Errorf("validate task: %w", err)
		}
		s.doc.Tasks = append(s.doc.Tasks, task)
		return s.save()
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *FileStore) GetTask(_ context.Context, id string) (models.Task, error) {
	var task models.Task
	err := s.withLock(func() error {
		for _, t := range s.doc.Tasks {
			if t.ID == id {
				task = t
				return nil
			}
		}
		return ErrNotFound
	})
	return task, err
}

func (s *FileStore) ListTasks(_ context.Context, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	err := s.withLock(func() error {
		for _, t := range s.doc.Tasks {
			if t.ProjectID == projectID {
				tasks = append(tasks, t)
			}
		}
		sort.Slice(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		})
		return nil
	})
	return tasks, err
}

func (s *FileStore) UpdateTask(_ context.Context, id string, update TaskUpdate) (models.Task, error) {
	var task models.Task
	err := s.withLock(func() error {
		for i := range s.doc.Tasks {
			if s.doc.Tasks[i].ID != id {
				continue
			}
			t := s.doc.Tasks[i]
			if update.Title != nil {
				t.Title = *update.Title
			}
			if update.Description != nil {
				t.Description = *update.Description
			}
			if update.Status != nil {
				t.Status = *update.Status
			}
			if update.Priority != nil {
				t.Priority = *update.Priority
			}
			if update.Importance != nil {
				t.Importance = *update.Importance
			}
			if update.Difficulty != nil {
				t.Difficulty = *update.Difficulty
			}
			if update.LinkedFiles != nil {
				t.LinkedFiles = update.LinkedFiles
			}
			t.Normalize()
			if err := models.ValidateStruct(t); err != nil {
				return fmt.Errorf("validate task: %w", err)
			}
			s.doc.Tasks[i] = t
			task = t
			return s.save()
		}
		return ErrNotFound
	})
	return task, err
}

func (s *FileStore) DeleteTask(_ context.Context, id string) error {
	return s.withLock(func() error {
		before := len(s.doc.Tasks)
		s.doc.Tasks = filterSlice(s.doc.Tasks, func(t models.Task) bool { return t.ID != id })
		if len(s.doc.Tasks) == before {
			return ErrNotFound
		}
		return s.save()
	})
}

// --- Chat sessions ---

func (s *FileStore) CreateSession(_ context.Context, session models.ChatSession) (models.ChatSession, error) {
	err := s.withLock(func() error {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		session.CreatedAt = now
		session.UpdatedAt = now
		if err := models.ValidateStruct(session); err != nil {
			return fmt.Errorf("validate session: %w", err)
		}
		s.doc.Sessions = append(s.doc.Sessions, session)
		return s.save()
	})
	if err != nil {
		return models.ChatSession{}, err
	}
	return session, nil
}

func (s *FileStore) GetSession(_ context.Context, id string) (models.ChatSession, error) {
	var session models.ChatSession
	err := s.withLock(func() error {
		for _, c := range s.doc.Sessions {
			if c.ID == id {
				session = *c.Clone()
				return nil
			}
		}
		return ErrNotFound
	})
	return session, err
}

func (s *FileStore) ListSessions(_ context.Context, projectID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.withLock(func() error {
		for _, c := range s.doc.Sessions {
			if c.ProjectID == projectID {
				sessions = append(sessions, *c.Clone())
			}
		}
		// Pinned sessions first, then most recently updated.
		sort.SliceStable(sessions, func(i, j int) bool {
			if sessions[i].Pinned != sessions[j].Pinned {
				return sessions[i].Pinned
			}
			return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
		})
		return nil
	})
	return sessions, err
}

func (s *FileStore) UpdateSession(_ context.Context, id string, update SessionUpdate) (models.ChatSession, error) {
	var session models.ChatSession
	err := s.withLock(func() error {
		for i := range s.doc.Sessions {
			if s.doc.Sessions[i].ID != id {
				continue
			}
			if update.Title != nil {
				s.doc.Sessions[i].Title = *update.Title
			}
			if update.Pinned != nil {
				s.doc.Sessions[i].Pinned = *update.Pinned
			}
			s.doc.Sessions[i].UpdatedAt = time.Now().UTC()
			session = *s.doc.Sessions[i].Clone()
			return s.save()
		}
		return ErrNotFound
	})
	return session, err
}

func (s *FileStore) DeleteSession(_ context.Context, id string) error {
	return s.withLock(func() error {
		before := len(s.doc.Sessions)
		s.doc.Sessions = filterSlice(s.doc.Sessions, func(c models.ChatSession) bool { return c.ID != id })
		if len(s.doc.Sessions) == before {
			return ErrNotFound
		}
		return s.save()
	})
}

func (s *FileStore) AppendMessage(_ context.Context, sessionID string, message models.Message) (models.Message, int, error) {
	var idx int
	err := s.withLock(func() error {
		for i := range s.doc.Sessions {
			if s.doc.Sessions[i].ID != sessionID {
				continue
			}
			if message.ID == "" {
				message.ID = uuid.NewString()
			}
			if message.CreatedAt.IsZero() {
				message.CreatedAt = time.Now().UTC()
			}
			idx = s.doc.Sessions[i].Append(message)
			return s.save()
		}
		return ErrNotFound
	})
	if err != nil {
		return models.Message{}, 0, err
	}
	return message, idx, nil
}
