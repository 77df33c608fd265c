package models

import (
	"time"
)

// ArtifactType distinguishes documents from code files.
type ArtifactType string

const (
	ArtifactDoc  ArtifactType = "doc"
	ArtifactCode ArtifactType = "code"
)

// Artifact is a project document or code file managed by the workspace.
// Artifacts are created either by direct user action or by a
// create_document tool call; content changes flow through the optimistic
// cache (debounced autosave or an accepted diff review). The core never
// deletes artifacts.
type Artifact struct {
	ID        string       `json:"id" validate:"required"`
	ProjectID string       `json:"projectId" validate:"required"`
	Name      string       `json:"name" validate:"required,min=1,max=255"`
	Type      ArtifactType `json:"type" validate:"required,oneof=doc code"`
	Category  string       `json:"category,omitempty"`
	Content   string       `json:"content"`
	// Priority orders artifacts in the sidebar, 1-10 with 10 highest.
	Priority   int       `json:"priority" validate:"omitempty,min=1,max=10"`
	CreatedAt  time.Time `json:"createdAt" validate:"required"`
	LastEdited time.Time `json:"lastEdited" validate:"required"`
}

// NewArtifact creates a document artifact with timestamps set.
func NewArtifact(id, projectID, name, category, content string) *Artifact {
	now := time.Now()
	return &Artifact{
		ID:         id,
		ProjectID:  projectID,
		Name:       name,
		Type:       ArtifactDoc,
		Category:   category,
		Content:    content,
		Priority:   5,
		CreatedAt:  now,
		LastEdited: now,
	}
}

// Clone returns a deep copy. The optimistic cache snapshots artifacts
// before mutating them, so shared pointers would defeat rollback.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
