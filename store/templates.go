package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/forgeproj/forge/models"
)

// documentTemplate describes one of the starter documents seeded into every
// new project.
type documentTemplate struct {
	Name     string
	Category string
	Content  string
}

var defaultTemplates = []documentTemplate{
	{"Project-Overview.md", "Docs", "# Project Overview\n\n## Core Concept\n\n## Target User\n\n## Key Features"},
	{"Implementation-Plan.md", "Docs", "# Implementation Plan\n\n## Phase 1\n\n## Phase 2"},
	{"Technical-Stack.md", "Docs", "# Technical Stack\n\n- Frontend:\n- Backend:\n- Database:"},
	{"App-Structure.md", "Docs", "# App Structure\n\n- /app\n  - /src"},
	{"UI-Guidelines.md", "Docs", "# UI Guidelines\n\n- Colors:\n- Typography:"},
}

// seedArtifacts materializes the starter documents for a new project.
func seedArtifacts(projectID string) []models.Artifact {
	now := time.Now().UTC()
	artifacts := make([]models.Artifact, 0, len(defaultTemplates))
	for _, tmpl := range defaultTemplates {
		artifacts = append(artifacts, models.Artifact{
			ID:         uuid.NewString(),
			ProjectID:  projectID,
			Name:       tmpl.Name,
			Type:       models.ArtifactDoc,
			Category:   tmpl.Category,
			Content:    tmpl.Content,
			Priority:   5,
			CreatedAt:  now,
			LastEdited: now,
		})
	}
	return artifacts
}
