package models

import (
	"time"
)

// ProjectStatus tracks the coarse lifecycle stage of a project.
type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectCompleted  ProjectStatus = "completed"
)

// Project is the top-level workspace container. Artifacts, tasks, and chat
// sessions all hang off a project; deleting one cascades to its artifacts.
type Project struct {
	ID         string        `json:"id" validate:"required"`
	Name       string        `json:"name" validate:"required,min=1,max=255"`
	Status     ProjectStatus `json:"status" validate:"required,oneof=planning in-progress completed"`
	Tags       []string      `json:"tags,omitempty"`
	Difficulty string        `json:"difficulty,omitempty" validate:"omitempty,oneof=low medium high"`
	CreatedAt  time.Time     `json:"createdAt" validate:"required"`
	LastEdited time.Time     `json:"lastEdited" validate:"required"`
}
