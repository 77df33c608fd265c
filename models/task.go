package models

import (
	"time"
)

// TaskStatus represents the possible statuses of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
)

// TaskPriority captures urgency. The matrix view treats it as the
// urgency axis of the quadrant board.
type TaskPriority string

const (
	PriorityLow  TaskPriority = "low"
	PriorityHigh TaskPriority = "high"
)

// TaskImportance is the second quadrant axis.
type TaskImportance string

const (
	ImportanceLow  TaskImportance = "low"
	ImportanceHigh TaskImportance = "high"
)

// TaskDifficulty is a display hint only; it does not affect the quadrant.
type TaskDifficulty string

const (
	DifficultyEasy   TaskDifficulty = "easy"
	DifficultyMedium TaskDifficulty = "medium"
	DifficultyHard   TaskDifficulty = "hard"
)

// Quadrant is the derived urgency/importance bucket used by the matrix board.
type Quadrant string

const (
	QuadrantOne   Quadrant = "q1" // urgent + important
	QuadrantTwo   Quadrant = "q2" // not urgent + important
	QuadrantThree Quadrant = "q3" // urgent + not important
	QuadrantFour  Quadrant = "q4" // not urgent + not important
)

// Task represents a unit of work on the project board.
type Task struct {
	ID          string         `json:"id" validate:"required"`
	ProjectID   string         `json:"projectId" validate:"required"`
	Title       string         `json:"title" validate:"required,min=1,max=255"`
	Description string         `json:"description,omitempty"`
	Status      TaskStatus     `json:"status" validate:"required,oneof=todo in-progress done"`
	Priority    TaskPriority   `json:"priority" validate:"required,oneof=low high"`
	Importance  TaskImportance `json:"importance" validate:"required,oneof=low high"`
	Difficulty  TaskDifficulty `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	// Quadrant is derived from Priority and Importance. It is stored for
	// cheap reads but must never be set directly; Normalize recomputes it.
	Quadrant    Quadrant   `json:"quadrant" validate:"required,oneof=q1 q2 q3 q4"`
	LinkedFiles []string   `json:"linkedFiles,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty" toml:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" validate:"required"`
}

// QuadrantFor maps the (priority, importance) pair to its matrix quadrant.
// Every create and update path must route through it (via Normalize) so the
// stored quadrant can never disagree with its inputs.
func QuadrantFor(priority TaskPriority, importance TaskImportance) Quadrant {
	switch {
	case priority == PriorityHigh && importance == ImportanceHigh:
		return QuadrantOne
	case priority == PriorityLow && importance == ImportanceHigh:
		return QuadrantTwo
	case priority == PriorityHigh && importance == ImportanceLow:
		return QuadrantThree
	default:
		return QuadrantFour
	}
}

// Normalize fills defaults and recomputes derived fields. It must be called
// after any mutation of Priority or Importance.
func (t *Task) Normalize() {
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityLow
	}
	if t.Importance == "" {
		t.Importance = ImportanceLow
	}
	t.Quadrant = QuadrantFor(t.Priority, t.Importance)
}

// NewTask creates a task with defaults applied and the quadrant derived.
func NewTask(id, projectID, title string) *Task {
	t := &Task{
		ID:        id,
		ProjectID: projectID,
		Title:     title,
		Status:    StatusTodo,
		CreatedAt: time.Now(),
	}
	t.Normalize()
	return t
}
