package models

import (
	"time"
)

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ToolName enumerates the structured instructions an assistant message may
// embed. The three *_document edit kinds produce diff reviews; the two
// create kinds mutate the project directly.
type ToolName string

const (
	ToolCreateDocument    ToolName = "create_document"
	ToolCreateTasks       ToolName = "create_tasks"
	ToolRewriteDocument   ToolName = "rewrite_document"
	ToolInsertInDocument  ToolName = "insert_in_document"
	ToolReplaceInDocument ToolName = "replace_in_document"
)

// EditKind is the review-facing classification of an edit tool call.
type EditKind string

const (
	EditRewrite EditKind = "rewrite"
	EditInsert  EditKind = "insert"
	EditReplace EditKind = "replace"
)

// IsEdit reports whether the tool call produces a diff review rather than
// an immediate mutation.
func (n ToolName) IsEdit() bool {
	switch n {
	case ToolRewriteDocument, ToolInsertInDocument, ToolReplaceInDocument:
		return true
	}
	return false
}

// EditKind maps an edit tool name to its review kind. Returns "" for
// non-edit tools.
func (n ToolName) EditKind() EditKind {
	switch n {
	case ToolRewriteDocument:
		return EditRewrite
	case ToolInsertInDocument:
		return EditInsert
	case ToolReplaceInDocument:
		return EditReplace
	}
	return ""
}

// Known reports whether the name is one of the five supported tools.
func (n ToolName) Known() bool {
	switch n {
	case ToolCreateDocument, ToolCreateTasks, ToolRewriteDocument,
		ToolInsertInDocument, ToolReplaceInDocument:
		return true
	}
	return false
}

// TaskSpec is one entry of a create_tasks argument bag.
type TaskSpec struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Importance  string `json:"importance,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
}

// ToolCallArgs is the argument bag carried by a tool call. Which fields are
// populated depends on the tool name.
type ToolCallArgs struct {
	// create_document
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content,omitempty"`
	// edit kinds
	ArtifactID   string `json:"artifactId,omitempty"`
	ArtifactName string `json:"artifactName,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	// create_tasks
	Tasks []TaskSpec `json:"tasks,omitempty"`
}

// ToolCall is a structured instruction embedded in an assistant message.
// Execution status is deliberately NOT part of this struct: messages are
// immutable once appended, so outcome tracking lives in the dispatcher's
// side state keyed by message ID.
type ToolCall struct {
	Name ToolName     `json:"name"`
	Args ToolCallArgs `json:"args"`
}

// ReferenceType tags an inline mention extracted from message text.
type ReferenceType string

const (
	RefFile ReferenceType = "file"
	RefTask ReferenceType = "task"
)

// Reference is a (type, name) pair used for deep-linking only. It is not
// persisted outside the message text it annotates.
type Reference struct {
	Type ReferenceType `json:"type"`
	Name string        `json:"name"`
}

// Message is a single chat transcript entry. The message list is
// append-only; a message's position defines its index, and its ID is the
// stable join key for any derived artifact state it produced.
type Message struct {
	ID         string      `json:"id" validate:"required"`
	Role       MessageRole `json:"role" validate:"required,oneof=user assistant"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"toolCalls,omitempty"`
	References []Reference `json:"references,omitempty"`
	CreatedAt  time.Time   `json:"createdAt" validate:"required"`
}

// ChatSession is one conversation thread owned by a project.
type ChatSession struct {
	ID        string    `json:"id" validate:"required"`
	ProjectID string    `json:"projectId" validate:"required"`
	Title     string    `json:"title"`
	Pinned    bool      `json:"pinned"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt" validate:"required"`
	UpdatedAt time.Time `json:"updatedAt" validate:"required"`
}

// Append adds a message to the transcript and returns its index. This is
// the only sanctioned way to grow the message list.
func (s *ChatSession) Append(m Message) int {
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = time.Now()
	return len(s.Messages) - 1
}

// MessageAt returns the message at the given index, or nil if out of range.
func (s *ChatSession) MessageAt(i int) *Message {
	if i < 0 || i >= len(s.Messages) {
		return nil
	}
	return &s.Messages[i]
}

// Clone returns a deep copy of the session, including its message list.
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Messages = make([]Message, len(s.Messages))
	copy(cp.Messages, s.Messages)
	return &cp
}
