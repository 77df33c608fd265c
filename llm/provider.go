// Package llm provides the interface to Large Language Models used for
// assistant chat replies and instruction-driven document edits.
package llm

import (
	"context"

	"github.com/forgeproj/forge/models"
)

// ChatRequest carries everything a provider needs to produce one
// assistant turn. History must already include the latest user message.
type ChatRequest struct {
	Model     string
	System    string
	History   []models.Message
	WebSearch bool
}

// ChatResponse is one assistant turn. ToolCalls holds any structured
// instructions the model emitted alongside (or instead of) prose.
type ChatResponse struct {
	Text      string
	ToolCalls []models.ToolCall
}

// EditOutcome is the result of an instruction-driven document transform.
type EditOutcome struct {
	ModifiedContent string
	Summary         string
}

// SelectionRequest scopes a transform to a selected span of a document.
// ContextBefore and ContextAfter are the text immediately around the
// selection; providers clamp them to a window before prompting.
type SelectionRequest struct {
	Selection     string
	ContextBefore string
	ContextAfter  string
	Instruction   string
	FileType      string
}

// Provider defines the contract for interacting with an LLM service.
type Provider interface {
	// Name identifies the provider, e.g. "google".
	Name() string

	// Chat generates one assistant reply for the conversation.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// TransformDocument applies natural-language edit instructions to a
	// document and returns the full modified content plus a one-line
	// summary of what changed. It never writes anywhere; persisting the
	// result is the caller's decision.
	TransformDocument(ctx context.Context, model string, kind models.EditKind, content, instructions string) (EditOutcome, error)

	// TransformSelection rewrites just the selected span according to
	// the instruction and returns the replacement text, nothing more.
	TransformSelection(ctx context.Context, model string, req SelectionRequest) (string, error)
}
