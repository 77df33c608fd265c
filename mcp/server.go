/*
Copyright © 2025 The Forge Authors
*/

// Package mcp exposes the Forge workspace over the Model Context Protocol,
// so external AI agents can create documents and tasks or propose edits
// through the same engine the chat assistant uses.
package mcp

import (
	"context"
	"fmt"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgeproj/forge/store"
)

// Server wraps the MCP server with the stores its tools operate on.
type Server struct {
	mcp       *mcpsdk.Server
	store     store.ProjectStore
	assistant store.AssistantClient
}

// NewServer builds the MCP server and registers the workspace tools.
func NewServer(st store.ProjectStore, assistant store.AssistantClient, version string) *Server {
	impl := &mcpsdk.Implementation{
		Name:    "forge-mcp",
		Version: version,
	}
	serverOpts := &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			fmt.Fprintf(os.Stderr, "✓ MCP connection established\n")
		},
	}

	s := &Server{
		mcp:       mcpsdk.NewServer(impl, serverOpts),
		store:     st,
		assistant: assistant,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, mcpsdk.NewStdioTransport())
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "list-projects",
		Description: "List all projects in the workspace with their status and recency.",
	}, s.listProjectsHandler())

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "list-documents",
		Description: "List a project's documents. Use {\"project_id\":\"...\"}.",
	}, s.listDocumentsHandler())

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "list-tasks",
		Description: "List a project's tasks with their derived urgency/importance quadrant.",
	}, s.listTasksHandler())

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "create-document",
		Description: "Create a new project document with a name, optional category, and full content.",
	}, s.createDocumentHandler())

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "create-tasks",
		Description: "Add one or more tasks to a project board. Quadrants are derived from priority and importance.",
	}, s.createTasksHandler())

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "propose-edit",
		Description: "Propose an AI edit to a document (rewrite, insert, or replace). Returns the original and proposed content for review; nothing is written until the proposal is applied.",
	}, s.proposeEditHandler())

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "edit-selection",
		Description: "Rewrite a selected span of text per an instruction, using the surrounding context. Returns only the replacement text; nothing is written.",
	}, s.editSelectionHandler())

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "apply-edit",
		Description: "Apply previously proposed content to a document. Fails if the document changed since the proposal's original snapshot was taken.",
	}, s.applyEditHandler())
}
