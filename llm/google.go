package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/forgeproj/forge/models"
)

// GoogleProvider implements Provider on the Gemini API.
type GoogleProvider struct {
	client  *genai.Client
	timeout time.Duration
	debug   bool
}

// NewGoogleProvider creates a provider talking to the Gemini API with the
// given key.
func NewGoogleProvider(ctx context.Context, apiKey string, timeout time.Duration, debug bool) (*GoogleProvider, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GoogleProvider{client: client, timeout: timeout, debug: debug}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

// workspaceToolDeclarations describes the structured instructions the
// assistant may emit. Edits go through a diff review before anything is
// written, so the declarations only describe intent, not persistence.
func workspaceToolDeclarations() []*genai.FunctionDeclaration {
	editProps := func() map[string]*genai.Schema {
		return map[string]*genai.Schema{
			"artifactId": {
				Type:        genai.TypeString,
				Description: "ID of the document to edit. Prefer this over artifactName when known.",
			},
			"artifactName": {
				Type:        genai.TypeString,
				Description: "Exact name of the document to edit, e.g. Implementation-Plan.md.",
			},
			"instructions": {
				Type:        genai.TypeString,
				Description: "Natural-language description of the edit to perform.",
			},
		}
	}

	return []*genai.FunctionDeclaration{
		{
			Name:        string(models.ToolCreateDocument),
			Description: "Create a new project document with the given name, category, and full markdown content.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":     {Type: genai.TypeString, Description: "File name including extension, e.g. API-Design.md."},
					"category": {Type: genai.TypeString, Description: "Grouping label such as planning, design, or reference."},
					"content":  {Type: genai.TypeString, Description: "Complete initial content of the document."},
				},
				Required: []string{"name", "content"},
			},
		},
		{
			Name:        string(models.ToolCreateTasks),
			Description: "Add one or more tasks to the project board.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"tasks": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"title":       {Type: genai.TypeString},
								"description": {Type: genai.TypeString},
								"priority":    {Type: genai.TypeString, Enum: []string{"low", "high"}},
								"importance":  {Type: genai.TypeString, Enum: []string{"low", "high"}},
								"difficulty":  {Type: genai.TypeString, Enum: []string{"easy", "medium", "hard"}},
							},
							Required: []string{"title"},
						},
					},
				},
				Required: []string{"tasks"},
			},
		},
		{
			Name:        string(models.ToolRewriteDocument),
			Description: "Rewrite an entire document according to the instructions. The user reviews the diff before it is applied.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: editProps(),
				Required:   []string{"instructions"},
			},
		},
		{
			Name:        string(models.ToolInsertInDocument),
			Description: "Insert new content into an existing document according to the instructions. The user reviews the diff before it is applied.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: editProps(),
				Required:   []string{"instructions"},
			},
		},
		{
			Name:        string(models.ToolReplaceInDocument),
			Description: "Replace a specific section of a document according to the instructions. The user reviews the diff before it is applied.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: editProps(),
				Required:   []string{"instructions"},
			},
		},
	}
}

// Chat generates one assistant turn. When web search is requested the
// Gemini API does not permit mixing search grounding with function
// declarations, so search turns cannot emit tool calls.
func (p *GoogleProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var contents []*genai.Content
	for _, msg := range req.History {
		var role genai.Role = genai.RoleUser
		if msg.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		text := msg.Content
		if text == "" {
			// Gemini rejects empty parts; tool-call-only turns get a stub.
			text = "(structured instructions)"
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.WebSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else {
		config.Tools = []*genai.Tool{{FunctionDeclarations: workspaceToolDeclarations()}}
	}

	model := req.Model
	if model == "" {
		model = ModelForPreset(DefaultPreset)
	}
	if p.debug {
		slog.Debug("gemini chat request", "model", model, "messages", len(contents), "webSearch", req.WebSearch)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("gemini generate content: %w", err)
	}

	out := ChatResponse{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		name := models.ToolName(fc.Name)
		if !name.Known() {
			slog.Warn("ignoring unknown tool call from model", "name", fc.Name)
			continue
		}
		args, err := decodeToolArgs(fc.Args)
		if err != nil {
			return ChatResponse{}, fmt.Errorf("decode %s args: %w", fc.Name, err)
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{Name: name, Args: args})
	}
	return out, nil
}

func decodeToolArgs(raw map[string]any) (models.ToolCallArgs, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return models.ToolCallArgs{}, err
	}
	var args models.ToolCallArgs
	if err := json.Unmarshal(data, &args); err != nil {
		return models.ToolCallArgs{}, err
	}
	return args, nil
}

// editResponse is the JSON shape requested from the model for transforms.
type editResponse struct {
	ModifiedContent string `json:"modifiedContent"`
	Summary         string `json:"summary"`
}

var editKindRules = map[models.EditKind]string{
	models.EditRewrite: "Rewrite the whole document to satisfy the instructions. You may restructure freely, but keep information the instructions do not ask you to remove.",
	models.EditInsert:  "Insert new content where the instructions indicate. Leave all existing content untouched apart from the insertion point.",
	models.EditReplace: "Replace only the section the instructions identify. Leave the rest of the document byte-for-byte unchanged.",
}

// TransformDocument applies edit instructions to content and returns the
// full modified document plus a one-line summary.
func (p *GoogleProvider) TransformDocument(ctx context.Context, model string, kind models.EditKind, content, instructions string) (EditOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rules, ok := editKindRules[kind]
	if !ok {
		return EditOutcome{}, fmt.Errorf("unsupported edit kind: %q", kind)
	}

	system := fmt.Sprintf(`You are an expert technical editor working on a project document.

RULES:
- %s
- Return the COMPLETE document after the edit, not a fragment or a diff.
- Do not wrap the document in markdown code fences.
- The summary must be a single short sentence describing the change.

CURRENT DOCUMENT:
%s`, rules, content)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"modifiedContent": {Type: genai.TypeString, Description: "The complete document after the edit."},
				"summary":         {Type: genai.TypeString, Description: "One sentence describing the change."},
			},
			Required: []string{"modifiedContent", "summary"},
		},
	}

	if model == "" {
		model = ModelForPreset(DefaultPreset)
	}
	contents := []*genai.Content{
		genai.NewContentFromText("Apply this edit: "+instructions, genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return EditOutcome{}, fmt.Errorf("gemini transform document: %w", err)
	}

	var parsed editResponse
	text := strings.TrimSpace(resp.Text())
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return EditOutcome{}, fmt.Errorf("decode transform response: %w", err)
	}
	if parsed.ModifiedContent == "" {
		return EditOutcome{}, fmt.Errorf("model returned an empty document")
	}
	return EditOutcome{ModifiedContent: parsed.ModifiedContent, Summary: parsed.Summary}, nil
}

// selectionContextWindow caps how much surrounding text is quoted on each
// side of the selection.
const selectionContextWindow = 1500

// TransformSelection rewrites a selected span, quoting a clamped window of
// the surrounding text so the model keeps indentation and style intact.
// The response is plain text; a stray markdown fence around it is removed.
func (p *GoogleProvider) TransformSelection(ctx context.Context, model string, req SelectionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	fileType := req.FileType
	if fileType == "" {
		fileType = "markdown"
	}
	system := fmt.Sprintf(`You are an expert editor. The user has selected a portion of a document and wants you to modify it.

RULES:
- Return ONLY the edited text, no explanations or markdown formatting
- Maintain the same indentation style as the original
- Keep the style consistent with the surrounding context
- If the instruction is unclear, make reasonable assumptions
- For the file type: %s

CONTEXT BEFORE SELECTION:
%s
%s
%s

SELECTED TEXT TO EDIT:
%s
%s
%s

CONTEXT AFTER SELECTION:
%s
%s
%s`,
		fileType,
		"```", clampTail(req.ContextBefore, selectionContextWindow), "```",
		"```", req.Selection, "```",
		"```", clampHead(req.ContextAfter, selectionContextWindow), "```")

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	if model == "" {
		model = ModelForPreset(PresetFast)
	}
	prompt := fmt.Sprintf("Edit the selected text according to this instruction: %s\n\nReturn only the edited text, nothing else.", req.Instruction)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini transform selection: %w", err)
	}
	result := stripCodeFence(strings.TrimSpace(resp.Text()))
	if result == "" {
		return "", fmt.Errorf("model returned an empty selection")
	}
	return result, nil
}

func clampTail(s string, n int) string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

func clampHead(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// stripCodeFence unwraps a response the model wrapped in a markdown code
// block despite the instructions.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
