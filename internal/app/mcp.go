package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"helios/api/internal/brief"
	"helios/api/internal/export"
)

// NewMCPServer exposes the lifecycle operations as MCP tools. Every tool
// answers with the same envelope the HTTP API uses.
func NewMCPServer(service *Service, version string) *mcp.Server {
	tools := &lifecycleTools{service: service}
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "helios",
		Version: version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_projects",
		Description: "List projects with brief, artifact, comment and pending change request counts",
	}, tools.ListProjects)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_project",
		Description: "Create a draft project",
	}, tools.CreateProject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "save_intake",
		Description: "Save the stakeholder documents and boilerplate language a brief is drafted from",
	}, tools.SaveIntake)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "generate_brief",
		Description: "Draft the project brief from its intake (returns the existing brief if one was already generated)",
	}, tools.GenerateBrief)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "approve_brief",
		Description: "Approve the brief and lock it; approving again changes nothing",
	}, tools.ApproveBrief)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "request_changes",
		Description: "Submit a change request against one or more brief sections",
	}, tools.RequestChanges)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "review_change_request",
		Description: "Approve or reject a pending change request",
	}, tools.ReviewChangeRequest)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_comment",
		Description: "Comment on a brief section (allowed after approval)",
	}, tools.AddComment)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "generate_artifacts",
		Description: "Generate the planning artifacts for an approved brief",
	}, tools.GenerateArtifacts)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "export_brief",
		Description: "Export the brief as markdown, json or pdf (pdf content is base64)",
	}, tools.ExportBrief)

	return srv
}

type lifecycleTools struct {
	service *Service
}

type CreateProjectInput struct {
	Name  string `json:"name" jsonschema:"Project name"`
	Actor string `json:"actor,omitempty" jsonschema:"Name recorded in the audit trail"`
}

type ProjectInput struct {
	ProjectID string `json:"projectId" jsonschema:"Project id"`
	Actor     string `json:"actor,omitempty" jsonschema:"Name recorded in the audit trail"`
}

type SaveIntakeInput struct {
	ProjectID            string `json:"projectId" jsonschema:"Project id"`
	StakeholderDocuments string `json:"stakeholderDocuments" jsonschema:"Stakeholder documents and notes"`
	BoilerplateLanguage  string `json:"boilerplateLanguage" jsonschema:"Brand or boilerplate language"`
	Actor                string `json:"actor,omitempty" jsonschema:"Name recorded in the audit trail"`
}

type RequestChangesInput struct {
	ProjectID string   `json:"projectId" jsonschema:"Project id"`
	BriefID   string   `json:"briefId,omitempty" jsonschema:"Brief id; defaults to the project's brief"`
	Requester string   `json:"requester" jsonschema:"Who is asking for the change"`
	Sections  []string `json:"sections" jsonschema:"Brief sections the change applies to"`
	Feedback  string   `json:"feedback" jsonschema:"What should change"`
	Priority  string   `json:"priority,omitempty" jsonschema:"low, normal, high or critical"`
}

type ReviewChangeRequestInput struct {
	RequestID  string `json:"requestId" jsonschema:"Change request id"`
	Status     string `json:"status" jsonschema:"approved or rejected"`
	ReviewedBy string `json:"reviewedBy" jsonschema:"Reviewer name"`
	Resolution string `json:"resolution,omitempty" jsonschema:"Optional note"`
}

type AddCommentInput struct {
	ProjectID string `json:"projectId" jsonschema:"Project id"`
	Author    string `json:"author" jsonschema:"Comment author"`
	Text      string `json:"text" jsonschema:"Comment text, at most 2000 characters"`
	Section   string `json:"section" jsonschema:"Brief section the comment refers to"`
}

type ExportBriefInput struct {
	ProjectID string `json:"projectId" jsonschema:"Project id"`
	Format    string `json:"format,omitempty" jsonschema:"markdown, json or pdf; defaults to markdown"`
	Actor     string `json:"actor,omitempty" jsonschema:"Name recorded in the audit trail"`
}

type exportedBrief struct {
	ExportFile
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding"`
}

func (t *lifecycleTools) ListProjects(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	items, err := t.service.ListProjects(ctx)
	return toolResult(items, false, err)
}

func (t *lifecycleTools) CreateProject(ctx context.Context, _ *mcp.CallToolRequest, input CreateProjectInput) (*mcp.CallToolResult, any, error) {
	project, err := t.service.CreateProject(ctx, input.Name, brief.User(input.Actor))
	return toolResult(project, false, err)
}

func (t *lifecycleTools) SaveIntake(ctx context.Context, _ *mcp.CallToolRequest, input SaveIntakeInput) (*mcp.CallToolResult, any, error) {
	intake, err := t.service.SaveIntake(ctx, input.ProjectID, input.StakeholderDocuments, input.BoilerplateLanguage, brief.User(input.Actor))
	return toolResult(intake, false, err)
}

func (t *lifecycleTools) GenerateBrief(ctx context.Context, _ *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, any, error) {
	generated, alreadyExists, err := t.service.GenerateBrief(ctx, input.ProjectID, brief.User(input.Actor))
	return toolResult(generated, alreadyExists, err)
}

func (t *lifecycleTools) ApproveBrief(ctx context.Context, _ *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, any, error) {
	approved, alreadyApproved, err := t.service.ApproveBrief(ctx, input.ProjectID, brief.User(input.Actor))
	return toolResult(approved, alreadyApproved, err)
}

func (t *lifecycleTools) RequestChanges(ctx context.Context, _ *mcp.CallToolRequest, input RequestChangesInput) (*mcp.CallToolResult, any, error) {
	request, err := t.service.CreateChangeRequest(ctx, input.ProjectID, ChangeRequestInput{
		BriefID:   input.BriefID,
		Requester: input.Requester,
		Sections:  input.Sections,
		Feedback:  input.Feedback,
		Priority:  input.Priority,
	})
	return toolResult(request, false, err)
}

func (t *lifecycleTools) ReviewChangeRequest(ctx context.Context, _ *mcp.CallToolRequest, input ReviewChangeRequestInput) (*mcp.CallToolResult, any, error) {
	request, err := t.service.ReviewChangeRequest(ctx, input.RequestID, input.Status, input.ReviewedBy, input.Resolution)
	return toolResult(request, false, err)
}

func (t *lifecycleTools) AddComment(ctx context.Context, _ *mcp.CallToolRequest, input AddCommentInput) (*mcp.CallToolResult, any, error) {
	comment, err := t.service.AddComment(ctx, input.ProjectID, input.Author, input.Text, input.Section)
	return toolResult(comment, false, err)
}

func (t *lifecycleTools) GenerateArtifacts(ctx context.Context, _ *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, any, error) {
	artifacts, alreadyExists, err := t.service.GenerateArtifacts(ctx, input.ProjectID, brief.User(input.Actor))
	return toolResult(artifacts, alreadyExists, err)
}

func (t *lifecycleTools) ExportBrief(ctx context.Context, _ *mcp.CallToolRequest, input ExportBriefInput) (*mcp.CallToolResult, any, error) {
	format := input.Format
	if strings.TrimSpace(format) == "" {
		format = string(export.FormatMarkdown)
	}
	file, err := t.service.Export(ctx, input.ProjectID, format, brief.User(input.Actor))
	if err != nil {
		return toolResult(nil, false, err)
	}
	out := exportedBrief{ExportFile: file, Encoding: "utf-8", Content: string(file.Data)}
	if strings.HasPrefix(file.MimeType, "application/pdf") {
		out.Encoding = "base64"
		out.Content = base64.StdEncoding.EncodeToString(file.Data)
	}
	return toolResult(out, false, nil)
}

// toolResult wraps data or err in the response envelope. Domain failures are
// tool errors, not protocol errors, so the client sees the message.
func toolResult(data any, alreadyExists bool, err error) (*mcp.CallToolResult, any, error) {
	payload := envelope{Success: true, Data: data, AlreadyExists: alreadyExists}
	if err != nil {
		_, code, message, details := mapError(err)
		payload = envelope{Success: false, Error: message, Code: code, Details: details}
	}
	body, marshalErr := json.MarshalIndent(payload, "", "  ")
	if marshalErr != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Failed to marshal result: " + marshalErr.Error()}},
			IsError: true,
		}, nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		IsError: err != nil,
	}, nil, nil
}
