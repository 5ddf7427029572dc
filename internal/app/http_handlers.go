package app

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"helios/api/internal/search"
)

func projectID(r *http.Request) string {
	return chi.URLParam(r, "projectID")
}

// queryInt reads a non-negative integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return def
	}
	return value
}

func (s *HTTPServer) handleListProjects(w http.ResponseWriter, r *http.Request, _ caller) {
	items, err := s.service.ListProjects(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

type projectRequest struct {
	Name string `json:"name"`
}

func (s *HTTPServer) handleCreateProject(w http.ResponseWriter, r *http.Request, who caller) {
	var body projectRequest
	if !readBody(w, r, &body) {
		return
	}
	project, err := s.service.CreateProject(r.Context(), body.Name, who.actor)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, project)
}

func (s *HTTPServer) handleGetProject(w http.ResponseWriter, r *http.Request, _ caller) {
	detail, err := s.service.GetProject(r.Context(), projectID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, detail)
}

func (s *HTTPServer) handleRenameProject(w http.ResponseWriter, r *http.Request, who caller) {
	var body projectRequest
	if !readBody(w, r, &body) {
		return
	}
	project, err := s.service.RenameProject(r.Context(), projectID(r), body.Name, who.actor)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, project)
}

func (s *HTTPServer) handleDeleteProject(w http.ResponseWriter, r *http.Request, _ caller) {
	id := projectID(r)
	if err := s.service.DeleteProject(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *HTTPServer) handleUpdateProjectStatus(w http.ResponseWriter, r *http.Request, who caller) {
	var body statusRequest
	if !readBody(w, r, &body) {
		return
	}
	project, err := s.service.UpdateProjectStatus(r.Context(), projectID(r), body.Status, who.actor)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, project)
}

func (s *HTTPServer) handleGetIntake(w http.ResponseWriter, r *http.Request, _ caller) {
	intake, err := s.service.GetIntake(r.Context(), projectID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, intake)
}

type intakeRequest struct {
	StakeholderDocuments string `json:"stakeholderDocuments"`
	BoilerplateLanguage  string `json:"boilerplateLanguage"`
}

func (s *HTTPServer) handleSaveIntake(w http.ResponseWriter, r *http.Request, who caller) {
	var body intakeRequest
	if !readBody(w, r, &body) {
		return
	}
	intake, err := s.service.SaveIntake(r.Context(), projectID(r), body.StakeholderDocuments, body.BoilerplateLanguage, who.actor)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, intake)
}

func (s *HTTPServer) handleGetBrief(w http.ResponseWriter, r *http.Request, _ caller) {
	found, err := s.service.GetBrief(r.Context(), projectID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, found)
}

func (s *HTTPServer) handleGenerateBrief(w http.ResponseWriter, r *http.Request, who caller) {
	generated, alreadyExists, err := s.service.GenerateBrief(r.Context(), projectID(r), who.actor)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeGenerated(w, generated, alreadyExists)
}

func (s *HTTPServer) handleApproveBrief(w http.ResponseWriter, r *http.Request, who caller) {
	approved, alreadyApproved, err := s.service.ApproveBrief(r.Context(), projectID(r), who.actor)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: approved, AlreadyExists: alreadyApproved})
}

func (s *HTTPServer) handleListArtifacts(w http.ResponseWriter, r *http.Request, _ caller) {
	items, err := s.service.ListArtifacts(r.Context(), projectID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (s *HTTPServer) handleGenerateArtifacts(w http.ResponseWriter, r *http.Request, who caller) {
	items, alreadyExists, err := s.service.GenerateArtifacts(r.Context(), projectID(r), who.actor)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeGenerated(w, items, alreadyExists)
}

func (s *HTTPServer) handleRetryArtifacts(w http.ResponseWriter, r *http.Request, who caller) {
	items, err := s.service.RegenerateMissingArtifacts(r.Context(), projectID(r), who.actor)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (s *HTTPServer) handleGetArtifact(w http.ResponseWriter, r *http.Request, _ caller) {
	artifact, err := s.service.GetArtifact(r.Context(), projectID(r), chi.URLParam(r, "artifactType"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, artifact)
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request, _ caller) {
	items, err := s.service.ListComments(r.Context(), projectID(r), r.URL.Query().Get("section"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

type commentRequest struct {
	Author  string `json:"author"`
	Text    string `json:"text"`
	Section string `json:"section"`
}

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request, who caller) {
	var body commentRequest
	if !readBody(w, r, &body) {
		return
	}
	comment, err := s.service.AddComment(r.Context(), projectID(r), nameOr(body.Author, who), body.Text, body.Section)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, comment)
}

func (s *HTTPServer) handleCommentCounts(w http.ResponseWriter, r *http.Request, _ caller) {
	counts, err := s.service.CommentCountsBySection(r.Context(), projectID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, counts)
}

func (s *HTTPServer) handleUpdateComment(w http.ResponseWriter, r *http.Request, who caller) {
	var body commentRequest
	if !readBody(w, r, &body) {
		return
	}
	comment, err := s.service.UpdateComment(r.Context(), chi.URLParam(r, "commentID"), body.Text, who.actor)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, comment)
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request, who caller) {
	id := chi.URLParam(r, "commentID")
	if err := s.service.DeleteComment(r.Context(), id, who.actor); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *HTTPServer) handleListChangeRequests(w http.ResponseWriter, r *http.Request, _ caller) {
	items, err := s.service.ListChangeRequests(r.Context(), projectID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (s *HTTPServer) handleCreateChangeRequest(w http.ResponseWriter, r *http.Request, who caller) {
	var body ChangeRequestInput
	if !readBody(w, r, &body) {
		return
	}
	body.Requester = nameOr(body.Requester, who)
	request, err := s.service.CreateChangeRequest(r.Context(), projectID(r), body)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, request)
}

func (s *HTTPServer) handleChangeRequestStats(w http.ResponseWriter, r *http.Request, _ caller) {
	stats, err := s.service.ChangeRequestStats(r.Context(), projectID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

type reviewRequest struct {
	Status     string `json:"status"`
	ReviewedBy string `json:"reviewedBy"`
	Resolution string `json:"resolution"`
}

func (s *HTTPServer) handleReviewChangeRequest(w http.ResponseWriter, r *http.Request, who caller) {
	var body reviewRequest
	if !readBody(w, r, &body) {
		return
	}
	request, err := s.service.ReviewChangeRequest(r.Context(), chi.URLParam(r, "requestID"), body.Status, nameOr(body.ReviewedBy, who), body.Resolution)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, request)
}

type implementRequest struct {
	ImplementedBy string `json:"implementedBy"`
}

func (s *HTTPServer) handleImplementChangeRequest(w http.ResponseWriter, r *http.Request, who caller) {
	var body implementRequest
	if !readBody(w, r, &body) {
		return
	}
	request, err := s.service.MarkImplemented(r.Context(), chi.URLParam(r, "requestID"), nameOr(body.ImplementedBy, who))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, request)
}

func (s *HTTPServer) handleDeleteChangeRequest(w http.ResponseWriter, r *http.Request, _ caller) {
	id := chi.URLParam(r, "requestID")
	if err := s.service.DeleteChangeRequest(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, _ caller) {
	entries, err := s.service.ListChangeLog(r.Context(), projectID(r), queryInt(r, "limit", 0))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, entries)
}

func (s *HTTPServer) handleSnapshots(w http.ResponseWriter, r *http.Request, _ caller) {
	commits, err := s.service.Snapshots(r.Context(), projectID(r), queryInt(r, "limit", 50))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, commits)
}

func (s *HTTPServer) handleSnapshotContent(w http.ResponseWriter, r *http.Request, _ caller) {
	content, err := s.service.SnapshotContent(r.Context(), projectID(r), chi.URLParam(r, "revision"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, content)
}

func (s *HTTPServer) handleExportData(w http.ResponseWriter, r *http.Request, _ caller) {
	agg, err := s.service.GetExportData(r.Context(), projectID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, agg)
}

// handleExport streams the rendered file. When the file was archived the
// presigned link is returned in X-Archive-URL.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, who caller) {
	format := r.URL.Query().Get("format")
	if strings.TrimSpace(format) == "" {
		format = "markdown"
	}
	file, err := s.service.Export(r.Context(), projectID(r), format, who.actor)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	header := w.Header()
	header.Set("Content-Type", file.MimeType)
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	header.Set("Content-Length", strconv.Itoa(len(file.Data)))
	if file.Archive != nil {
		header.Set("X-Archive-URL", file.Archive.URL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

type exportLogRequest struct {
	Format string `json:"format"`
}

func (s *HTTPServer) handleLogExport(w http.ResponseWriter, r *http.Request, who caller) {
	var body exportLogRequest
	if !readBody(w, r, &body) {
		return
	}
	if err := s.service.LogExport(r.Context(), projectID(r), body.Format, who.actor); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"logged": true})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, _ caller) {
	query := r.URL.Query()
	text := strings.TrimSpace(query.Get("q"))
	if text == "" {
		s.writeFailure(w, r, validationError("Search query is required"))
		return
	}
	q := search.Query{
		Text:      text,
		ProjectID: strings.TrimSpace(query.Get("projectId")),
		Limit:     queryInt(r, "limit", 20),
		Offset:    queryInt(r, "offset", 0),
	}
	if raw := strings.TrimSpace(query.Get("type")); raw != "" {
		kind, ok := search.ParseResultType(raw)
		if !ok {
			s.writeFailure(w, r, validationError("Search type must be project, brief, or comment"))
			return
		}
		q.FilterType = kind
	}
	writeData(w, http.StatusOK, s.service.Search(r.Context(), q))
}
