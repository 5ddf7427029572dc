package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"helios/api/internal/auth"
	"helios/api/internal/brief"
	"helios/api/internal/config"
	"helios/api/internal/logging"
	"helios/api/internal/rbac"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	secret     []byte
	tokenTTL   time.Duration
	authOn     bool
	approvers  []string
	admins     []string
	logger     *slog.Logger
	now        func() time.Time
}

func NewHTTPServer(service *Service, cfg config.Config) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: cfg.CORSOrigin,
		secret:     []byte(cfg.JWTSecret),
		tokenTTL:   cfg.TokenTTL,
		authOn:     cfg.AuthRequired,
		approvers:  cfg.Approvers,
		admins:     cfg.Admins,
		logger:     logging.Component("http"),
		now:        time.Now,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.routes())
}

// caller is the authenticated identity behind a request.
type caller struct {
	actor brief.Actor
	role  rbac.Role
}

type callerHandler func(http.ResponseWriter, *http.Request, caller)

// resolveCaller reads the bearer token. Without one, callers act as an
// anonymous admin unless authentication is required.
func (s *HTTPServer) resolveCaller(r *http.Request) (caller, error) {
	token := bearerToken(r)
	if token == "" {
		if s.authOn {
			return caller{}, auth.ErrInvalidToken
		}
		return caller{actor: brief.System, role: rbac.RoleAdmin}, nil
	}
	claims, err := auth.ParseToken(s.secret, token)
	if err != nil {
		return caller{}, err
	}
	return caller{actor: brief.User(claims.Name), role: rbac.Normalize(claims.Role)}, nil
}

// guard resolves the caller and checks it may perform action before running next.
func (s *HTTPServer) guard(action rbac.Action, next callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := s.resolveCaller(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		if !rbac.Can(who.role, action) {
			s.logger.Warn("request forbidden",
				"request_id", requestIDFrom(r.Context()),
				"actor", who.actor.Name(),
				"role", who.role,
				"action", action,
			)
			s.writeFailure(w, r, forbiddenError())
			return
		}
		next(w, r, who)
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.logger.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-Archive-URL")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

// envelope is the shape of every JSON response.
type envelope struct {
	Success       bool   `json:"success"`
	Data          any    `json:"data,omitempty"`
	AlreadyExists bool   `json:"alreadyExists,omitempty"`
	Error         string `json:"error,omitempty"`
	Code          string `json:"code,omitempty"`
	Details       any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeGenerated answers a generation call: 201 when something new was made,
// 200 with alreadyExists when the stored result was returned instead.
func writeGenerated(w http.ResponseWriter, data any, alreadyExists bool) {
	status := http.StatusCreated
	if alreadyExists {
		status = http.StatusOK
	}
	writeJSON(w, status, envelope{Success: true, Data: data, AlreadyExists: alreadyExists})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, envelope{Success: false, Error: message, Code: code, Details: details})
}

// writeFailure maps err onto the envelope. Server-side failures are logged in
// full; the response only carries the generic message.
func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", requestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"error", err,
			"cause", errors.Unwrap(err),
		)
	}
	writeError(w, status, code, message, details)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "REQUEST_CANCELLED", "The request was cancelled before it completed", nil
	}
	return http.StatusInternalServerError, "PERSISTENCE_ERROR", "A storage error occurred. Please try again.", nil
}

var errInvalidBody = errors.New("invalid JSON body")

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return errInvalidBody
	}
	return nil
}

// readBody decodes the request body or answers 400 and reports false.
func readBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// nameOr prefers an explicit name from the request body over the caller's identity.
func nameOr(explicit string, who caller) string {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return trimmed
	}
	if who.actor.IsSystem() {
		return ""
	}
	return who.actor.Name()
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

type loginRequest struct {
	Name string `json:"name"`
}

// handleLogin issues a signed token for a display name. Roles come from the
// configured approver and admin lists.
func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !readBody(w, r, &body) {
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		s.writeFailure(w, r, validationError("Name is required"))
		return
	}
	role := rbac.RoleFor(name, s.approvers, s.admins)
	claims := auth.NewClaims(name, string(role), s.tokenTTL, s.now())
	token, err := auth.IssueToken(s.secret, claims)
	if err != nil {
		s.logger.Error("issue token failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Sign-in is not configured", nil)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"token":     token,
		"name":      name,
		"role":      role,
		"expiresAt": claims.ExpiresAt.Time,
	})
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", fmt.Sprintf("Method %s not allowed", r.Method), nil)
	})

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Post("/api/session/login", s.handleLogin)

	r.Route("/api/projects", func(r chi.Router) {
		r.Get("/", s.guard(rbac.ActionRead, s.handleListProjects))
		r.Post("/", s.guard(rbac.ActionContribute, s.handleCreateProject))

		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", s.guard(rbac.ActionRead, s.handleGetProject))
			r.Patch("/", s.guard(rbac.ActionContribute, s.handleRenameProject))
			r.Delete("/", s.guard(rbac.ActionDelete, s.handleDeleteProject))
			r.Put("/status", s.guard(rbac.ActionApprove, s.handleUpdateProjectStatus))

			r.Get("/intake", s.guard(rbac.ActionRead, s.handleGetIntake))
			r.Put("/intake", s.guard(rbac.ActionContribute, s.handleSaveIntake))

			r.Get("/brief", s.guard(rbac.ActionRead, s.handleGetBrief))
			r.Post("/brief", s.guard(rbac.ActionGenerate, s.handleGenerateBrief))
			r.Post("/brief/approve", s.guard(rbac.ActionApprove, s.handleApproveBrief))

			r.Get("/artifacts", s.guard(rbac.ActionRead, s.handleListArtifacts))
			r.Post("/artifacts", s.guard(rbac.ActionGenerate, s.handleGenerateArtifacts))
			r.Post("/artifacts/retry", s.guard(rbac.ActionGenerate, s.handleRetryArtifacts))
			r.Get("/artifacts/{artifactType}", s.guard(rbac.ActionRead, s.handleGetArtifact))

			r.Get("/comments", s.guard(rbac.ActionRead, s.handleListComments))
			r.Post("/comments", s.guard(rbac.ActionContribute, s.handleAddComment))
			r.Get("/comments/counts", s.guard(rbac.ActionRead, s.handleCommentCounts))

			r.Get("/change-requests", s.guard(rbac.ActionRead, s.handleListChangeRequests))
			r.Post("/change-requests", s.guard(rbac.ActionContribute, s.handleCreateChangeRequest))
			r.Get("/change-requests/stats", s.guard(rbac.ActionRead, s.handleChangeRequestStats))

			r.Get("/history", s.guard(rbac.ActionRead, s.handleHistory))
			r.Get("/snapshots", s.guard(rbac.ActionRead, s.handleSnapshots))
			r.Get("/snapshots/{revision}", s.guard(rbac.ActionRead, s.handleSnapshotContent))

			r.Get("/export-data", s.guard(rbac.ActionRead, s.handleExportData))
			r.Get("/export", s.guard(rbac.ActionRead, s.handleExport))
			r.Post("/exports/log", s.guard(rbac.ActionRead, s.handleLogExport))
		})
	})

	r.Patch("/api/comments/{commentID}", s.guard(rbac.ActionContribute, s.handleUpdateComment))
	r.Delete("/api/comments/{commentID}", s.guard(rbac.ActionContribute, s.handleDeleteComment))

	r.Post("/api/change-requests/{requestID}/review", s.guard(rbac.ActionApprove, s.handleReviewChangeRequest))
	r.Post("/api/change-requests/{requestID}/implement", s.guard(rbac.ActionApprove, s.handleImplementChangeRequest))
	r.Delete("/api/change-requests/{requestID}", s.guard(rbac.ActionDelete, s.handleDeleteChangeRequest))

	r.Get("/api/search", s.guard(rbac.ActionRead, s.handleSearch))
	return r
}
