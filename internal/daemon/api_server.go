package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"evalboard/internal/api"
	"evalboard/internal/config"
	"evalboard/internal/conversation"
	"evalboard/internal/dataset"
	"evalboard/internal/logging"
	"evalboard/internal/services/evaluation"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/convert", s.handleConvert)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunDetail)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionDetail)
	mux.HandleFunc("/api/annotations", s.handleAnnotations)
	mux.HandleFunc("/api/annotations/", s.handleAnnotationUpdate)
	mux.HandleFunc("/api/suggestions", s.handleSuggestions)
	mux.HandleFunc("/api/suggestions/", s.handleSuggestionDetail)
	mux.HandleFunc("/api/aggregation", s.handleAggregation)
	mux.HandleFunc("/api/export", s.handleExport)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.StatusView(r.Context()))
}

// handleConvert accepts one multipart spreadsheet upload and responds with the
// converted JSONL as an attachment. Unsupported extensions are rejected before
// any processing. Both temp files are removed on every exit path.
func (s *apiServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer upload.Close()

	if !dataset.SupportedExtension(header.Filename) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q", filepath.Ext(header.Filename)))
		return
	}

	inputPath, err := saveTemp(upload, filepath.Ext(header.Filename))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(inputPath)

	output, err := os.CreateTemp("", "evalboard-convert-*.jsonl")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	outputPath := output.Name()
	defer os.Remove(outputPath)

	result, err := s.daemon.Converter().ConvertFile(r.Context(), inputPath, output)
	if closeErr := output.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if errors.Is(err, dataset.ErrUnsupportedFormat) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	converted, err := os.Open(outputPath)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer converted.Close()

	base := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".jsonl"))
	w.Header().Set("X-Rows-Read", strconv.Itoa(result.RowsRead))
	w.Header().Set("X-Rows-Emitted", strconv.Itoa(result.RowsEmitted))
	w.Header().Set("X-Rows-Skipped", strconv.Itoa(result.RowsSkipped))
	w.Header().Set("X-Translation-Fallback", strconv.Itoa(result.TranslationFallback))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, converted); err != nil {
		s.log().Warn("stream converted dataset failed", logging.Error(err))
	}
}

// handleRuns starts an evaluation run from a multipart dataset upload. A
// spreadsheet is converted first; a .jsonl file is forwarded as-is.
func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.daemon.Evaluation() == nil {
		s.writeError(w, http.StatusServiceUnavailable, "evaluation service is not configured")
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer upload.Close()

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}

	var criteria []evaluation.TestingCriterion
	if raw := strings.TrimSpace(r.FormValue("testing_criteria")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid testing_criteria payload")
			return
		}
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".jsonl" && !dataset.SupportedExtension(header.Filename) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q", ext))
		return
	}

	uploadPath, err := saveTemp(upload, ext)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(uploadPath)

	datasetPath := uploadPath
	if ext != ".jsonl" {
		converted, err := os.CreateTemp("", "evalboard-dataset-*.jsonl")
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		convertedPath := converted.Name()
		defer os.Remove(convertedPath)

		_, err = s.daemon.Converter().ConvertFile(r.Context(), uploadPath, converted)
		if closeErr := converted.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		datasetPath = convertedPath
	}

	sess, run, err := s.daemon.StartRun(r.Context(), name, datasetPath, criteria)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.RunStartResponse{
		Session: api.FromSession(sess),
		Run:     run,
	})
}

func (s *apiServer) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := s.daemon.ResolveRun(r.Context(), r.URL.Query().Get("eval"), runID)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *apiServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessions, err := s.daemon.Sessions(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]api.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, api.FromSession(sess))
	}
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: views})
}

func (s *apiServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	sess, err := s.daemon.Session(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSession(sess))
}

func (s *apiServer) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	client := s.daemon.Evaluation()
	if client == nil {
		s.writeError(w, http.StatusServiceUnavailable, "evaluation service is not configured")
		return
	}
	query := r.URL.Query()
	runID := strings.TrimSpace(query.Get("run_id"))
	if runID == "" {
		s.writeError(w, http.StatusBadRequest, "run_id query parameter is required")
		return
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	annotations, page, err := client.ListAnnotations(r.Context(), runID, evaluation.PageRequest{
		Limit:  limit,
		Cursor: query.Get("cursor"),
	})
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	// Conversation cells arrive in whatever shape the dataset carried; render
	// them into readable turns for the dashboard.
	for i := range annotations {
		annotations[i].Conversation = conversation.Render(s.log(), annotations[i].Conversation)
	}
	s.writeJSON(w, http.StatusOK, api.AnnotationListResponse{
		Data:       annotations,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func (s *apiServer) handleAnnotationUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	client := s.daemon.Evaluation()
	if client == nil {
		s.writeError(w, http.StatusServiceUnavailable, "evaluation service is not configured")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/annotations/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "annotation not found")
		return
	}
	var payload struct {
		Attributes map[string]any `json:"annotationAttributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	annotation, err := client.UpdateAnnotation(r.Context(), id, payload.Attributes)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, annotation)
}

func (s *apiServer) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	client := s.daemon.Evaluation()
	if client == nil {
		s.writeError(w, http.StatusServiceUnavailable, "evaluation service is not configured")
		return
	}
	var req api.SuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.RunID) == "" {
		s.writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}
	job, err := client.SuggestLabels(r.Context(), req.RunID)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *apiServer) handleSuggestionDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	client := s.daemon.Evaluation()
	if client == nil {
		s.writeError(w, http.StatusServiceUnavailable, "evaluation service is not configured")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/suggestions/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "suggestion job not found")
		return
	}
	job, err := client.GetSuggestion(r.Context(), id)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleAggregation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	client := s.daemon.Evaluation()
	if client == nil {
		s.writeError(w, http.StatusServiceUnavailable, "evaluation service is not configured")
		return
	}
	query := r.URL.Query()
	runID := strings.TrimSpace(query.Get("run_id"))
	attribute := strings.TrimSpace(query.Get("attribute"))
	if runID == "" || attribute == "" {
		s.writeError(w, http.StatusBadRequest, "run_id and attribute query parameters are required")
		return
	}
	agg, err := client.Aggregate(r.Context(), runID, attribute)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, agg)
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	client := s.daemon.Evaluation()
	if client == nil {
		s.writeError(w, http.StatusServiceUnavailable, "evaluation service is not configured")
		return
	}
	var req api.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.RunID) == "" {
		s.writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}
	body, filename, err := client.Export(r.Context(), req.RunID, req.Format)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.log().Warn("stream export failed", logging.Error(err))
	}
}

// saveTemp copies an upload into a temp file carrying the original extension
// so the converter can dispatch on it.
func saveTemp(r io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "evalboard-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

// writeError emits the {"message": ...} envelope the dashboard expects.
func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"message": message})
}

// writeUpstreamError maps evaluation service failures onto this API,
// preserving 404s and surfacing everything else as a bad gateway.
func (s *apiServer) writeUpstreamError(w http.ResponseWriter, err error) {
	var statusErr *evaluation.StatusError
	switch {
	case evaluation.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &statusErr):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.WithComponent(s.logger, "api-server")
	}
	return logging.NewNop()
}
