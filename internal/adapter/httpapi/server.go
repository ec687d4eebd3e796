package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/port"
	"ragqa/internal/usecase"
)

// Options bounds request handling.
type Options struct {
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

// Deps are the use cases served by the API.
type Deps struct {
	Sessions *usecase.SessionUseCase
	Indexer  *usecase.IndexUseCase
	Asker    *usecase.AskUseCase
	// Metrics is optional. When set, requests are timed and /metrics is served.
	Metrics Instrumenter
}

// Instrumenter wraps handlers with request metrics and exposes them.
type Instrumenter interface {
	Middleware(route string, next http.Handler) http.Handler
	Handler() http.Handler
}

// Server is the ragqa HTTP API.
type Server struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	mux    *http.ServeMux
}

func NewServer(deps Deps, opts Options, logger *slog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{deps: deps, opts: opts, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("POST /sessions", s.handleCreateSession)
	s.handle("POST /sessions/{id}/reset", s.handleResetSession)
	s.handle("DELETE /sessions/{id}", s.handleDeleteSession)
	s.handle("POST /sessions/{id}/documents", s.handleUpload)
	s.handle("POST /sessions/{id}/question", s.handleQuestion)

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	var handler http.Handler = h
	if s.deps.Metrics != nil {
		handler = s.deps.Metrics.Middleware(pattern, handler)
	}
	s.mux.Handle(pattern, handler)
}

// Handler returns the root handler with CORS and request timeouts applied.
func (s *Server) Handler() http.Handler {
	return cors(s.withTimeout(s.mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down http api")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	if s.opts.RequestTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type uploadResponse struct {
	Message          string                   `json:"message"`
	DocumentsIndexed int                      `json:"documents_indexed"`
	TotalChunks      int                      `json:"total_chunks"`
	Failures         []domain.DocumentFailure `json:"failures"`
}

type questionRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	Source   string `json:"source,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// uploadErrorResponse reports an upload stopped part way, with what was
// indexed before the failure.
type uploadErrorResponse struct {
	Error            string                   `json:"error"`
	DocumentsIndexed int                      `json:"documents_indexed"`
	TotalChunks      int                      `json:"total_chunks"`
	Failures         []domain.DocumentFailure `json:"failures"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.deps.Sessions.Start(r.Context(), "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Sessions.Reset(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.End(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: malformed multipart body: %v", domain.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: no files in field \"files\"", domain.ErrInvalidInput))
		return
	}

	docs := make([]usecase.DocumentInput, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, r, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err))
			return
		}
		defer closeFile(f)
		docs = append(docs, usecase.DocumentInput{Source: fh.Filename, Reader: f, Size: fh.Size})
	}

	result, err := s.deps.Indexer.IndexDocuments(r.Context(), r.PathValue("id"), docs, nil)
	if err != nil && result == nil {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		code := s.logFailure(r, err)
		resp := uploadErrorResponse{
			Error:            err.Error(),
			DocumentsIndexed: result.DocumentsIndexed,
			TotalChunks:      result.TotalChunks,
			Failures:         result.Failures,
		}
		if resp.Failures == nil {
			resp.Failures = []domain.DocumentFailure{}
		}
		writeJSON(w, code, resp)
		return
	}
	resp := uploadResponse{
		Message:          "Documents processed successfully",
		DocumentsIndexed: result.DocumentsIndexed,
		TotalChunks:      result.TotalChunks,
		Failures:         result.Failures,
	}
	if resp.Failures == nil {
		resp.Failures = []domain.DocumentFailure{}
	}
	if len(resp.Failures) > 0 {
		resp.Message = fmt.Sprintf("Processed %d of %d documents", result.DocumentsIndexed, len(docs))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid json: %v", domain.ErrInvalidInput, err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, r, fmt.Errorf("%w: missing 'question' field in request", domain.ErrInvalidInput))
		return
	}

	answer, err := s.deps.Asker.Ask(r.Context(), r.PathValue("id"), req.Question, req.TopK, port.QueryFilter{Source: req.Source})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, s.logFailure(r, err), errorResponse{Error: err.Error()})
}

// logFailure logs err at a level matching its status code and returns the code.
func (s *Server) logFailure(r *http.Request, err error) int {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	return code
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrSynthesis):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func closeFile(f multipart.File) {
	_ = f.Close()
}
