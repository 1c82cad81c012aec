// Package httpapi exposes the chat service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/dataset"
	"data-agent/internal/usecase/chat"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxUploadBytes = 200 << 20

// ChatService is the part of chat.Service the API needs.
type ChatService interface {
	Ask(ctx context.Context, sessionID, question string) (chat.Reply, error)
	History(ctx context.Context, sessionID string) ([]entity.ChatMessage, error)
	Reconfigure(ds *entity.Dataset) error
}

// SessionLister is implemented by history stores that can enumerate sessions.
type SessionLister interface {
	Sessions(ctx context.Context) ([]string, error)
}

type Server struct {
	chat     ChatService
	sessions SessionLister
	chartDir string
	logger   output.LoggerPort
}

func NewServer(chatService ChatService, sessions SessionLister, chartDir string, logger output.LoggerPort) *Server {
	return &Server{chat: chatService, sessions: sessions, chartDir: chartDir, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/dataset", s.handleUpload)
		r.Get("/sessions", s.handleSessions)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Post("/turns", s.handleTurn)
			r.Get("/messages", s.handleMessages)
		})
	})

	r.Get("/charts/{name}", s.handleChart)
	return r
}

type turnRequest struct {
	Question string `json:"question"`
}

type turnResponse struct {
	FinalText     string            `json:"final_text"`
	Clean         string            `json:"clean"`
	StoppedReason entity.StopReason `json:"stopped_reason"`
	Steps         []entity.Step     `json:"steps"`
	Segments      []entity.Segment  `json:"segments"`
	Error         string            `json:"error,omitempty"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	reply, err := s.chat.Ask(r.Context(), chi.URLParam(r, "id"), req.Question)
	if errors.Is(err, chat.ErrEmptyQuestion) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil && reply.Result.StoppedReason == "" {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err != nil {
		s.logger.Warn("Turn answered but not stored", "error", err)
	}

	resp := turnResponse{
		FinalText:     reply.Result.FinalText,
		Clean:         reply.Response.Clean,
		StoppedReason: reply.Result.StoppedReason,
		Steps:         reply.Result.Steps,
		Segments:      reply.Response.Segments,
	}
	if resp.Steps == nil {
		resp.Steps = []entity.Step{}
	}
	if resp.Segments == nil {
		resp.Segments = []entity.Segment{}
	}
	if reply.Result.Err != nil {
		resp.Error = reply.Result.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chat.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if msgs == nil {
		msgs = []entity.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotImplemented, errors.New("session listing is not available"))
		return
	}
	ids, err := s.sessions.Sessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// handleUpload replaces the dataset with a multipart "file" upload. The
// analysis namespace is discarded.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing file: %w", err))
		return
	}
	defer file.Close()

	tmpDir, err := os.MkdirTemp("", "upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, filepath.Base(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	_, err = io.Copy(dst, file)
	dst.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	ds, err := dataset.Load(path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := s.chat.Reconfigure(ds); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":    ds.Name,
		"rows":    ds.NumRows(),
		"columns": ds.ColumnNames(),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "name"))
	if s.chartDir == "" || !strings.HasPrefix(name, "chart_") || filepath.Ext(name) != ".png" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, filepath.Join(s.chartDir, name))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
