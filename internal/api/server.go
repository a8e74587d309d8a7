package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"paperchat/internal/answer"
	"paperchat/internal/chat"
	"paperchat/internal/config"
	"paperchat/internal/discovery"
	"paperchat/internal/models"
	"paperchat/internal/util"
	"paperchat/internal/workflows"
)

type PaperStore interface {
	GetPaper(ctx context.Context, paperID string) (models.PaperDetail, error)
	Overview(ctx context.Context) (models.Overview, error)
}

type Chatter interface {
	Ask(ctx context.Context, req chat.Request) (chat.Response, error)
	AskStream(ctx context.Context, req chat.Request) (<-chan answer.Event, error)
}

// Jobs starts ingestion jobs and reports their progress.
type Jobs interface {
	StartIngest(ctx context.Context, jobID string, paperIDs []string) error
	Progress(ctx context.Context, jobID string) (workflows.IngestProgress, error)
}

type Server struct {
	cfg      config.Config
	papers   PaperStore
	searcher discovery.Searcher
	chat     Chatter
	jobs     Jobs
	logger   *slog.Logger
}

func NewServer(cfg config.Config, papers PaperStore, searcher discovery.Searcher, chat Chatter, jobs Jobs, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		papers:   papers,
		searcher: searcher,
		chat:     chat,
		jobs:     jobs,
		logger:   logger.With("component", "api"),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /papers/search", s.handleSearch)
	mux.HandleFunc("GET /papers/{id...}", s.handlePaper)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("GET /ingest/{job_id}", s.handleIngestStatus)
	mux.HandleFunc("POST /chat/query", s.handleChatQuery)
	mux.HandleFunc("POST /chat/stream", s.handleChatStream)
	return withCORS(s.cfg.CORSOrigins, mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeErr(w, util.Mark(errors.New("q is required"), util.ErrInvalidInput))
		return
	}
	maxResults := 10
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			s.writeErr(w, util.Mark(fmt.Errorf("max_results must be in 1..100, got %q", raw), util.ErrInvalidInput))
			return
		}
		maxResults = n
	}
	papers, err := s.searcher.Search(r.Context(), q, maxResults)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
}

func (s *Server) handlePaper(w http.ResponseWriter, r *http.Request) {
	detail, err := s.papers.GetPaper(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ov, err := s.papers.Overview(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaperIDs []string `json:"paper_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	ids := make([]string, 0, len(req.PaperIDs))
	for _, id := range req.PaperIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		s.writeErr(w, util.Mark(errors.New("paper_ids is required"), util.ErrInvalidInput))
		return
	}

	jobID := uuid.NewString()
	if err := s.jobs.StartIngest(r.Context(), jobID, ids); err != nil {
		s.writeErr(w, err)
		return
	}
	s.logger.Info("ingest job started", "job_id", jobID, "papers", len(ids))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       jobID,
		"status":       workflows.StatusPending,
		"total_papers": len(ids),
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := s.jobs.Progress(r.Context(), r.PathValue("job_id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleChatQuery(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	resp, err := s.chat.Ask(r.Context(), req)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return util.Mark(fmt.Errorf("invalid json: %w", err), util.ErrInvalidInput)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status, apiErr := toAPIError(err)
	if status >= 500 {
		s.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, map[string]any{"error": apiErr})
}
