package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"waitroom-intake/internal/core"
	"waitroom-intake/internal/db"
	"waitroom-intake/pkg"
	"waitroom-intake/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Conversation is the part of core.Engine the web chat drives.
type Conversation interface {
	Start(ctx context.Context, key string, id core.Identity) (core.Reply, error)
	Handle(ctx context.Context, key, text string) (core.Reply, error)
	Cancel(ctx context.Context, key string) (core.Reply, error)
}

// RecordReader is the read side of the record store.
type RecordReader interface {
	ListRecords(ctx context.Context, limit int) ([]pkg.RecordPreview, error)
	GetRecord(ctx context.Context, id string) (*pkg.Record, error)
}

// RecordStream announces ids of newly saved records.
type RecordStream interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// Options configures a Server.  The reviewer endpoints are mounted only when
// ReviewerToken is set.  Records and Stream are optional; without them the
// reviewer endpoints answer 503.
type Options struct {
	Conversation  Conversation
	Records       RecordReader
	Stream        RecordStream
	Metrics       http.Handler
	ReviewerToken string
	Logger        *logging.Logger
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.Server.
type Server struct {
	conv    Conversation
	records RecordReader
	stream  RecordStream
	logger  *logging.Logger
	router  chi.Router
}

// NewServer constructs a Server and its routes.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	s := &Server{
		conv:    opts.Conversation,
		records: opts.Records,
		stream:  opts.Stream,
		logger:  opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Post("/{id}/messages", s.handlePostMessage)
		r.Post("/{id}/cancel", s.handleCancel)
	})

	if strings.TrimSpace(opts.ReviewerToken) != "" {
		r.Route("/api/reviewer", func(r chi.Router) {
			r.Use(requireBearer(opts.ReviewerToken))
			r.Get("/records", s.handleListRecords)
			r.Get("/records/{id}", s.handleGetRecord)
			r.Get("/stream", s.handleStream)
		})
	} else {
		opts.Logger.Warn("http: REVIEWER_API_TOKEN not set, reviewer API disabled")
	}

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type createSessionRequest struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
}

type createSessionResponse struct {
	SessionID string     `json:"session_id"`
	Reply     core.Reply `json:"reply"`
}

type messageRequest struct {
	Text string `json:"text"`
}

// handleCreateSession starts a questionnaire under a fresh session id.  The
// body is optional.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	key := uuid.NewString()
	reply, err := s.conv.Start(r.Context(), key, core.Identity{
		UserID:      key,
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.logger.Error("http: start session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: key, Reply: reply})
}

// handlePostMessage applies one patient message and returns the next prompt.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	reply, err := s.conv.Handle(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, core.StartHint)
			return
		}
		s.logger.Error("http: handle message failed", "session", chi.URLParam(r, "id"), "error", err)
		writeError(w, http.StatusInternalServerError, "could not process message")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	reply, err := s.conv.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("http: cancel failed", "session", chi.URLParam(r, "id"), "error", err)
		writeError(w, http.StatusInternalServerError, "could not cancel session")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// handleListRecords returns previews of the newest records, ?limit=N.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "record store not configured")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	records, err := s.records.ListRecords(r.Context(), limit)
	if err != nil {
		s.logger.Error("http: list records failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list records")
		return
	}
	if records == nil {
		records = []pkg.RecordPreview{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "record store not configured")
		return
	}
	rec, err := s.records.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		s.logger.Error("http: get record failed", "record_id", chi.URLParam(r, "id"), "error", err)
		writeError(w, http.StatusInternalServerError, "could not load record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleStream emits a record_saved event for every record committed while
// the client stays connected.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "record stream not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ids, err := s.stream.Listen(r.Context())
	if err != nil {
		s.logger.Error("http: listen for records failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not open stream")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for id := range ids {
		if err := writeRecordEvent(w, id); err != nil {
			s.logger.Warn("http: stream write failed", "error", err)
			return
		}
		flusher.Flush()
	}
}

// writeRecordEvent writes a record_saved event with the id as JSON data.
func writeRecordEvent(w io.Writer, id string) error {
	data, err := json.Marshal(map[string]string{"type": "record_saved", "record_id": id})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: record_saved\ndata: %s\n\n", data)
	return err
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
