package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gwgp-assistant-backend/internal/capability"
	"gwgp-assistant-backend/internal/config"
	"gwgp-assistant-backend/internal/contract"
	"gwgp-assistant-backend/internal/logging"
	"gwgp-assistant-backend/internal/session"
	"gwgp-assistant-backend/internal/store"
	"gwgp-assistant-backend/internal/types"
)

const defaultMaxBody = 32 << 20

type Server struct {
	router    *chi.Mux
	cfg       config.Config
	assistant *capability.Assistant
	sessions  *store.MemoryStore
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

func NewServer(cfg config.Config, assistant *capability.Assistant, sessions *store.MemoryStore, log zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.AccessLog(logging.WithComponent(log, "http")))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", SessionHeader},
		ExposedHeaders:   []string{SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:    r,
		cfg:       cfg,
		assistant: assistant,
		sessions:  sessions,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowedOrigin),
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/answer", s.handleAnswer)
	s.router.Post("/api/image/edit", s.handleEditImage)
	s.router.Post("/api/speech", s.handleSpeech)
	s.router.Post("/api/video", s.handleVideo)
	s.router.Get("/api/news/briefing", s.handleBriefing)
	s.router.Post("/api/search", s.handleSearch)
	// Voice assistant
	s.router.Post("/api/voice/turn", s.handleVoiceTurn)
	s.router.Get("/api/voice/transcript", s.handleTranscript)
	s.router.Get("/api/voice/ws", s.handleVoiceWS)
	s.router.Delete("/api/session", s.handleEndSession)

	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "provider": s.assistant.Provider()})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody(s, w, r, contract.Answer)
	if !ok {
		return
	}
	s.submit(w, r, session.PageAsk, func(ctx context.Context) (any, error) {
		return s.assistant.Answer(ctx, req)
	})
}

func (s *Server) handleEditImage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody(s, w, r, contract.EditImage)
	if !ok {
		return
	}
	s.submit(w, r, session.PageImage, func(ctx context.Context) (any, error) {
		return s.assistant.EditImage(ctx, req)
	})
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody(s, w, r, contract.Speech)
	if !ok {
		return
	}
	s.submit(w, r, session.PageSpeech, func(ctx context.Context) (any, error) {
		return s.assistant.Speak(ctx, req)
	})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody(s, w, r, contract.Video)
	if !ok {
		return
	}
	s.submit(w, r, session.PageVideo, func(ctx context.Context) (any, error) {
		return s.assistant.GenerateVideo(ctx, req)
	})
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, session.PageNews, func(ctx context.Context) (any, error) {
		return s.assistant.Briefing(ctx)
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody(s, w, r, contract.Search)
	if !ok {
		return
	}
	s.submit(w, r, session.PageSearch, func(ctx context.Context) (any, error) {
		return s.assistant.Search(ctx, req)
	})
}

// handleVoiceTurn runs one typed voice turn. Upstream failures are
// reported in-band: the transcript already carries the error reply.
func (s *Server) handleVoiceTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody(s, w, r, contract.VoiceTurn)
	if !ok {
		return
	}
	sid := s.getOrCreateSessionID(w, r)
	conv := s.sessions.Get(sid).Conversation()

	reply, err := conv.HandleUtterance(r.Context(), req.Text)
	if err != nil && (errors.Is(err, session.ErrBusy) || errors.Is(err, capability.ErrInvalidInput)) {
		s.writeFailure(w, r, err)
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Str("session", sid).Msg("voice turn failed")
	}
	s.writeJSON(w, http.StatusOK, types.VoiceTurnResponse{
		SessionID:  sid,
		Transcript: conv.Transcript(),
		Reply:      reply.Text,
		Media:      reply.Media,
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sid := s.getOrCreateSessionID(w, r)
	turns := []types.Turn{}
	if sess, ok := s.sessions.Lookup(sid); ok {
		turns = append(turns, sess.Conversation().Transcript()...)
	}
	s.writeJSON(w, http.StatusOK, types.TranscriptResponse{SessionID: sid, Turns: turns})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if sid := getSessionID(r); sid != "" {
		s.sessions.Delete(sid)
	}
	ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// submit runs fn as the page's single in-flight request for the
// caller's session and writes its result.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, page session.Page, fn func(ctx context.Context) (any, error)) {
	sid := s.getOrCreateSessionID(w, r)
	machine := s.sessions.Get(sid).Machine(page)

	var out any
	err := machine.Submit(r.Context(), func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func decodeBody[T any](s *Server, w http.ResponseWriter, r *http.Request, schema *contract.Schema[T]) (T, bool) {
	var zero T
	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBody
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return zero, false
		}
		s.writeError(w, http.StatusBadRequest, "could not read request body")
		return zero, false
	}
	req, err := schema.Decode(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return zero, false
	}
	return req, true
}

// writeFailure maps an adapter or session error to a status code. Only
// input errors are echoed to the client; the rest are logged.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := http.StatusBadGateway, "the model request failed"
	switch {
	case errors.Is(err, capability.ErrInvalidInput), errors.Is(err, contract.ErrInvalid):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrBusy):
		code, msg = http.StatusConflict, "a request is already in progress"
	case errors.Is(err, capability.ErrUnsupported):
		code, msg = http.StatusUnprocessableEntity, "not supported by the configured model provider"
	case errors.Is(err, capability.ErrNoOutput):
		msg = "the model returned no output"
	case errors.Is(err, context.DeadlineExceeded):
		msg = "the model request timed out"
	}
	s.log.Warn().Err(err).Str("path", r.URL.Path).Int("status", code).Msg("request failed")
	s.writeError(w, code, msg)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}
