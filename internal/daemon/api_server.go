package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"songflow/internal/api"
	"songflow/internal/config"
	"songflow/internal/library"
	"songflow/internal/logging"
)

const (
	apiRequestLimit = 600
	apiWindow       = time.Minute
	maxBodyBytes    = 64 << 10
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	sessions *api.SessionService

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
		bind:     bind,
		logger:   logger,
		daemon:   d,
		sessions: d.Sessions(),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(strings.TrimSpace(cfg.Paths.APIToken)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)

	r.Handle("/metrics", promhttp.Handler())
	r.Get(library.MediaPrefix+"*", s.handleMedia)

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(apiRequestLimit, apiWindow))
		r.Use(authMiddleware(token))

		r.Get("/status", s.handleStatus)
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/close", s.handleCloseSession)
			r.Post("/reopen", s.handleReopenSession)
			r.Post("/prompt", s.handlePrompt)
			r.Post("/interrupt", s.handleInterrupt)
			r.Get("/songs", s.handleListSongs)
			r.Get("/next", s.handleNext)
		})
		r.Post("/songs/{id}/retry", s.handleRetry)
		r.Post("/songs/{id}/played", s.handlePlayed)
		r.Post("/songs/{id}/replay", s.handleReplay)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings/{key}", s.handlePutSetting)
	})
	return r
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
		}),
	)
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
	}
}

func (s *apiServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log().Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(start)),
			logging.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		LibraryDir:   status.LibraryDir,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Preflight:    api.FromPreflight(status.Preflight),
	})
}

func (s *apiServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context(), r.URL.Query()["status"]...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: sessions})
}

func (s *apiServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	session, err := s.sessions.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.log().Info("session created",
		logging.String(logging.FieldSessionID, session.ID),
		logging.String("mode", session.Mode),
		logging.String(logging.FieldEventType, "session_created"),
	)
	s.writeJSON(w, http.StatusCreated, api.SessionResponse{Session: session})
}

func (s *apiServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Describe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: session})
}

func (s *apiServer) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	var req api.CloseRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	session, err := s.sessions.Close(r.Context(), chi.URLParam(r, "id"), req.Immediate)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: session})
}

func (s *apiServer) handleReopenSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Reopen(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: session})
}

func (s *apiServer) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req api.PromptRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	session, err := s.sessions.UpdatePrompt(r.Context(), chi.URLParam(r, "id"), req.Prompt)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: session})
}

func (s *apiServer) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	var req api.PromptRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	song, err := s.sessions.Interrupt(r.Context(), chi.URLParam(r, "id"), req.Prompt)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.SongResponse{Song: song})
}

func (s *apiServer) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.sessions.Songs(r.Context(), chi.URLParam(r, "id"), r.URL.Query()["status"]...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SongListResponse{Songs: songs})
}

func (s *apiServer) handleNext(w http.ResponseWriter, r *http.Request) {
	song, err := s.sessions.Next(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if song == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SongResponse{Song: *song})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.songAction(w, r, s.sessions.Retry)
}

func (s *apiServer) handlePlayed(w http.ResponseWriter, r *http.Request) {
	s.songAction(w, r, s.sessions.MarkPlayed)
}

func (s *apiServer) handleReplay(w http.ResponseWriter, r *http.Request) {
	s.songAction(w, r, s.sessions.Replay)
}

func (s *apiServer) songAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string) (api.Song, error)) {
	song, err := action(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SongResponse{Song: song})
}

func (s *apiServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.sessions.Settings(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *apiServer) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	var req api.SettingRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	key := chi.URLParam(r, "key")
	if err := s.sessions.PutSetting(r.Context(), key, req.Value); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.log().Info("setting updated",
		logging.String("key", key),
		logging.String(logging.FieldEventType, "setting_updated"),
	)
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body into dst. An empty body is accepted when
// optional is set.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := api.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log().Error("api request failed", logging.Error(err))
	}
	s.writeError(w, status, err.Error())
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

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
