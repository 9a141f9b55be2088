// Package server is the thin HTTP layer around the mosh core: it
// accepts two uploaded videos plus effect parameters, runs
// extract -> mosh -> remux, and serves the result.
package server

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Eyevinn/mosh264/internal/media"
)

// Config holds server settings, all supplied by the caller. The server
// keeps no process-wide mutable state beyond the upload directory.
type Config struct {
	Addr          string
	UploadDir     string
	MaxUploadSize int64
	FFmpegPath    string
}

type Server struct {
	cfg        Config
	log        *logrus.Logger
	transcoder media.Transcoder
	router     *mux.Router
}

// New creates a server and its upload directory. A nil transcoder gets
// an FFmpeg runner with the configured binary path.
func New(cfg Config, log *logrus.Logger, tc media.Transcoder) (*Server, error) {
	if log == nil {
		log = logrus.New()
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 512 << 20
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	if tc == nil {
		tc = media.NewFFmpeg(cfg.FFmpegPath, log)
	}
	s := &Server{cfg: cfg, log: log, transcoder: tc}
	s.router = mux.NewRouter()
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/process", s.handleProcess).Methods(http.MethodPost)
	s.router.HandleFunc("/uploads/{name}", s.handleDownload).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s, nil
}

// Router returns the HTTP handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe blocks serving HTTP on the configured address.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.Addr).Info("listening")
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}
