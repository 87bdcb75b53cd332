package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/egonelbre/abctools/abcfmt/abc"
	"github.com/egonelbre/abctools/abcfmt/align"
)

const maxBodySize = 4 << 20

// Server formats tunebooks posted to /format. Every request parses with
// its own id generator, so requests share no mutable state.
type Server struct {
	config Config
	log    *logrus.Logger
}

func NewServer(config Config, log *logrus.Logger) *Server {
	return &Server{config: config, log: log}
}

// FormatResponse is the reply of /format.
type FormatResponse struct {
	Output   string        `json:"output"`
	Warnings []abc.Warning `json:"warnings"`
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(s.requestID)
	router.HandleFunc("/format", s.handleFormat).Methods(http.MethodPost)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return cors.Default().Handler(router)
}

type logKey struct{}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)

		log := s.log.WithFields(logrus.Fields{
			"request": id,
			"method":  r.Method,
			"path":    r.URL.Path,
		})
		log.Debug("request")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), logKey{}, log)))
	})
}

func requestLog(r *http.Request) *logrus.Entry {
	if log, ok := r.Context().Value(logKey{}).(*logrus.Entry); ok {
		return log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		log.WithError(err).Warn("failed to read body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	formatter := align.Formatter{Align: s.config.Align, Normalize: s.config.Normalize}
	query := r.URL.Query()
	for name, target := range map[string]*bool{
		"normalize": &formatter.Normalize,
		"align":     &formatter.Align,
	} {
		v := query.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid "+name+" parameter", http.StatusBadRequest)
			return
		}
		*target = b
	}

	out, warnings := align.FormatString(string(body), formatter)
	logWarnings(log, warnings)
	if warnings == nil {
		warnings = []abc.Warning{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(FormatResponse{Output: out, Warnings: warnings}); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "ok\n")
}
