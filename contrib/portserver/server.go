// Package portserver exposes a Port over HTTP.
//
//	GET  /health              liveness
//	GET  /export/{type}/{id}  anonymized graph of one root, JSON or CBOR
//	POST /import              JSON graph or CBOR dump in, import report out
//	GET  /import/ws           websocket fragment stream in, report out
//
// Every response carries an X-Request-ID header, taken from the request
// when present.
package portserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/surrealdb/surrealport"
	"github.com/surrealdb/surrealport/internal/backend"
	"github.com/surrealdb/surrealport/pkg/codec"
	"github.com/surrealdb/surrealport/pkg/deserializer"
	"github.com/surrealdb/surrealport/pkg/logger"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/transport/wsstream"
)

const (
	// RequestIDHeader carries the request id.
	RequestIDHeader = "X-Request-ID"
	// ContentTypeCBOR selects the CBOR dump format.
	ContentTypeCBOR = "application/cbor"

	maxBodySize = 64 << 20
)

type ctxKey struct{}

// RequestID returns the id assigned to the request ctx belongs to.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Report is the response of an import.
type Report struct {
	RequestID string         `json:"request_id"`
	Fragments int            `json:"fragments"`
	Created   int            `json:"created"`
	Adopted   int            `json:"adopted"`
	Skipped   int            `json:"skipped"`
	Bindings  map[string]any `json:"bindings"`
	Error     string         `json:"error,omitempty"`
}

// Server serves exports and imports of one Port.
type Server struct {
	port   *surrealport.Port
	log    logger.Logger
	router *mux.Router
}

// New creates a Server over p.
func New(p *surrealport.Port, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{port: p, log: log, router: mux.NewRouter()}

	s.router.Use(s.requestID)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/export/{type}/{id}", s.handleExport).Methods("GET")
	s.router.HandleFunc("/import", s.handleImport).Methods("POST")
	s.router.HandleFunc("/import/ws", s.handleImportStream).Methods("GET")
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	s.log.Info("listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.log.Info("server stopped")
		return nil
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "prefix": s.port.Prefix()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t := models.TypeTag(vars["type"])
	id := backend.ParseID(vars["id"])

	ctx := r.Context()
	g, err := s.port.ExportByID(ctx, t, id)
	if err != nil {
		s.log.Warn("export failed", "request_id", RequestID(ctx), "type", t, "id", id, "error", err)
		respondError(w, statusOf(err), err.Error())
		return
	}
	s.log.Debug("exported", "request_id", RequestID(ctx), "type", t, "id", id, "records", g.Len())

	if r.URL.Query().Get("format") == "cbor" {
		w.Header().Set("Content-Type", ContentTypeCBOR)
		w.WriteHeader(http.StatusOK)
		if err := codec.NewCBORWriter(w).WriteGraph(g); err != nil {
			s.log.Error("failed to write dump", "request_id", RequestID(ctx), "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := codec.EncodeGraph(w, g); err != nil {
		s.log.Error("failed to write graph", "request_id", RequestID(ctx), "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := http.MaxBytesReader(w, r.Body, maxBodySize)

	var input any
	if r.Header.Get("Content-Type") == ContentTypeCBOR {
		input = codec.NewCBORStream(body)
	} else {
		data, err := io.ReadAll(body)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
		g, err := codec.DecodeGraph(data, s.port.Prefix())
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		input = g
	}

	res, err := s.port.Import(ctx, input)
	if err != nil {
		s.log.Warn("import failed", "request_id", RequestID(ctx), "error", err)
		respondError(w, statusOf(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, s.report(ctx, res))
}

func (s *Server) handleImportStream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsstream.Upgrade(w, r, wsstream.WithLogger(s.log), wsstream.WithReadLimit(maxBodySize))
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	res, err := s.port.Import(ctx, conn)
	if err != nil {
		s.log.Warn("stream import failed", "request_id", RequestID(ctx), "error", err)
		_ = conn.Reply(ctx, Report{RequestID: RequestID(ctx), Error: err.Error()})
		return
	}
	if err := conn.Reply(ctx, s.report(ctx, res)); err != nil {
		s.log.Warn("failed to send import report", "request_id", RequestID(ctx), "error", err)
	}
}

func (s *Server) report(ctx context.Context, res *deserializer.Result) Report {
	bindings := make(map[string]any, len(res.Bindings))
	for k, v := range res.Bindings {
		bindings[string(k)] = v
	}
	s.log.Info("imported",
		"request_id", RequestID(ctx),
		"created", res.Created,
		"adopted", res.Adopted,
		"skipped", res.Skipped,
	)
	return Report{
		RequestID: RequestID(ctx),
		Fragments: res.Fragments,
		Created:   res.Created,
		Adopted:   res.Adopted,
		Skipped:   res.Skipped,
		Bindings:  bindings,
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, surrealport.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, surrealport.ErrMalformedInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
