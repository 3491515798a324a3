// Package webapi exposes the engine over HTTP: signal ingestion, state
// queries, recent logs, and prometheus metrics.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"designflow/pkg/logx"
	"designflow/pkg/proto"
	"designflow/pkg/workflow"
)

// Server is the engine's HTTP surface. It does no workflow logic of its
// own; every request turns into a registry call.
type Server struct {
	registry *workflow.Registry
	logger   *logx.Logger
	srv      *http.Server
}

// NewServer creates the HTTP server on addr.
func NewServer(registry *workflow.Registry, addr string) *Server {
	s := &Server{
		registry: registry,
		logger:   logx.NewLogger("webapi"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("GET /api/projects/{id}/logs", s.handleGetLogs)
	mux.HandleFunc("POST /api/projects/{id}/signals", s.handlePostSignal)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	st, err := s.registry.GetState(projectID)
	if errors.Is(err, workflow.ErrProjectNotFound) {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to load project %s: %v", projectID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, logx.RecentEntries(r.PathValue("id")))
}

// signalEnvelope is the wire form of a signal: a type plus a raw payload
// decoded per type below.
type signalEnvelope struct {
	Type proto.SignalType `json:"type"`
	Data json.RawMessage  `json:"data,omitempty"`
}

func (s *Server) handlePostSignal(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var env signalEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, fmt.Sprintf("invalid signal body: %v", err), http.StatusBadRequest)
		return
	}

	data, err := decodePayload(env.Type, env.Data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sig := proto.NewSignal(env.Type, projectID, data)
	if err := s.registry.Send(sig); err != nil {
		s.logger.Warn("rejected signal %s for %s: %v", env.Type, projectID, err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"signal_id": sig.ID})
}

// decodePayload turns the raw JSON into the typed payload each signal
// carries. Signals without payloads reject stray data.
func decodePayload(sigType proto.SignalType, raw json.RawMessage) (any, error) {
	decode := func(v any) (any, error) {
		if len(raw) == 0 {
			return nil, fmt.Errorf("signal %s requires a payload", sigType)
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %w", sigType, err)
		}
		return v, nil
	}

	switch sigType {
	case proto.SignalAddPhoto:
		v, err := decode(&proto.PhotoData{})
		if err != nil {
			return nil, err
		}
		return *v.(*proto.PhotoData), nil
	case proto.SignalRemovePhoto:
		v, err := decode(&proto.RemovePhotoPayload{})
		if err != nil {
			return nil, err
		}
		return *v.(*proto.RemovePhotoPayload), nil
	case proto.SignalUpdatePhotoNote:
		v, err := decode(&proto.PhotoNotePayload{})
		if err != nil {
			return nil, err
		}
		return *v.(*proto.PhotoNotePayload), nil
	case proto.SignalCompleteScan:
		v, err := decode(&proto.ScanData{})
		if err != nil {
			return nil, err
		}
		return *v.(*proto.ScanData), nil
	case proto.SignalCompleteIntake:
		v, err := decode(&proto.DesignBrief{})
		if err != nil {
			return nil, err
		}
		return *v.(*proto.DesignBrief), nil
	case proto.SignalSelectOption:
		v, err := decode(&proto.SelectOptionPayload{})
		if err != nil {
			return nil, err
		}
		return *v.(*proto.SelectOptionPayload), nil
	case proto.SignalSubmitAnnotation:
		v, err := decode(&proto.AnnotationPayload{})
		if err != nil {
			return nil, err
		}
		return *v.(*proto.AnnotationPayload), nil
	case proto.SignalSubmitFeedback:
		v, err := decode(&proto.FeedbackPayload{})
		if err != nil {
			return nil, err
		}
		return *v.(*proto.FeedbackPayload), nil
	case proto.SignalConfirmPhotos, proto.SignalSkipScan, proto.SignalSkipIntake,
		proto.SignalApproveDesign, proto.SignalRetryFailedStep,
		proto.SignalStartOver, proto.SignalCancelProject:
		if len(raw) > 0 && string(raw) != "null" {
			return nil, fmt.Errorf("signal %s does not take a payload", sigType)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown signal type %q", sigType)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
