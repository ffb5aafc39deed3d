package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/nodevfs/pkg/buildinfo"
	"github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/install"
)

const maxBodyBytes = 1 << 20

type installRequest struct {
	Dependencies map[string]string `json:"dependencies"`
}

type installResponse struct {
	Files map[string]string `json:"files"`
	Stats statsResponse     `json:"stats"`
}

type statsResponse struct {
	Packages   int   `json:"packages"`
	Links      int   `json:"links"`
	Failed     int   `json:"failed"`
	Files      int   `json:"files"`
	DurationMS int64 `json:"durationMs"`
}

type resolveResponse struct {
	Name      string `json:"name"`
	Specifier string `json:"specifier"`
	Version   string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body"))
		return
	}
	if req.Dependencies == nil {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "dependencies is required"))
		return
	}

	res, err := s.installer.Install(r.Context(), req.Dependencies)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, installResponse{
		Files: res.Files,
		Stats: statsResponse{
			Packages:   res.Stats.Packages,
			Links:      res.Stats.Links,
			Failed:     res.Stats.Failed,
			Files:      res.Stats.Files,
			DurationMS: res.Stats.Duration.Milliseconds(),
		},
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	tracker := s.installer.Progress()
	if r.URL.Query().Get("stream") == "" {
		writeJSON(w, http.StatusOK, tracker.Snapshot())
		return
	}
	s.streamProgress(w, r, tracker)
}

// streamProgress sends snapshots as server-sent events until the session
// finishes or the client goes away. Updates that arrive while a write is in
// progress are coalesced: the next event carries the latest snapshot, so a
// slow client still sees the terminal state.
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request, tracker *install.Tracker) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errors.New(errors.ErrCodeUnsupported, "streaming not supported"))
		return
	}

	changed := make(chan struct{}, 1)
	cancel := tracker.Subscribe(func(install.Progress) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	send := func(p install.Progress) bool {
		data, err := json.Marshal(p)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return !p.Status.Finished() && p.Status != install.StatusIdle
	}

	if !send(tracker.Snapshot()) {
		return
	}
	for {
		select {
		case <-changed:
			if !send(tracker.Snapshot()) {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(chi.URLParam(r, "*"), "/")
	if err := errors.ValidatePackageName(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	spec := r.URL.Query().Get("specifier")
	if spec == "" {
		spec = "latest"
	}

	version, err := s.resolver.Resolve(r.Context(), name, spec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Name: name, Specifier: spec, Version: version})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()), "err", err)
	}
	writeJSON(w, status, errorResponse{Error: errors.UserMessage(err), Code: string(errors.GetCode(err))})
}

func statusFor(err error) int {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPackage, errors.ErrCodeInvalidManifest, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeResolution:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeFetch, errors.ErrCodeParse, errors.ErrCodeNetwork, errors.ErrCodeTimeout:
		return http.StatusBadGateway
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
