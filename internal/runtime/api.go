package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/captionlabs/livecap-core/internal/notes"
)

func (r *Runtime) buildMux(metricHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}
	mux.HandleFunc("GET /v1/captions", r.handleCaptions)
	mux.HandleFunc("GET /v1/volume", r.handleVolume)
	mux.HandleFunc("GET /v1/sessions", r.handleListSessions)
	mux.HandleFunc("GET /v1/sessions/{id}", r.handleGetSession)
	mux.HandleFunc("GET /v1/clients", r.handleClients)
	mux.HandleFunc("GET /v1/preferences/language", r.handleGetLanguage)
	mux.HandleFunc("PUT /v1/preferences/language", r.handleSetLanguage)
	return mux
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !r.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	for _, check := range r.checks {
		if !check.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("degraded"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (r *Runtime) handleCaptions(w http.ResponseWriter, _ *http.Request) {
	r.writeJSON(w, r.captions.Snapshot())
}

func (r *Runtime) handleVolume(w http.ResponseWriter, _ *http.Request) {
	r.writeJSON(w, r.volume.Current())
}

func (r *Runtime) handleListSessions(w http.ResponseWriter, req *http.Request) {
	filter := notes.Filter{
		Subject: req.URL.Query().Get("subject"),
		Search:  req.URL.Query().Get("q"),
	}
	sessions, err := r.store.List(req.Context(), filter)
	if err != nil {
		r.logger.Error("list sessions failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []notes.CaptureSession{}
	}
	r.writeJSON(w, sessions)
}

func (r *Runtime) handleGetSession(w http.ResponseWriter, req *http.Request) {
	session, err := r.store.Get(req.Context(), req.PathValue("id"))
	if errors.Is(err, notes.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		r.logger.Error("get session failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	r.writeJSON(w, session)
}

func (r *Runtime) handleClients(w http.ResponseWriter, _ *http.Request) {
	clients := r.presence.Query(nil)
	r.writeJSON(w, clients)
}

func (r *Runtime) handleGetLanguage(w http.ResponseWriter, req *http.Request) {
	lang, err := r.store.LanguagePreference(req.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	r.writeJSON(w, map[string]string{"language": lang})
}

func (r *Runtime) handleSetLanguage(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := r.store.SetLanguagePreference(req.Context(), body.Language); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		r.logger.Error("encode response failed", slog.String("error", err.Error()))
	}
}
