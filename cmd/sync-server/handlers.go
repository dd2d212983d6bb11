package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/scrumlens/sync-core/internal/importer"
	"github.com/scrumlens/sync-core/internal/model"
	"github.com/scrumlens/sync-core/internal/oauth"
	"github.com/scrumlens/sync-core/internal/store"
)

type server struct {
	orchestrator *importer.Orchestrator
	oauth        *oauth.Manager
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/api/import", s.handleImport)
	mux.HandleFunc("/api/import/history", s.handleHistory)
	mux.HandleFunc("/api/epics", s.handleEpics)
	mux.HandleFunc("/api/issues", s.handleIssues)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/connection/test", s.handleConnectionTest)
	mux.HandleFunc("/oauth/authorize", s.handleAuthorize)
	mux.HandleFunc("/oauth/callback", s.handleCallback)
	mux.HandleFunc("/oauth/account", s.handleAccount)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

type importRequest struct {
	TeamName   string           `json:"teamName"`
	ProjectKey string           `json:"projectKey"`
	Kind       model.ImportKind `json:"kind"`
}

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TeamName == "" || req.ProjectKey == "" {
		writeError(w, http.StatusBadRequest, "teamName and projectKey are required")
		return
	}
	switch req.Kind {
	case model.KindEpics, model.KindIssues, model.KindFull:
	case "":
		req.Kind = model.KindFull
	default:
		writeError(w, http.StatusBadRequest, "kind must be epics, issues, or full")
		return
	}

	result, err := s.orchestrator.PerformImport(r.Context(), req.TeamName, req.ProjectKey, req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	team, project, ok := scopeParams(w, r)
	if !ok {
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := s.orchestrator.GetImportHistory(r.Context(), team, project, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *server) handleEpics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	team, project, ok := scopeParams(w, r)
	if !ok {
		return
	}
	epics, err := s.orchestrator.GetImportedEpics(r.Context(), team, project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"epics": epics})
}

func (s *server) handleIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	team, project, ok := scopeParams(w, r)
	if !ok {
		return
	}
	issues, err := s.orchestrator.GetImportedIssues(r.Context(), team, project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (s *server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		team, project, ok := scopeParams(w, r)
		if !ok {
			return
		}
		cfg, err := s.orchestrator.GetImportConfig(r.Context(), team, project)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no configuration for scope")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, cfg)

	case http.MethodPost, http.MethodPut:
		var input importer.ConfigInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.orchestrator.SaveImportConfig(r.Context(), &input); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET, POST, or PUT required")
	}
}

func (s *server) handleConnectionTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	team, project, ok := scopeParams(w, r)
	if !ok {
		return
	}

	status, err := s.orchestrator.TestTrackerConnection(r.Context(), team, project)
	if err != nil {
		if status == nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// The probe ran and failed; return the classified outcome.
		writeJSON(w, http.StatusOK, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusNotImplemented, "OAuth is not configured")
		return
	}
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}

	authorizeURL, err := s.oauth.BeginAuthorization(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

func (s *server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusNotImplemented, "OAuth is not configured")
		return
	}

	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		writeError(w, http.StatusBadRequest, "authorization denied: "+errCode)
		return
	}

	cred, err := s.oauth.CompleteAuthorization(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidState) {
			writeError(w, http.StatusBadRequest, "invalid or expired authorization state")
			return
		}
		log.Printf("oauth callback: %v", err)
		writeError(w, http.StatusBadGateway, "authorization could not be completed")
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (s *server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusNotImplemented, "OAuth is not configured")
		return
	}
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		cred, err := s.oauth.Account(r.Context(), account)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "account is not connected")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, cred)

	case http.MethodDelete:
		if err := s.oauth.Revoke(r.Context(), account); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "account is not connected")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or DELETE required")
	}
}

func scopeParams(w http.ResponseWriter, r *http.Request) (team, project string, ok bool) {
	q := r.URL.Query()
	team, project = q.Get("team"), q.Get("project")
	if team == "" || project == "" {
		writeError(w, http.StatusBadRequest, "team and project are required")
		return "", "", false
	}
	return team, project, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
