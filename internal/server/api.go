package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
)

// UserHeader names the session user for an API request.
const UserHeader = "X-Hardlinks-User"

// maxRuleBytes bounds a POST /api/rules body.
const maxRuleBytes = 1 << 20

// RuleResponse is the answer to POST /api/rules.
type RuleResponse struct {
	Code       string               `json:"code,omitempty"`
	Status     int                  `json:"status"`
	StatusName string               `json:"status_name"`
	Message    string               `json:"message,omitempty"`
	Errors     []catalog.ErrorEntry `json:"errors,omitempty"`
}

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

// handleRules executes the request body as rule text.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}
	if s.host == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no host attached"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRuleBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	sess := catalog.NewSession(s.userOf(r))
	code, err := s.host.ExecRuleText(r.Context(), sess, string(body))

	status := catalog.StatusOf(err)
	resp := RuleResponse{
		Status:     int(status),
		StatusName: status.String(),
		Errors:     sess.Errors(),
	}
	if err != nil {
		resp.Message = err.Error()
		writeJSON(w, httpStatusOf(status), resp)
		return
	}
	resp.Code = code.String()
	writeJSON(w, http.StatusOK, resp)
}

// handleObjects describes the data object named by ?path=.
func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}
	if s.host == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no host attached"})
		return
	}

	p, err := catalog.ParsePath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	info, err := s.host.Stat(r.Context(), p)
	if err != nil {
		status := catalog.StatusOf(err)
		writeJSON(w, httpStatusOf(status), ErrorResponse{Error: err.Error(), Status: status.String()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleStats reports catalog counts and hook statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Objects int       `json:"objects"`
		Groups  int       `json:"groups"`
		Hooks   StatsData `json:"hooks"`
	}{Hooks: s.events.Stats()}

	if s.host != nil {
		var err error
		if resp.Objects, err = s.host.Catalog().GetObjectCountContext(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		if resp.Groups, err = s.host.Catalog().GetGroupCountContext(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) userOf(r *http.Request) string {
	if u := r.Header.Get(UserHeader); u != "" {
		return u
	}
	return s.user
}

func httpStatusOf(status catalog.Status) int {
	switch status {
	case catalog.StatusOK:
		return http.StatusOK
	case catalog.StatusNoRowsFound:
		return http.StatusNotFound
	case catalog.StatusUserInputFormat, catalog.StatusInvalidOperation:
		return http.StatusBadRequest
	case catalog.StatusNameExists:
		return http.StatusConflict
	case catalog.StatusNoAccessPermission:
		return http.StatusForbidden
	case catalog.StatusNotSupported:
		return http.StatusNotImplemented
	case catalog.StatusRuntime:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
