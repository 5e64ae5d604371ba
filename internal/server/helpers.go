package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bobmcallan/snaptrail/internal/calendar"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// dateParam reads ?date=, defaulting to the target date for now.
// Returns false and writes a 400 when the value does not parse.
func (s *Server) dateParam(w http.ResponseWriter, r *http.Request) (calendar.Date, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return s.app.SnapshotService.TargetDate(time.Now()), true
	}
	d, err := calendar.Parse(raw)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, "Invalid date: "+raw, "invalid_date")
		return calendar.Date{}, false
	}
	return d, true
}

// intParam reads a positive integer query parameter with a default and cap.
func intParam(r *http.Request, name string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
