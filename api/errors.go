package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// follows RFC 7807: Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

func (pd *ProblemDetails) Error() string {
	return fmt.Sprintf("%d %s: %s", pd.Status, pd.Title, pd.Detail)
}

// RunProblem is a failed run's problem document. The counts are extension
// members, so a caller always learns what was found and processed.
type RunProblem struct {
	ProblemDetails
	RecordsFound     int `json:"records_found"`
	RecordsProcessed int `json:"records_processed"`
}

func newProblem(status int, title, detail, instance string) ProblemDetails {
	return ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

func writeProblem(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// WriteError writes a problem document. The returned error is the body
// encoding failure, if any; the status line is already sent.
func WriteError(w http.ResponseWriter, status int, title, detail, instance string) error {
	pd := newProblem(status, title, detail, instance)
	return writeProblem(w, status, &pd)
}

// WriteRunError writes a problem document carrying the run's counts.
func WriteRunError(w http.ResponseWriter, status int, title, detail, instance string, found, processed int) error {
	return writeProblem(w, status, &RunProblem{
		ProblemDetails:   newProblem(status, title, detail, instance),
		RecordsFound:     found,
		RecordsProcessed: processed,
	})
}

func WriteMethodNotAllowed(w http.ResponseWriter, allowed, instance string) error {
	w.Header().Set("Allow", allowed)
	return WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "Use "+allowed+".", instance)
}

func WriteConflict(w http.ResponseWriter, detail, instance string) error {
	return WriteError(w, http.StatusConflict, "Conflict", detail, instance)
}

func WriteTooManyRequests(w http.ResponseWriter, instance string) error {
	return WriteError(w, http.StatusTooManyRequests, "Too Many Requests", "Run trigger rate limit exceeded, retry later.", instance)
}
