package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/difyz9/fail2ban-web/pkg/apiclient"
	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

type ErrorPayload struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int    `json:"retryAfterSec,omitempty"`
	Details       any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": {"code","message"}} with the status text as code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeTypedError(w, status, http.StatusText(status), message, 0)
}

func writeTypedError(w http.ResponseWriter, status int, code, message string, retryAfter int) {
	writeErrorPayload(w, status, ErrorPayload{Code: code, Message: message, RetryAfterSec: retryAfter})
}

func writeErrorPayload(w http.ResponseWriter, status int, p ErrorPayload) {
	w.Header().Set("Content-Type", "application/json")
	if p.RetryAfterSec > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(p.RetryAfterSec))
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"error": p}); err != nil {
		log.Warn().Err(err).Msg("write error response")
	}
}

// writeAPIError maps an error from the backend API onto a console response.
func writeAPIError(w http.ResponseWriter, err error) {
	var (
		rf *apiclient.RequestFailedError
		ne *apiclient.NetworkError
		ve *f2bapi.ValidationError
	)
	switch {
	case errors.Is(err, apiclient.ErrAuthExpired):
		writeTypedError(w, http.StatusUnauthorized, "session_expired", apiclient.UserMessage(err), 0)
	case errors.As(err, &ve):
		writeErrorPayload(w, http.StatusUnprocessableEntity, ErrorPayload{Code: "invalid_jail_update", Message: ve.Error(), Details: ve.Problems})
	case errors.As(err, &rf):
		status := rf.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		writeTypedError(w, status, "request_failed", rf.Message, 0)
	case errors.As(err, &ne):
		writeTypedError(w, http.StatusBadGateway, "backend_unreachable", ne.Message, 0)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
