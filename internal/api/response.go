package api

import (
	"encoding/json"
	"log"
	"net/http"
)

const contentTypeJSON = "application/json"

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RespondJSON encodes data with the given status. A nil data sends headers only.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("API: Encoding %T for status %d failed: %v", data, status, err)
	}
}

func respondErr(w http.ResponseWriter, status int, body ErrorResponse) {
	RespondJSON(w, status, body)
}

func RespondError(w http.ResponseWriter, status int, message string) {
	respondErr(w, status, ErrorResponse{Error: message})
}

func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	respondErr(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondInternalError logs the cause under op and replies with a generic 500.
func RespondInternalError(w http.ResponseWriter, op string, err error) {
	log.Printf("API: %s failed: %v", op, err)
	respondErr(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: "internal"})
}

// RespondValidationError replies 422 with one message per offending field.
func RespondValidationError(w http.ResponseWriter, fields map[string]string) {
	respondErr(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    "validation_error",
		Details: fields,
	})
}
