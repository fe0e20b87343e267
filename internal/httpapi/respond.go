package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
)

// errorBody is the error envelope every failing endpoint returns. ErrorCode
// carries the legacy numeric codes (-1 room full, -2 already member,
// -3 room not found) where the endpoint defines them.
type errorBody struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorCode int    `json:"error_code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Status: "error", Message: message})
}

func writeErrorCode(w http.ResponseWriter, status int, message string, code int) {
	writeJSON(w, status, errorBody{Status: "error", Message: message, ErrorCode: code})
}
