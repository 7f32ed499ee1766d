package httpapi

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the failure shape for every JSON endpoint.
type errorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeJSONError writes a structured error response
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Message: message})
}

// writeJSONErrorDetails writes a structured error with a technical detail field
func writeJSONErrorDetails(w http.ResponseWriter, statusCode int, message, details string) {
	writeJSON(w, statusCode, errorResponse{Message: message, Details: details})
}
