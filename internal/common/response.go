package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the payload under "error" in API error responses.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// JSONMessage renders the flat {"message": ...} shape used by endpoints whose
// contract predates the error envelope.
func JSONMessage(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"message": message})
}
