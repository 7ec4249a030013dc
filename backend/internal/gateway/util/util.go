package util

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"nafes-passport/backend/internal/shared"
)

// JSONResponse structure for successful responses
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// JSONError structure for error responses
type JSONError struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// WriteJSON is a helper to write JSON responses
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// If payload is already a map with a "success" key, use it directly
	var response interface{}
	if responseMap, ok := payload.(map[string]interface{}); ok && responseMap["success"] != nil {
		response = payload
	} else if status >= 200 && status < 300 {
		response = JSONResponse{Success: true, Data: payload}
	} else {
		response = JSONError{Success: false, Message: "Unknown error"}
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// WriteJSONError is a helper to write standardized error JSON responses
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	log.Printf("HTTP Error %d: %s", status, message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResponse := JSONError{
		Success: false,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Printf("Error writing JSON error response: %v", err)
	}
}

// HandleServiceError maps service-layer errors to HTTP responses. This is
// the central error mapping for the API surface.
func HandleServiceError(w http.ResponseWriter, err error) {
	var validationErr *shared.ValidationError
	switch {
	case errors.As(err, &validationErr):
		log.Printf("HTTP Error %d: %s", http.StatusBadRequest, validationErr.Error())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		resp := JSONError{Success: false, Message: "Validation failed", Fields: validationErr.Fields}
		if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
			log.Printf("Error writing JSON error response: %v", encodeErr)
		}
	case errors.Is(err, shared.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrUnavailable),
		errors.Is(err, mongo.ErrClientDisconnected),
		mongo.IsNetworkError(err):
		// The store is unreachable; the client shows its no-database banner.
		WriteJSONError(w, http.StatusServiceUnavailable, "Database unavailable")
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		WriteJSONError(w, http.StatusGatewayTimeout, "Database timeout")
	default:
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// ExtractToken extracts the token from the Authorization header (Bearer <token>)
func ExtractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}

	// Expect header: "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}
