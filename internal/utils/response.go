package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse represents an error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RespondJSON writes a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// If encoding fails, log the error and try to send a plain text response
		log.Printf("[ERROR] Failed to encode JSON response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// RespondError writes an error response with logging for server errors (5xx)
func RespondError(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	if status >= 500 {
		log.Printf("[ERROR 500] %s %s - Error: %s - Message: %s - RemoteAddr: %s - UserAgent: %s",
			r.Method, r.URL.Path, errType, message, r.RemoteAddr, r.UserAgent())
	}

	RespondJSON(w, status, ErrorResponse{
		Error:   errType,
		Message: message,
	})
}

// RespondInternalError is a convenience function for 500 Internal Server Error with detailed logging
func RespondInternalError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	log.Printf("[ERROR 500] %s %s - Internal Error: %v - UserMessage: %s - RemoteAddr: %s - UserAgent: %s",
		r.Method, r.URL.Path, err, userMessage, r.RemoteAddr, r.UserAgent())

	// Don't expose internal error details to the client
	message := userMessage
	if message == "" {
		message = "An internal error occurred"
	}

	RespondJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "Internal Server Error",
		Message: message,
	})
}

// LogError logs an error without sending a response (useful when response is already sent)
func LogError(r *http.Request, status int, err error, context string) {
	level := "ERROR"
	if status >= 500 {
		level = "ERROR 500"
	} else if status >= 400 {
		level = "WARN"
	}

	log.Printf("[%s] %s %s - Status: %d - Error: %v - Context: %s - RemoteAddr: %s",
		level, r.Method, r.URL.Path, status, err, context, r.RemoteAddr)
}
