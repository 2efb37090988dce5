package server

import (
	"log"
	"net/http"
	"runtime/debug"
)

// RecoverMiddleware recovers from panics and logs the error with stack trace
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC RECOVERED] %s %s - Error: %v\n", r.Method, r.URL.Path, err)
				log.Printf("Stack trace:\n%s", string(debug.Stack()))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"Internal Server Error","message":"An unexpected error occurred"}`))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
