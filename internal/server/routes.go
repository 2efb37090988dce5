package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ews-api/internal/utils"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(RecoverMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.HelloWorldHandler)

	r.Get("/health", s.healthHandler)

	// Email routes are only present when the Exchange client is configured.
	if s.emailHandler != nil {
		s.emailHandler.RegisterRoutes(r)
	} else {
		r.HandleFunc("/emails/*", s.ewsUnavailableHandler)
		r.HandleFunc("/emails", s.ewsUnavailableHandler)
	}

	return r
}

// HelloWorldHandler returns a hello world message.
func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	resp := make(map[string]string)
	resp["message"] = "Hello World"

	jsonResp, err := json.Marshal(resp)
	if err != nil {
		log.Fatalf("error handling JSON marshal. Err: %v", err)
	}

	_, _ = w.Write(jsonResp)
}

// healthHandler returns the health status of the service and its database
// connection.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResp, _ := json.Marshal(s.db.Health())
	_, _ = w.Write(jsonResp)
}

func (s *Server) ewsUnavailableHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondError(w, r, http.StatusServiceUnavailable,
		"Service Unavailable", "EWS integration is not configured")
}
