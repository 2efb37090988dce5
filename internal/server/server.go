package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"ews-api/internal/database"
	"ews-api/internal/emails"
	"ews-api/internal/ewsclient"
	"ews-api/internal/mailstore"
)

type Server struct {
	port int

	db           database.Service
	emailHandler *emails.Handler
}

func NewServer() *http.Server {
	port, _ := strconv.Atoi(os.Getenv("PORT"))

	// Initialize database
	db := database.New()

	// Initialize the attachment audit store
	store := mailstore.NewRepository(db.DB())
	if err := store.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to migrate attachment records: %v", err)
	}

	// Initialize the Exchange client (optional)
	var emailHandler *emails.Handler
	ewsConfig, err := ewsclient.LoadConfig()
	if err != nil {
		log.Printf("Warning: Failed to load EWS config: %v", err)
	} else if ewsConfig.IsEnabled() {
		ewsClient, err := ewsclient.NewClient(ewsConfig)
		if err != nil {
			log.Printf("Warning: Failed to create EWS client: %v", err)
		} else {
			emailService := emails.NewService(ewsClient, store)
			emailHandler = emails.NewHandler(emailService)
			log.Println("EWS integration initialized successfully")
		}
	} else {
		log.Println("EWS integration not configured (EWS_SERVER_URL not set)")
	}

	NewServer := &Server{
		port:         port,
		db:           db,
		emailHandler: emailHandler,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
