package ewsclient

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"ews-api/internal/ewsxml"
)

// Config holds Exchange Web Services connection settings.
type Config struct {
	ServerURL     string
	Username      string
	Password      string
	Domain        string
	Version       string
	Timeout       time.Duration
	SkipTLSVerify bool
}

// LoadConfig reads EWS configuration from environment variables. EWS is an
// optional integration: a missing EWS_SERVER_URL returns a nil config and no
// error so the server can boot without it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerURL:     getEnv("EWS_SERVER_URL", ""),
		Username:      getEnv("EWS_USERNAME", ""),
		Password:      getEnv("EWS_PASSWORD", ""),
		Domain:        getEnv("EWS_DOMAIN", ""),
		Version:       getEnv("EWS_VERSION", ewsxml.Exchange2013SP1),
		Timeout:       getDurationEnv("EWS_TIMEOUT", 30*time.Second),
		SkipTLSVerify: getBoolEnv("EWS_SKIP_TLS_VERIFY", false),
	}

	if cfg.ServerURL == "" {
		return nil, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := ValidateEWSURL(c.ServerURL); err != nil {
		return err
	}
	if c.Username == "" {
		return fmt.Errorf("EWS_USERNAME is required when EWS_SERVER_URL is set")
	}
	if c.Password == "" {
		return fmt.Errorf("EWS_PASSWORD is required when EWS_SERVER_URL is set")
	}
	return nil
}

// IsEnabled reports whether the EWS integration is configured.
func (c *Config) IsEnabled() bool {
	return c != nil && c.ServerURL != ""
}

// ValidateEWSURL validates the Exchange server URL.
func ValidateEWSURL(ewsURL string) error {
	if ewsURL == "" {
		return fmt.Errorf("EWS server URL is required")
	}
	parsed, err := url.Parse(ewsURL)
	if err != nil {
		return fmt.Errorf("invalid EWS server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("EWS server URL must use http or https scheme")
	}
	return nil
}

// Well-known Exchange folder names accepted by the emails feature.
const (
	FolderInbox        = "inbox"
	FolderSentItems    = "sentitems"
	FolderDrafts       = "drafts"
	FolderDeletedItems = "deleteditems"
	FolderJunkEmail    = "junkemail"
	FolderOutbox       = "outbox"
)

var folderIDs = map[string]string{
	"inbox":        "inbox",
	"sent":         "sentitems",
	"sentitems":    "sentitems",
	"drafts":       "drafts",
	"deleted":      "deleteditems",
	"deleteditems": "deleteditems",
	"junk":         "junkemail",
	"junkemail":    "junkemail",
	"outbox":       "outbox",
	"archive":      "archiveinbox",
}

// ErrUnknownFolder is returned for folder names outside the accepted set.
var ErrUnknownFolder = errors.New("unknown folder name")

// FolderID maps a user-facing folder name to its DistinguishedFolderId
// value. An empty name means the inbox; anything else outside the alias
// table is an error rather than a silent inbox fallback.
func FolderID(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return FolderInbox, nil
	}
	if id, ok := folderIDs[normalized]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFolder, name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
