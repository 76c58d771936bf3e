// Package config defines service configuration and loading.
package config

// Store backend names accepted in StoreBackend.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WebhookSecret is the HMAC key shared with the grading pipeline.
	WebhookSecret string `koanf:"webhook_secret"`

	// SignatureHeader names the header carrying the signature token.
	SignatureHeader string `koanf:"signature_header"`

	// AdminTokenSecret signs the bearer tokens for admin endpoints.
	AdminTokenSecret string `koanf:"admin_token_secret"`

	// NotificationChannel receives promotion broadcasts; empty disables
	// them.
	NotificationChannel string `koanf:"notification_channel"`

	// RoleNamePrefix prefixes the rank role labels.
	RoleNamePrefix string `koanf:"role_name_prefix"`

	// StoreBackend selects the user store: "file" or "sqlite".
	StoreBackend string `koanf:"store_backend"`

	// StorePath locates the store file or database.
	StorePath string `koanf:"store_path"`

	// DedupeSize bounds the delivery-id replay cache.
	DedupeSize int `koanf:"dedupe_size"`

	// AnnounceQueueSize bounds pending promotion broadcasts.
	AnnounceQueueSize int `koanf:"announce_queue_size"`

	// AnnounceWorkers sets the number of broadcast dispatch workers.
	AnnounceWorkers int `koanf:"announce_workers"`
}

// New returns the configuration defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":8080",
		SignatureHeader:   "X-Signature-256",
		RoleNamePrefix:    "Git-Eval",
		StoreBackend:      StoreBackendFile,
		StorePath:         "data/users.json",
		DedupeSize:        50_000,
		AnnounceQueueSize: 1024,
		AnnounceWorkers:   2,
	}
}
