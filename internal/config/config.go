package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StoreKind string

const (
	StoreSQL    StoreKind = "sql"
	StoreMemory StoreKind = "memory"
)

// Config is the sync server configuration.
type Config struct {
	HTTPAddr string

	Store    StoreKind
	DBDriver string
	DBDSN    string

	RequireAuth bool
	AuthSecret  string
	TokenTTL    time.Duration
	// DevRole is the role granted to unauthenticated callers when
	// RequireAuth is off.
	DevRole string

	AdminUser     string
	AdminPassHash string // bcrypt
	// Users is "name:role:bcrypthash" entries separated by ";".
	Users string

	CORSOrigins []string
	MaxBody     int64

	RabbitURI      string
	RabbitExchange string
	SiteID         string

	ShutdownTimeout time.Duration
}

// Load reads .env into the process environment when one exists. Variables
// already set win.
func Load(files ...string) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
}

func FromEnv() Config {
	return Config{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		Store:           StoreKind(envOr("STORE", string(StoreSQL))),
		DBDriver:        envOr("DB_DRIVER", "sqlite"),
		DBDSN:           envOr("DB_DSN", ""),
		RequireAuth:     envBool("REQUIRE_AUTH", true),
		AuthSecret:      envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		TokenTTL:        envDuration("TOKEN_TTL", 8*time.Hour),
		DevRole:         envOr("DEV_ROLE", "admin"),
		AdminUser:       envOr("ADMIN_USER", "admin"),
		AdminPassHash:   envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		Users:           os.Getenv("USERS"),
		CORSOrigins:     csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		MaxBody:         2 << 20,
		RabbitURI:       os.Getenv("RABBITMQ_URI"),
		RabbitExchange:  envOr("RABBITMQ_EXCHANGE", "dsat.attempts"),
		SiteID:          envOr("SITE_ID", hostname()),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Client is the CLI configuration. Flags override every field.
type Client struct {
	DBPath  string
	BaseURL string
	UserID  string

	Token        string
	Username     string
	Password     string
	TokenURL     string
	ClientID     string
	ClientSecret string

	CurvesFile string
	Preset     string
	Interval   time.Duration
	Timeout    time.Duration

	// RemoteDriver/RemoteDSN open the remote store in process instead of
	// talking HTTP.
	RemoteDriver string
	RemoteDSN    string
}

func ClientFromEnv() Client {
	return Client{
		DBPath:       os.Getenv("DSAT_DB"),
		BaseURL:      os.Getenv("DSAT_BASE_URL"),
		UserID:       os.Getenv("DSAT_USER"),
		Token:        os.Getenv("DSAT_TOKEN"),
		Username:     os.Getenv("DSAT_USERNAME"),
		Password:     os.Getenv("DSAT_PASSWORD"),
		TokenURL:     os.Getenv("DSAT_TOKEN_URL"),
		ClientID:     os.Getenv("DSAT_CLIENT_ID"),
		ClientSecret: os.Getenv("DSAT_CLIENT_SECRET"),
		CurvesFile:   os.Getenv("DSAT_CURVES"),
		Preset:       os.Getenv("DSAT_PRESET"),
		Interval:     envDuration("DSAT_SYNC_INTERVAL", 3*time.Minute),
		Timeout:      envDuration("DSAT_HTTP_TIMEOUT", 15*time.Second),
		RemoteDriver: os.Getenv("DSAT_REMOTE_DRIVER"),
		RemoteDSN:    os.Getenv("DSAT_REMOTE_DSN"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: bad %s=%q, using %s", k, v, def)
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}
