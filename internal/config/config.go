// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable for the DM server. All values come from
// environment variables; Load applies defaults for anything unset.
type Config struct {
	// WebSocket gateway
	ListenAddr     string
	WorkerPoolSize int
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// HTTP API
	APIAddr        string
	AllowedOrigins []string

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// Redis (rate limiting); empty disables throttling
	RedisAddr string

	// NATS (audit events); empty disables publishing
	NATSURL string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// File storage
	UploadDir string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables take
// precedence over it. JWT_SECRET is required.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("config: loaded .env file")
	}

	return Config{
		ListenAddr:     getenv("LISTEN_ADDR", ":8080"),
		WorkerPoolSize: getint("WORKER_POOL_SIZE", 256),
		MaxConnections: getint("MAX_CONNECTIONS", 100000),
		ReadTimeout:    getdur("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getdur("WRITE_TIMEOUT", 10*time.Second),

		APIAddr:        getenv("API_ADDR", ":8081"),
		AllowedOrigins: getlist("ALLOWED_ORIGINS", nil),

		MongoURI:      getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getenv("MONGO_DATABASE", "echodm"),

		RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),

		NATSURL: getenv("NATS_URL", ""),

		JWTSecret: must("JWT_SECRET"),
		TokenTTL:  getdur("TOKEN_TTL", 72*time.Hour),

		UploadDir: getenv("UPLOAD_DIR", "uploads"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getlist(k string, def []string) []string {
	if v := os.Getenv(k); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("config: invalid %s=%q, using default %d", k, v, def)
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("config: invalid %s=%q, using default %s", k, v, def)
	}
	return def
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("config: missing required env %s", k)
	}
	return v
}
