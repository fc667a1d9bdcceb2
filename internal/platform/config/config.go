package config

import "os"

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SENTRA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	// Empty means the in-memory audit store; set to a postgres URL for
	// durable audit persistence.
	databaseURL := os.Getenv("SENTRA_DATABASE_URL")

	jwtSigningKey := os.Getenv("SENTRA_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		DatabaseURL:   databaseURL,
		JWTSigningKey: jwtSigningKey,
	}
}
