package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Config holds every runtime setting the server needs. It is loaded once in
// main and passed into the services that need it; nothing reads the
// environment after startup.
type Config struct {
	Port          string
	MongoURI      string
	MongoDatabase string
	JWTSecret     string
	TokenValidity time.Duration
	CORSOrigins   []string
	UploadsDir    string
}

const DefaultTokenValidity = 7 * 24 * time.Hour

// Load reads configuration from the environment. JWT_SECRET is the only
// required variable and must be at least 16 characters.
func Load() (Config, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if len(secret) < 16 {
		return Config{}, errors.New("JWT_SECRET is required and must be at least 16 characters long")
	}

	validity := DefaultTokenValidity
	if raw := os.Getenv("JWT_TOKEN_VALIDITY"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			validity = parsed
		}
	}

	origins := []string{"http://localhost:3000"}
	if raw := os.Getenv("CORS_ORIGIN"); raw != "" {
		origins = origins[:0]
		for _, origin := range strings.Split(raw, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins = append(origins, origin)
			}
		}
	}

	return Config{
		Port:          envOrDefault("PORT", "8080"),
		MongoURI:      envOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: envOrDefault("MONGODB_DATABASE", "campusnet"),
		JWTSecret:     secret,
		TokenValidity: validity,
		CORSOrigins:   origins,
		UploadsDir:    envOrDefault("UPLOADS_DIR", "uploads"),
	}, nil
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
