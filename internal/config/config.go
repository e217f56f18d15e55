// internal/config/config.go
//
// Environment-driven configuration for the Memory Match server.
// main loads .env (godotenv) first; Load then reads the process environment,
// falling back to development defaults for anything unset.

package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every runtime setting.
type Config struct {
	Port         string
	LogLevel     string
	DBPath       string
	ClientOrigin string

	JWTSecret     string
	JWTExpiry     time.Duration
	CookieName    string
	SecureCookies bool // NODE_ENV=production

	DailySalt string

	RevealDelay   time.Duration
	CompleteDelay time.Duration
	SessionIdle   time.Duration

	DeckMainFile  string
	DeckBonusFile string
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		Port:         getEnv("PORT", "5175"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DBPath:       getEnv("DB_PATH", "./data/memory.db"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),

		JWTSecret:     getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiry:     time.Duration(getInt("JWT_EXPIRES_DAYS", 14)) * 24 * time.Hour,
		CookieName:    getEnv("COOKIE_NAME", "memory_token"),
		SecureCookies: os.Getenv("NODE_ENV") == "production",

		DailySalt: getEnv("DAILY_SALT", "local_dev_salt"),

		RevealDelay:   time.Duration(getInt("REVEAL_DELAY_MS", 1000)) * time.Millisecond,
		CompleteDelay: time.Duration(getInt("COMPLETE_DELAY_MS", 1500)) * time.Millisecond,
		SessionIdle:   time.Duration(getInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,

		DeckMainFile:  os.Getenv("DECK_MAIN_FILE"),
		DeckBonusFile: os.Getenv("DECK_BONUS_FILE"),
	}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getInt parses k as a non-negative integer, or returns def.
func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
