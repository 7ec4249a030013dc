// ============================================================================
// backend/internal/shared/config.go
// Configuration management and environment variable helpers
// ============================================================================

package shared

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ============================================================================
// Configuration Structs
// ============================================================================

// Config holds the full configuration for the API process. It is loaded
// once in main and passed down explicitly; nothing reads the environment
// at call sites.
type Config struct {
	Environment string // development, staging, production
	HTTPPort    string

	MongoDB  MongoConfig
	CORS     CORSConfig
	Security SecurityConfig
}

// SecurityConfig holds the edit-code gate and edit-session token settings.
type SecurityConfig struct {
	// EditCode is the shared staff code compared in constant time.
	// EditCodeHash, when set, takes precedence and is a bcrypt hash.
	EditCode     string
	EditCodeHash string

	JWTSecret     string
	JWTExpiration time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // in seconds
}

// ============================================================================
// Configuration Loading Functions
// ============================================================================

// LoadEnv loads environment variables from .env file
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("Warning: %s file not found, using system environment variables", envFile)
		return err
	}

	log.Printf("Successfully loaded environment from %s", envFile)
	return nil
}

// LoadConfig loads the API configuration from the environment.
func LoadConfig() (*Config, error) {
	mongoURI := GetEnv("MONGO_URI", "")
	if mongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable is required")
	}

	config := &Config{
		Environment: GetEnv("ENVIRONMENT", "development"),
		HTTPPort:    GetEnv("HTTP_PORT", "8080"),
		MongoDB: MongoConfig{
			URI:            mongoURI,
			Database:       GetEnv("MONGO_DB_NAME", "nafes_passport"),
			ConnectTimeout: GetDurationEnv("MONGO_CONNECT_TIMEOUT", 20*time.Second),
			MaxPoolSize:    uint64(GetIntEnv("MONGO_MAX_POOL_SIZE", 50)),
			MinPoolSize:    uint64(GetIntEnv("MONGO_MIN_POOL_SIZE", 10)),
			MaxIdleTime:    GetDurationEnv("MONGO_MAX_IDLE_TIME", 30*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins:   GetStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		},
		Security: SecurityConfig{
			EditCode:      GetEnv("EDIT_CODE", ""),
			EditCodeHash:  GetEnv("EDIT_CODE_HASH", ""),
			JWTSecret:     GetEnv("JWT_SECRET", ""),
			JWTExpiration: GetDurationEnv("JWT_EXPIRATION", 12*time.Hour),
		},
	}

	if config.Security.EditCode == "" && config.Security.EditCodeHash == "" {
		return nil, fmt.Errorf("EDIT_CODE or EDIT_CODE_HASH environment variable is required")
	}
	if config.Security.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return config, nil
}

// ============================================================================
// Environment Variable Helpers
// ============================================================================

// GetEnv retrieves a string environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntEnv retrieves an integer environment variable or returns a default value
func GetIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetDurationEnv retrieves a duration environment variable or returns a default value
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetStringSliceEnv retrieves a comma-separated string list or returns a default value
func GetStringSliceEnv(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
