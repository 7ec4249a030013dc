package tests

import (
	"context"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"nafes-passport/backend/internal/auth"
	"nafes-passport/backend/internal/changelog"
	"nafes-passport/backend/internal/gateway"
	"nafes-passport/backend/internal/shared"
	"nafes-passport/backend/internal/student"
)

const testEditCode = "1234"

// TestEnv holds the running components for a gateway test.
type TestEnv struct {
	Router   http.Handler
	Students *student.Service
	Logs     *changelog.Service
	Auth     *auth.Service
}

// setupGatewayTestEnv spins up the full API stack against a scratch
// database. Tests are skipped when MONGO_URI is not set.
func setupGatewayTestEnv(t *testing.T) *TestEnv {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	mongoURI := shared.GetEnv("MONGO_URI", "")
	if mongoURI == "" {
		t.Skip("MONGO_URI not set; skipping gateway integration tests")
	}

	mongoCfg := shared.MongoConfig{
		URI:            mongoURI,
		Database:       "nafes_passport_test",
		ConnectTimeout: 30 * time.Second,
		MaxPoolSize:    10,
		MinPoolSize:    1,
		MaxIdleTime:    60 * time.Second,
	}
	client, db, err := shared.ConnectMongoDB(&mongoCfg)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	t.Cleanup(func() { shared.DisconnectMongoDB(client) })

	// Clean DB before starting
	if err := db.Drop(context.Background()); err != nil {
		t.Fatalf("Failed to drop test database: %v", err)
	}

	cfg := &shared.Config{
		Environment: "test",
		HTTPPort:    "0",
		MongoDB:     mongoCfg,
		CORS: shared.CORSConfig{
			AllowedOrigins:   []string{"http://localhost:5173"},
			AllowCredentials: true,
		},
		Security: shared.SecurityConfig{
			EditCode:      testEditCode,
			JWTSecret:     "test-secret",
			JWTExpiration: time.Hour,
		},
	}

	logsService := changelog.NewService(db)
	studentService := student.NewService(db, logsService)
	authService := auth.NewService(cfg.Security)

	router := gateway.SetupRoutes(cfg, db, authService, studentService, logsService)

	return &TestEnv{
		Router:   router,
		Students: studentService,
		Logs:     logsService,
		Auth:     authService,
	}
}
