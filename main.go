package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

var zlog *zap.SugaredLogger

func main() {
	// Auto-load ./.env if present (no external dependency) before reading vars
	loadDotEnv()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)
	zlog = newLogger()
	defer zlog.Sync()

	// Support a lightweight migrate command: `./doclink migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		initStagingDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()
	initStagingDB()

	r := gin.Default()

	setupRoutes(r)

	r.Run(":8081")
}

// newLogger builds the structured logger handed to the reconciliation engine.
// APP_ENV=prod switches to the JSON production config.
func newLogger() *zap.SugaredLogger {
	var l *zap.Logger
	var err error
	switch strings.ToLower(os.Getenv("APP_ENV")) {
	case "prod", "production":
		l, err = zap.NewProduction()
	default:
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// loadDotEnv loads key=value pairs from a local .env file into the environment
// without overwriting variables that are already set. Lines starting with # are ignored.
func loadDotEnv() {
	path := ".env"
	if _, err := os.Stat(path); err != nil {
		return // no .env file
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// split on first '='
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.TrimSpace(line[eq+1:])
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
