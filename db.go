package main

import (
	"log"
	"os"
	"strings"

	"doclink/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB        // content store
var stagingDB *gorm.DB // staging store shared with the extraction pipeline

func initDB() {
	var err error
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect postgres database:", err)
	}
	migrateContent(db)
	seedDB()
}

// initStagingDB connects to the database the extraction pipeline writes into.
// STAGING_DB_DSN falls back to DB_DSN for single-database deployments.
func initStagingDB() {
	dsn := os.Getenv("STAGING_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		log.Fatal("STAGING_DB_DSN (or DB_DSN) is not set.")
	}
	var err error
	stagingDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect staging database:", err)
	}
	migrateStaging(stagingDB)
}

// migrateContent runs content-store migrations, controlled by env
// DB_AUTO_MIGRATE (default true). Permission errors are logged and ignored.
func migrateContent(gdb *gorm.DB) {
	if !shouldAutoMigrate() {
		return
	}
	// Roles first so the users FK can be applied safely.
	if err := gdb.AutoMigrate(&models.Role{}); err != nil {
		log.Printf("migration warning (roles): %v", err)
	}
	// Migrate models individually so a failure on one doesn't block others
	if err := gdb.AutoMigrate(&models.User{}); err != nil {
		log.Printf("migration warning (users): %v", err)
	}
	if err := gdb.AutoMigrate(&models.DocFile{}); err != nil {
		log.Printf("migration warning (doc_files): %v", err)
	}
	if err := gdb.AutoMigrate(&models.Doc{}); err != nil {
		log.Printf("migration warning (docs): %v", err)
	}
	if err := gdb.AutoMigrate(&models.Link{}); err != nil {
		log.Printf("migration warning (links): %v", err)
	}
}

func migrateStaging(gdb *gorm.DB) {
	if !shouldAutoMigrate() {
		return
	}
	if err := gdb.AutoMigrate(&models.StagedDoc{}); err != nil {
		log.Printf("migration warning (staged_docs): %v", err)
	}
	if err := gdb.AutoMigrate(&models.StagedLink{}); err != nil {
		log.Printf("migration warning (staged_links): %v", err)
	}
	if err := gdb.AutoMigrate(&models.StagedFilePath{}); err != nil {
		log.Printf("migration warning (staged_file_paths): %v", err)
	}
}

func shouldAutoMigrate() bool {
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			return false
		}
	}
	return true
}

func seedDB() {
	// Ensure master roles exist
	roles := []models.Role{{Name: "administrator", Description: "full access"}, {Name: "user", Description: "regular user"}}
	for _, r := range roles {
		var cnt int64
		db.Model(&models.Role{}).Where("name = ?", r.Name).Count(&cnt)
		if cnt == 0 {
			db.Create(&r)
		}
	}

	// Check if admin user exists
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		// find administrator role id
		var role models.Role
		if err := db.Where("name = ?", "administrator").First(&role).Error; err != nil {
			log.Printf("failed to find administrator role: %v", err)
		}
		// Seed admin user
		rid := role.ID
		admin := models.User{
			Username: "admin",
			RoleID:   &rid,
		}
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		admin.HashedPassword = hashedPassword
		db.Create(&admin)
		log.Println("Seeded admin user: username=admin, password=admin123")
	}
	// Ensure upload directory exists
	ensureUploadBase()
}

// ensureUploadBase creates the base uploads directory.
func ensureUploadBase() {
	base := uploadBaseDir()
	if err := os.MkdirAll(base, 0755); err != nil {
		log.Printf("failed to create upload base dir %s: %v", base, err)
	}
}

// uploadBaseDir returns the base directory for stored pdfs (configurable via UPLOAD_BASE env)
func uploadBaseDir() string {
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		return v
	}
	return "uploads"
}
