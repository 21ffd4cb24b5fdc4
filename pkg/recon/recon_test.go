package recon

import (
	"fmt"
	"testing"
	"time"

	"doclink/models"

	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// each test gets its own pair of in-memory databases; shared cache keeps the
// db alive across the pooled connections
func openTestDB(t *testing.T, role string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", role, time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open %s db: %v", role, err)
	}
	return gdb
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB, *gorm.DB) {
	t.Helper()
	content := openTestDB(t, "content")
	if err := content.AutoMigrate(&models.DocFile{}, &models.Doc{}, &models.Link{}); err != nil {
		t.Fatalf("migrate content: %v", err)
	}
	staging := openTestDB(t, "staging")
	if err := staging.AutoMigrate(&models.StagedDoc{}, &models.StagedLink{}, &models.StagedFilePath{}); err != nil {
		t.Fatalf("migrate staging: %v", err)
	}
	return NewEngine(content, staging, zaptest.NewLogger(t).Sugar()), content, staging
}

func createDocFile(t *testing.T, content *gorm.DB, label string) *models.DocFile {
	t.Helper()
	f := models.DocFile{
		Label:       label,
		PdfPath:     "/store/" + label,
		DocStatus:   models.StatusProcessing,
		LinksStatus: models.StatusProcessing,
		Active:      true,
	}
	if err := content.Create(&f).Error; err != nil {
		t.Fatalf("create doc file: %v", err)
	}
	return &f
}

func reloadDocFile(t *testing.T, content *gorm.DB, id uint) *models.DocFile {
	t.Helper()
	var f models.DocFile
	if err := content.First(&f, id).Error; err != nil {
		t.Fatalf("reload doc file %d: %v", id, err)
	}
	return &f
}

func countRows(t *testing.T, gdb *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
