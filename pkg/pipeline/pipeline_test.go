package pipeline

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"doclink/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T, role string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pipe_%s_%d?mode=memory&cache=shared", role, time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open %s db: %v", role, err)
	}
	return gdb
}

func newTestDBs(t *testing.T) (*gorm.DB, *gorm.DB) {
	t.Helper()
	content := openTestDB(t, "content")
	if err := content.AutoMigrate(&models.DocFile{}); err != nil {
		t.Fatalf("migrate content: %v", err)
	}
	staging := openTestDB(t, "staging")
	if err := staging.AutoMigrate(&models.StagedFilePath{}); err != nil {
		t.Fatalf("migrate staging: %v", err)
	}
	return content, staging
}

func TestRegisterDocFile(t *testing.T) {
	content, staging := newTestDBs(t)

	file, err := RegisterDocFile(content, staging, "report.pdf", "/store/report.pdf", "/store/report.xml")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if file.DocStatus != models.StatusProcessing || file.LinksStatus != models.StatusProcessing {
		t.Fatalf("new file must start Processing/Processing, got %s/%s", file.DocStatus, file.LinksStatus)
	}
	if !file.SentToPipeline {
		t.Fatal("file path was not handed to the pipeline")
	}
	var staged models.StagedFilePath
	if err := staging.First(&staged).Error; err != nil {
		t.Fatalf("staged file path missing: %v", err)
	}
	if staged.PdfPath != "/store/report.pdf" || staged.ProcessPath != "/store/report.xml" || staged.DocFileID != file.ID {
		t.Fatalf("staged row wrong: %+v", staged)
	}
}

func TestStageFilePathIsOneShot(t *testing.T) {
	content, staging := newTestDBs(t)

	file, err := RegisterDocFile(content, staging, "report.pdf", "/store/report.pdf", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// a second staging attempt must be a no-op
	if err := StageFilePath(content, staging, file); err != nil {
		t.Fatalf("restage: %v", err)
	}
	var n int64
	staging.Model(&models.StagedFilePath{}).Count(&n)
	if n != 1 {
		t.Fatalf("file path staged %d times, want once", n)
	}
}

func TestStoreName(t *testing.T) {
	a := StoreName("../sneaky/report.pdf")
	if strings.Contains(a, "/") {
		t.Fatalf("store name leaks path separators: %q", a)
	}
	if !strings.HasSuffix(a, "_report.pdf") {
		t.Fatalf("store name should keep the base name: %q", a)
	}
	if a == StoreName("report.pdf") {
		t.Fatal("store names should not collide")
	}
}
