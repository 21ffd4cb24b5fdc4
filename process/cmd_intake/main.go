// Intake watcher: registers PDFs dropped into a local directory, the on-disk
// analog of the upload endpoint. Each stable pdf is validated, moved into the
// store directory and handed to the extraction pipeline.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"doclink/pkg/pipeline"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	content *gorm.DB
	staging *gorm.DB
	logger  *zap.SugaredLogger
)

func main() {
	dirFlag := flag.String("dir", "intake", "directory to scan for dropped pdfs")
	storeFlag := flag.String("store", "", "directory to move accepted pdfs into (default $UPLOAD_BASE/pdfs)")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	flag.Parse()

	l, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	logger = l.Sugar()
	defer logger.Sync()

	content = mustOpenDB(os.Getenv("DB_DSN"), "DB_DSN")
	stagingDSN := os.Getenv("STAGING_DB_DSN")
	if stagingDSN == "" {
		stagingDSN = os.Getenv("DB_DSN")
	}
	staging = mustOpenDB(stagingDSN, "STAGING_DB_DSN")

	storeDir := *storeFlag
	if storeDir == "" {
		base := os.Getenv("UPLOAD_BASE")
		if base == "" {
			base = "uploads"
		}
		storeDir = filepath.Join(base, "pdfs")
	}
	if err := os.MkdirAll(storeDir, 0755); err != nil {
		log.Fatalf("failed to create store dir %s: %v", storeDir, err)
	}

	files := listPdfFiles(*dirFlag)
	logger.Infow("scanning intake directory", "dir", *dirFlag, "files", len(files))
	for _, f := range files {
		intakeFile(*dirFlag, storeDir, f)
	}

	if *watch {
		if err := watchDirectory(*dirFlag, storeDir); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func mustOpenDB(dsn, name string) *gorm.DB {
	if dsn == "" {
		log.Fatalf("%s must be set in environment to run this tool", name)
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

func listPdfFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isPdf(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isPdf(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// intakeFile validates one dropped pdf, moves it into the store and registers
// it with the pipeline. Invalid files are left in place for inspection.
func intakeFile(dir, storeDir, name string) {
	src := filepath.Join(dir, name)
	if err := pipeline.ValidatePDF(src); err != nil {
		logger.Warnw("skipping invalid pdf", "file", name, "error", err)
		return
	}
	dst := filepath.Join(storeDir, pipeline.StoreName(name))
	if err := moveFile(src, dst); err != nil {
		logger.Errorw("failed to move pdf into store", "file", name, "error", err)
		return
	}
	docFile, err := pipeline.RegisterDocFile(content, staging, name, dst, "")
	if err != nil {
		logger.Errorw("failed to register pdf", "file", name, "error", err)
		return
	}
	logger.Infow("pdf registered", "file", name, "file_id", docFile.ID)
}

// moveFile attempts an atomic rename and falls back to copy+remove when the
// intake and store directories are on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	_ = out.Close()
	return os.Remove(src)
}

func watchDirectory(dir, storeDir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Infow("watching intake directory", "dir", dir)

	// simple debounce map of pending files
	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				name := filepath.Base(ev.Name)
				if !isPdf(name) {
					continue
				}
				pending[name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) > 300*time.Millisecond { // stable
					intakeFile(dir, storeDir, name)
					delete(pending, name)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("watch error", "error", err)
		}
	}
}
