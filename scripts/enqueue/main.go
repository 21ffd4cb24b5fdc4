// Dev tool standing in for the extraction pipeline: inserts staged rows by
// hand so the reconcile loop can be exercised without the real extractor.
//
//	go run ./scripts/enqueue -kind doc -title "Report A" -num-links 2 -file-id 1
//	go run ./scripts/enqueue -kind link -from "Report A" -to "Report B"
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"doclink/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	kind := flag.String("kind", "doc", "row kind: doc or link")
	title := flag.String("title", "", "doc title")
	metadata := flag.String("metadata", "", "doc metadata")
	numLinks := flag.Int("num-links", models.PlaceholderNumLinks, "expected outgoing link count")
	fileID := flag.Uint("file-id", 0, "content-store DocFile id the extraction came from")
	from := flag.String("from", "", "link source title")
	to := flag.String("to", "", "link target title")
	flag.Parse()

	dsn := os.Getenv("STAGING_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		log.Fatal("STAGING_DB_DSN (or DB_DSN) not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	switch *kind {
	case "doc":
		if *title == "" {
			log.Fatal("-title required for kind=doc")
		}
		row := models.StagedDoc{Title: *title, Metadata: *metadata, NumLinks: *numLinks, DocFileID: *fileID}
		if err := db.Create(&row).Error; err != nil {
			log.Fatalf("failed to stage doc: %v", err)
		}
		fmt.Printf("staged doc id=%d title=%q\n", row.ID, row.Title)
	case "link":
		if *from == "" || *to == "" {
			log.Fatal("-from and -to required for kind=link")
		}
		row := models.StagedLink{FromTitle: *from, ToTitle: *to}
		if err := db.Create(&row).Error; err != nil {
			log.Fatalf("failed to stage link: %v", err)
		}
		fmt.Printf("staged link id=%d %q -> %q\n", row.ID, row.FromTitle, row.ToTitle)
	default:
		log.Fatalf("unknown kind %q", *kind)
	}
}
