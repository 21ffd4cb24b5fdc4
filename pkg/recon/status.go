package recon

import (
	"fmt"

	"doclink/models"

	"gorm.io/gorm"
)

// Both DocFile tracks start at Processing and only ever move to a terminal
// state. A new successful ingestion may set Processed again and a sweep may
// set Failed; neither ever writes Processing back, so a track never regresses.

func setDocStatus(db *gorm.DB, fileID uint, s models.Status) error {
	return setFileStatus(db, fileID, "doc_status", s)
}

func setLinksStatus(db *gorm.DB, fileID uint, s models.Status) error {
	return setFileStatus(db, fileID, "links_status", s)
}

func setFileStatus(db *gorm.DB, fileID uint, column string, s models.Status) error {
	var file models.DocFile
	if err := db.First(&file, fileID).Error; err != nil {
		return fmt.Errorf("load doc file %d: %w", fileID, err)
	}
	if err := db.Model(&file).Update(column, s).Error; err != nil {
		return fmt.Errorf("set %s=%s on doc file %d: %w", column, s, fileID, err)
	}
	return nil
}

// IsFullyProcessed reports whether the doc is tracked, i.e. it has an owning
// DocFile and both of its status tracks reached Processed.
func IsFullyProcessed(db *gorm.DB, doc *models.Doc) (bool, error) {
	if doc.DocFileID == nil {
		return false, nil
	}
	var file models.DocFile
	if err := db.First(&file, *doc.DocFileID).Error; err != nil {
		return false, fmt.Errorf("load doc file %d: %w", *doc.DocFileID, err)
	}
	return file.FullyProcessed(), nil
}
