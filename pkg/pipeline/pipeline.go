// Package pipeline handles the outbound half of the extraction loop: storing
// an uploaded PDF, registering its DocFile and staging the file path for the
// external extractor to pick up.
package pipeline

import (
	"fmt"
	"path/filepath"

	"doclink/models"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"gorm.io/gorm"
)

// ValidatePDF checks that the file at path is structurally a PDF. Relaxed
// validation, the extractor copes with mildly broken files.
func ValidatePDF(path string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, cfg); err != nil {
		return fmt.Errorf("not a valid pdf: %w", err)
	}
	return nil
}

// StoreName returns a collision-free stored file name for an upload.
func StoreName(original string) string {
	return uuid.NewString() + "_" + filepath.Base(original)
}

// RegisterDocFile creates the DocFile for a stored pdf (both status tracks
// start at Processing) and stages its path for the extractor.
func RegisterDocFile(content, staging *gorm.DB, label, pdfPath, processPath string) (*models.DocFile, error) {
	file := models.DocFile{
		Label:       label,
		PdfPath:     pdfPath,
		ProcessPath: processPath,
		DocStatus:   models.StatusProcessing,
		LinksStatus: models.StatusProcessing,
		Active:      true,
	}
	if err := content.Create(&file).Error; err != nil {
		return nil, fmt.Errorf("create doc file: %w", err)
	}
	if err := StageFilePath(content, staging, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// StageFilePath hands the file's paths to the extraction pipeline. The
// SentToPipeline flag makes this a one-shot: calling it again is a no-op.
func StageFilePath(content, staging *gorm.DB, file *models.DocFile) error {
	if file.SentToPipeline {
		return nil
	}
	row := models.StagedFilePath{
		PdfPath:     file.PdfPath,
		ProcessPath: file.ProcessPath,
		DocFileID:   file.ID,
	}
	if err := staging.Create(&row).Error; err != nil {
		return fmt.Errorf("stage file path: %w", err)
	}
	file.SentToPipeline = true
	if err := content.Model(file).Update("sent_to_pipeline", true).Error; err != nil {
		return fmt.Errorf("mark doc file sent: %w", err)
	}
	return nil
}
