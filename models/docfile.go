package models

import "time"

// DocFile owns an uploaded PDF and the two processing status tracks. It is
// created at upload time and never deleted by the reconciliation core.
type DocFile struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Label     string `gorm:"size:255;not null"` // original file name
	PdfPath   string `gorm:"size:512;not null"`
	// ProcessPath is an optional secondary file (e.g. pre-extracted XML) handed
	// to the extractor alongside the PDF.
	ProcessPath string `gorm:"size:512"`
	DocStatus   Status `gorm:"size:16;not null;default:'Processing'"`
	LinksStatus Status `gorm:"size:16;not null;default:'Processing'"`
	// SentToPipeline guards the one-shot staging of the file path for the
	// external extractor.
	SentToPipeline bool `gorm:"default:false;not null"`
	Active         bool `gorm:"default:true;not null"`
}

// FullyProcessed reports whether both tracks reached Processed.
func (f *DocFile) FullyProcessed() bool {
	return f.DocStatus == StatusProcessed && f.LinksStatus == StatusProcessed
}
