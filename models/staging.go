package models

import "time"

// Staging rows live in a separate database shared with the external extraction
// pipeline. The pipeline appends rows; reconciliation consumes them. Every row
// is eventually either merged into the content store and deleted, or marked
// Failed=true and converted into a terminal Failed status by a sweep before
// deletion.

// StagedDoc is a document extraction waiting to be merged.
type StagedDoc struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	Title     string `gorm:"size:255"`
	Metadata  string `gorm:"type:text"`
	// DocFileID references the content-store DocFile the extraction came from.
	DocFileID uint `gorm:"index"`
	NumLinks  int
	Failed    bool `gorm:"default:false;index"`
}

// StagedLink is a link extraction waiting to be merged. Endpoints are carried
// by title because the pipeline never sees content-store ids.
type StagedLink struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	FromTitle string `gorm:"size:255"`
	ToTitle   string `gorm:"size:255"`
	Failed    bool   `gorm:"default:false;index"`
}

// StagedFilePath is the outbound direction: a file registered here is picked up
// by the extractor. Rows the extractor marks failed are swept into a Failed
// DocStatus on the owning DocFile.
type StagedFilePath struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	PdfPath     string `gorm:"size:512"`
	ProcessPath string `gorm:"size:512"`
	DocFileID   uint   `gorm:"index"`
	Failed      bool   `gorm:"default:false;index"`
}
