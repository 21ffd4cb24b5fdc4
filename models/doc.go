package models

import "time"

// PlaceholderNumLinks marks a Doc whose expected link count is unknown, i.e. it
// was created because a link referenced its title before its own extraction
// arrived. The link-count completion check is suppressed for such docs.
const PlaceholderNumLinks = -1

// Doc is one tracked unit of content. Titles are the reconciliation key: the
// extractor only knows documents by title, so lookups are exact-match on Title
// and the unique index keeps concurrent resolvers from creating two rows.
type Doc struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Title     string `gorm:"size:255;not null;uniqueIndex"`
	Metadata  string `gorm:"type:text"`
	// DocFileID points at the uploaded file this doc was extracted from. Nil for
	// placeholders until their own extraction arrives.
	DocFileID *uint    `gorm:"index"`
	DocFile   *DocFile `gorm:"foreignKey:DocFileID;references:ID"`
	NumLinks  int      `gorm:"not null;default:-1"`
	Active    bool     `gorm:"default:true;not null"`
}

// IsPlaceholder reports whether the doc was created from a link reference only.
func (d *Doc) IsPlaceholder() bool {
	return d.NumLinks == PlaceholderNumLinks
}
