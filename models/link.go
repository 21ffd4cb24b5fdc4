package models

import "time"

// Link is a directed edge between two Docs. Links are created once per staged
// row and never updated in place; a duplicate arrival is a new row.
type Link struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Label     string `gorm:"size:255;not null"`
	FromDocID uint   `gorm:"index;not null"`
	FromDoc   Doc    `gorm:"foreignKey:FromDocID;references:ID"`
	ToDocID   uint   `gorm:"not null"`
	ToDoc     Doc    `gorm:"foreignKey:ToDocID;references:ID"`
	Active    bool   `gorm:"default:true;not null"`
}
