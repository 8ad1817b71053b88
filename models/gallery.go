package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

func (m MediaType) Valid() bool {
	return m == MediaImage || m == MediaVideo
}

// MediaMetadata is what the storage provider reports about an upload.
type MediaMetadata struct {
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Format   string  `json:"format,omitempty"`
	Size     int64   `json:"size,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Gallery is a single hosted image or video
type Gallery struct {
	Base
	Title        string    `gorm:"not null;index" json:"title"`
	Description  string    `json:"description"`
	MediaType    MediaType `gorm:"type:varchar(8);not null;index" json:"mediaType"`
	MediaURL     string    `gorm:"not null" json:"mediaUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PublicID     string    `gorm:"not null" json:"publicId"`

	Category string                      `gorm:"default:'general';index" json:"category"`
	Tags     datatypes.JSONSlice[string] `json:"tags"`

	UploadedByID *uint `gorm:"index" json:"uploadedById,omitempty"`
	UploadedBy   *User `gorm:"foreignKey:UploadedByID" json:"-"`

	IsActive  bool                              `gorm:"default:true;index" json:"isActive"`
	ViewCount int                               `gorm:"default:0" json:"viewCount"`
	Metadata  datatypes.JSONType[MediaMetadata] `json:"metadata"`
}

func (Gallery) TableName() string {
	return "gallery_items"
}

// IncrementViewCount bumps the counter in the database without a read-modify-write.
func (g *Gallery) IncrementViewCount(db *gorm.DB) error {
	if err := db.Model(g).UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error; err != nil {
		return err
	}
	g.ViewCount++
	return nil
}

func (g Gallery) MarshalJSON() ([]byte, error) {
	type gallery Gallery
	if g.Tags == nil {
		g.Tags = datatypes.JSONSlice[string]{}
	}
	return json.Marshal(struct {
		gallery
		UploadedBy *UserSummary `json:"uploadedBy,omitempty"`
	}{gallery(g), g.UploadedBy.Summary()})
}
