package models

import (
	"gorm.io/datatypes"
)

type Gig struct {
	BaseModel
	OwnerID     string         `gorm:"size:36;not null;index" json:"owner_id"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Budget      float64        `gorm:"not null" json:"budget"`
	Images      datatypes.JSON `json:"images,omitempty"` // [{"url": "...", "thumbnail": "..."}]
	Status      GigStatus      `gorm:"size:20;not null;default:open;index" json:"status"`

	// Version растет при каждой смене статуса, по нему делается CAS при найме
	Version int `gorm:"not null;default:1" json:"version"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (g *Gig) IsOpen() bool {
	return g.Status == GigStatusOpen
}

// GigImage - элемент Gig.Images
type GigImage struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}
