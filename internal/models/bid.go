package models

type Bid struct {
	BaseModel
	GigID        string    `gorm:"size:36;not null;uniqueIndex:idx_bids_gig_freelancer;index:idx_bids_gig_status,priority:1" json:"gig_id"`
	FreelancerID string    `gorm:"size:36;not null;uniqueIndex:idx_bids_gig_freelancer;index" json:"freelancer_id"`
	Message      string    `gorm:"type:text;not null" json:"message"`
	Price        float64   `gorm:"not null" json:"price"`
	Status       BidStatus `gorm:"size:20;not null;default:pending;index:idx_bids_gig_status,priority:2" json:"status"`

	Gig        *Gig  `gorm:"foreignKey:GigID" json:"gig,omitempty"`
	Freelancer *User `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
}

func (b *Bid) IsPending() bool {
	return b.Status == BidStatusPending
}
