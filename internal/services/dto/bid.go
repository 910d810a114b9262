package dto

import (
	"time"

	"gigflow_backend/internal/models"
)

// --- Requests ---

// SubmitBidRequest - цену и текст проверяет BidService, чтобы вернуть
// доменные ошибки ErrInvalidPrice / ErrEmptyBidMessage
type SubmitBidRequest struct {
	GigID   string   `json:"gig_id" validate:"required"`
	Message string   `json:"message" validate:"max=1000"`
	Price   *float64 `json:"price"`
}

// UpdateBidRequest - меняются только переданные поля
type UpdateBidRequest struct {
	Message *string  `json:"message,omitempty" validate:"omitempty,max=1000"`
	Price   *float64 `json:"price,omitempty"`
}

// --- Responses ---

type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

type GigSummary struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Budget float64          `json:"budget"`
	Status models.GigStatus `json:"status"`
}

type BidResponse struct {
	ID           string           `json:"id"`
	GigID        string           `json:"gig_id"`
	FreelancerID string           `json:"freelancer_id"`
	Message      string           `json:"message"`
	Price        float64          `json:"price"`
	Status       models.BidStatus `json:"status"`
	Freelancer   *UserSummary     `json:"freelancer,omitempty"`
	Gig          *GigSummary      `json:"gig,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type BidListMeta struct {
	Total     int              `json:"total"`
	GigTitle  string           `json:"gig_title,omitempty"`
	GigStatus models.GigStatus `json:"gig_status,omitempty"`
}

type BidListResponse struct {
	Bids []*BidResponse `json:"bids"`
	Meta BidListMeta    `json:"meta"`
}

type RejectedBidResponse struct {
	BidID        string  `json:"bid_id"`
	Price        float64 `json:"price"`
	FreelancerID string  `json:"freelancer_id"`
}

type HireResponse struct {
	Message           string                 `json:"message"`
	Bid               *BidResponse           `json:"bid"`
	Gig               *GigSummary            `json:"gig"`
	RejectedBidsCount int                    `json:"rejected_bids_count"`
	RejectedBids      []*RejectedBidResponse `json:"rejected_bids"`
}

// --- Builders ---

func NewBidResponse(bid *models.Bid) *BidResponse {
	resp := &BidResponse{
		ID:           bid.ID,
		GigID:        bid.GigID,
		FreelancerID: bid.FreelancerID,
		Message:      bid.Message,
		Price:        bid.Price,
		Status:       bid.Status,
		CreatedAt:    bid.CreatedAt,
		UpdatedAt:    bid.UpdatedAt,
	}
	if bid.Freelancer != nil {
		resp.Freelancer = NewUserSummary(bid.Freelancer)
	}
	if bid.Gig != nil {
		resp.Gig = NewGigSummary(bid.Gig)
	}
	return resp
}

func NewUserSummary(u *models.User) *UserSummary {
	return &UserSummary{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Email:    u.Email,
	}
}

func NewGigSummary(g *models.Gig) *GigSummary {
	return &GigSummary{
		ID:     g.ID,
		Title:  g.Title,
		Budget: g.Budget,
		Status: g.Status,
	}
}
