// Package events - топики и снимки данных, которые кладутся в outbox.
// Снимок собирается внутри транзакции и дальше не меняется, поэтому
// доставка уведомлений никогда не перечитывает ставки и гиги.
package events

import (
	"time"

	"gigflow_backend/internal/models"
)

const (
	TopicBidCreated = "BID_NOTIFICATION.CREATED"
	TopicBidHired   = "BID_NOTIFICATION.HIRED"
	TopicBidUpdated = "BID_NOTIFICATION.UPDATED"
	TopicBidDeleted = "BID_NOTIFICATION.DELETED"
)

// Realtime события (имена для клиента websocket)
const (
	RealtimeNewBid      = "new_bid"
	RealtimeBidHired    = "bid_hired"
	RealtimeBidRejected = "bid_rejected"
	RealtimeBidUpdated  = "bid_updated"
	RealtimeBidDeleted  = "bid_deleted"
)

type UserSnapshot struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

// DisplayName - full_name, потом username, потом "there"
func (u UserSnapshot) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return "there"
}

type GigSnapshot struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Budget float64 `json:"budget"`
}

type BidSnapshot struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Price     float64          `json:"price"`
	Status    models.BidStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// BidPayload - CREATED, UPDATED, DELETED
type BidPayload struct {
	Bid        BidSnapshot  `json:"bid"`
	Freelancer UserSnapshot `json:"freelancer"`
	Gig        GigSnapshot  `json:"gig"`
	GigOwner   UserSnapshot `json:"gig_owner"`
}

type RejectedBidder struct {
	BidID      string       `json:"bid_id"`
	Price      float64      `json:"price"`
	Freelancer UserSnapshot `json:"freelancer"`
}

// HirePayload - HIRED
type HirePayload struct {
	Bid               BidSnapshot      `json:"bid"`
	Freelancer        UserSnapshot     `json:"freelancer"`
	Gig               GigSnapshot      `json:"gig"`
	Client            UserSnapshot     `json:"client"`
	RejectedBidsCount int              `json:"rejected_bids_count"`
	RejectedBidders   []RejectedBidder `json:"rejected_bidders"`
}

// ============================================
// Конструкторы снимков
// ============================================

// SnapshotUser допускает nil: пользователь мог быть удален сервисом аутентификации
func SnapshotUser(id string, u *models.User) UserSnapshot {
	if u == nil {
		return UserSnapshot{ID: id}
	}
	return UserSnapshot{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		FullName: u.FullName,
	}
}

func SnapshotGig(g *models.Gig) GigSnapshot {
	return GigSnapshot{ID: g.ID, Title: g.Title, Budget: g.Budget}
}

func SnapshotBid(b *models.Bid) BidSnapshot {
	return BidSnapshot{
		ID:        b.ID,
		Message:   b.Message,
		Price:     b.Price,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
	}
}
