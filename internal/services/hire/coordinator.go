// Package hire - транзакция найма: ровно одна ставка на гиг становится
// hired, остальные pending-ставки гига - rejected, гиг open -> assigned.
//
// Порядок блокировок везде один: сначала строка гига, потом строки ставок.
// Подача и изменение ставок берут на гиге разделяемую блокировку, найм -
// эксклюзивную (через CAS-UPDATE), поэтому найм не может "проскочить"
// между проверкой статуса гига и записью ставки.
package hire

import (
	"context"

	"gorm.io/gorm"

	"gigflow_backend/internal/events"
	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/models"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/store"
	"gigflow_backend/pkg/apperrors"
)

// Result - итог успешного найма и набор побочных эффектов
type Result struct {
	Bid               *models.Bid
	Gig               *models.Gig
	RejectedBids      []events.RejectedBidder
	RejectedBidsCount int
	EventID           string
}

type Coordinator struct {
	store      *store.Store
	gigRepo    repositories.GigRepository
	bidRepo    repositories.BidRepository
	userRepo   repositories.UserRepository
	outboxRepo repositories.OutboxRepository
}

func NewCoordinator(
	st *store.Store,
	gigRepo repositories.GigRepository,
	bidRepo repositories.BidRepository,
	userRepo repositories.UserRepository,
	outboxRepo repositories.OutboxRepository,
) *Coordinator {
	return &Coordinator{
		store:      st,
		gigRepo:    gigRepo,
		bidRepo:    bidRepo,
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
	}
}

// Hire нанимает автора ставки bidID от имени requesterID.
//
// Ошибки: ErrBidNotFound/ErrGigNotFound, ErrNotGigOwner,
// ErrGigAlreadyAssigned (гиг не open или проиграна гонка), ErrBidNotPending,
// и DatabaseError (Retryable для дедлоков и serialization failure).
// При любой ошибке в базе ничего не меняется.
func (c *Coordinator) Hire(ctx context.Context, bidID, requesterID string) (*Result, error) {
	var result *Result

	err := c.store.WithTransaction(ctx, func(tx *gorm.DB) error {
		r, err := c.hire(tx, bidID, requesterID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindConflict {
			logger.CtxInfo(ctx, "hire refused", "bid_id", bidID, "reason", err.Error())
		}
		return nil, err
	}

	logger.CtxInfo(ctx, "bid hired",
		"bid_id", result.Bid.ID,
		"gig_id", result.Gig.ID,
		"rejected_bids", result.RejectedBidsCount,
		"event_id", result.EventID,
	)
	return result, nil
}

func (c *Coordinator) hire(tx *gorm.DB, bidID, requesterID string) (*Result, error) {
	// 1. Чтение и проверки. Ни одной записи до CAS.
	bid, err := c.bidRepo.FindByID(tx, bidID)
	if err != nil {
		return nil, err
	}

	gig, err := c.gigRepo.FindByID(tx, bid.GigID)
	if err != nil {
		return nil, err
	}

	if gig.OwnerID != requesterID {
		return nil, apperrors.ErrNotGigOwner
	}
	if !gig.IsOpen() {
		return nil, apperrors.ErrGigAlreadyAssigned
	}
	if !bid.IsPending() {
		return nil, apperrors.ErrBidNotPending
	}

	// 2. CAS на гиге. Здесь же берется эксклюзивная блокировка строки:
	// конкурирующий найм либо ждет и промахивается, либо уже промахнулся.
	swapped, err := c.gigRepo.CompareAndSwapStatus(tx, gig.ID, gig.Version, models.GigStatusOpen, models.GigStatusAssigned)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, apperrors.ErrGigAlreadyAssigned
	}
	gig.Status = models.GigStatusAssigned
	gig.Version++

	// 3. Все pending-ставки гига под блокировкой. Целевая ставка должна быть среди них.
	pending, err := c.bidRepo.FindPendingByGigForUpdate(tx, gig.ID)
	if err != nil {
		return nil, err
	}

	var siblings []models.Bid
	found := false
	for _, b := range pending {
		if b.ID == bid.ID {
			found = true
			continue
		}
		siblings = append(siblings, b)
	}
	if !found {
		return nil, apperrors.ErrBidNotPending
	}

	// 4. Записи
	ok, err := c.bidRepo.TransitionStatus(tx, bid.ID, models.BidStatusPending, models.BidStatusHired)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrBidNotPending
	}
	bid.Status = models.BidStatusHired

	siblingIDs := make([]string, len(siblings))
	for i, b := range siblings {
		siblingIDs[i] = b.ID
	}
	rejected, err := c.bidRepo.RejectPending(tx, siblingIDs)
	if err != nil {
		return nil, err
	}
	if rejected != int64(len(siblings)) {
		return nil, apperrors.ErrSiblingsChanged
	}

	// 5. Снимок для уведомлений - в той же транзакции
	payload, err := c.buildPayload(tx, bid, gig, siblings)
	if err != nil {
		return nil, err
	}

	event, err := c.outboxRepo.Enqueue(tx, events.TopicBidHired, gig.ID, payload)
	if err != nil {
		return nil, err
	}

	return &Result{
		Bid:               bid,
		Gig:               gig,
		RejectedBids:      payload.RejectedBidders,
		RejectedBidsCount: len(siblings),
		EventID:           event.ID,
	}, nil
}

func (c *Coordinator) buildPayload(tx *gorm.DB, bid *models.Bid, gig *models.Gig, siblings []models.Bid) (*events.HirePayload, error) {
	ids := []string{bid.FreelancerID, gig.OwnerID}
	for _, b := range siblings {
		ids = append(ids, b.FreelancerID)
	}

	users, err := c.userRepo.FindByIDs(tx, ids)
	if err != nil {
		return nil, err
	}

	rejected := make([]events.RejectedBidder, 0, len(siblings))
	for _, b := range siblings {
		rejected = append(rejected, events.RejectedBidder{
			BidID:      b.ID,
			Price:      b.Price,
			Freelancer: events.SnapshotUser(b.FreelancerID, users[b.FreelancerID]),
		})
	}

	return &events.HirePayload{
		Bid:               events.SnapshotBid(bid),
		Freelancer:        events.SnapshotUser(bid.FreelancerID, users[bid.FreelancerID]),
		Gig:               events.SnapshotGig(gig),
		Client:            events.SnapshotUser(gig.OwnerID, users[gig.OwnerID]),
		RejectedBidsCount: len(siblings),
		RejectedBidders:   rejected,
	}, nil
}
