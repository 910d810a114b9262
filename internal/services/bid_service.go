package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"

	"gigflow_backend/internal/events"
	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/models"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/services/dto"
	"gigflow_backend/internal/services/hire"
	"gigflow_backend/internal/store"
	"gigflow_backend/pkg/apperrors"
)

// HireSuccessMessage - текст ответа на успешный найм
const HireSuccessMessage = "Freelancer hired successfully"

type BidService interface {
	SubmitBid(ctx context.Context, freelancerID string, req *dto.SubmitBidRequest) (*dto.BidResponse, error)
	UpdateBid(ctx context.Context, bidID, requesterID string, req *dto.UpdateBidRequest) (*dto.BidResponse, error)
	DeleteBid(ctx context.Context, bidID, requesterID string) error
	HireBid(ctx context.Context, bidID, requesterID string) (*dto.HireResponse, error)
	GetBidsForGig(ctx context.Context, gigID, requesterID string) (*dto.BidListResponse, error)
	GetMyBids(ctx context.Context, freelancerID string) ([]*dto.BidResponse, error)
}

// Hirer - транзакция найма (hire.Coordinator)
type Hirer interface {
	Hire(ctx context.Context, bidID, requesterID string) (*hire.Result, error)
}

// EventNotifier будит диспетчер outbox сразу после коммита
type EventNotifier interface {
	Kick()
}

// HireRetryPolicy - повтор найма при временных ошибках БД
type HireRetryPolicy struct {
	MaxTries        int
	InitialInterval time.Duration
	Timeout         time.Duration
}

func DefaultHireRetryPolicy() HireRetryPolicy {
	return HireRetryPolicy{
		MaxTries:        3,
		InitialInterval: 50 * time.Millisecond,
		Timeout:         10 * time.Second,
	}
}

type bidService struct {
	store      *store.Store
	gigRepo    repositories.GigRepository
	bidRepo    repositories.BidRepository
	userRepo   repositories.UserRepository
	outboxRepo repositories.OutboxRepository
	hirer      Hirer
	notifier   EventNotifier
	retry      HireRetryPolicy
}

func NewBidService(
	st *store.Store,
	gigRepo repositories.GigRepository,
	bidRepo repositories.BidRepository,
	userRepo repositories.UserRepository,
	outboxRepo repositories.OutboxRepository,
	hirer Hirer,
	notifier EventNotifier,
	retry HireRetryPolicy,
) BidService {
	if retry.MaxTries < 1 {
		retry.MaxTries = 1
	}
	return &bidService{
		store:      st,
		gigRepo:    gigRepo,
		bidRepo:    bidRepo,
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
		hirer:      hirer,
		notifier:   notifier,
		retry:      retry,
	}
}

// ---------------- Submit ----------------

func (s *bidService) SubmitBid(ctx context.Context, freelancerID string, req *dto.SubmitBidRequest) (*dto.BidResponse, error) {
	if req.Price == nil || *req.Price < 0 {
		return nil, apperrors.ErrInvalidPrice
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, apperrors.ErrEmptyBidMessage
	}

	var bid *models.Bid
	err := s.store.WithTransaction(ctx, func(tx *gorm.DB) error {
		// Разделяемая блокировка: найм не закоммитится между проверкой и вставкой
		gig, err := s.gigRepo.FindByIDForShare(tx, req.GigID)
		if err != nil {
			return err
		}
		if gig.OwnerID == freelancerID {
			return apperrors.ErrOwnGigBid
		}
		if !gig.IsOpen() {
			return apperrors.ErrGigNotOpen
		}

		exists, err := s.bidRepo.ExistsForFreelancer(tx, gig.ID, freelancerID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.ErrDuplicateBid
		}

		bid = &models.Bid{
			GigID:        gig.ID,
			FreelancerID: freelancerID,
			Message:      message,
			Price:        *req.Price,
			Status:       models.BidStatusPending,
		}
		if err := s.bidRepo.Create(tx, bid); err != nil {
			// гонка двух подач одного фрилансера ловится уникальным индексом
			if store.IsDuplicate(err) {
				return apperrors.ErrDuplicateBid
			}
			return err
		}

		payload, err := s.bidPayload(tx, bid, gig)
		if err != nil {
			return err
		}
		_, err = s.outboxRepo.Enqueue(tx, events.TopicBidCreated, bid.ID, payload)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.kick()
	logger.CtxInfo(ctx, "bid submitted", "bid_id", bid.ID, "gig_id", bid.GigID)
	return dto.NewBidResponse(bid), nil
}

// ---------------- Update / Delete ----------------

func (s *bidService) UpdateBid(ctx context.Context, bidID, requesterID string, req *dto.UpdateBidRequest) (*dto.BidResponse, error) {
	fields := make(map[string]any)
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, apperrors.ErrInvalidPrice
		}
		fields["price"] = *req.Price
	}
	if req.Message != nil {
		message := strings.TrimSpace(*req.Message)
		if message == "" {
			return nil, apperrors.ErrEmptyBidMessage
		}
		fields["message"] = message
	}
	if len(fields) == 0 {
		return nil, apperrors.ErrEmptyBidUpdate
	}

	var updated *models.Bid
	err := s.withMutableBid(ctx, bidID, requesterID, func(tx *gorm.DB, bid *models.Bid, gig *models.Gig) error {
		if err := s.bidRepo.UpdateFields(tx, bid.ID, fields); err != nil {
			return err
		}
		if v, ok := fields["price"]; ok {
			bid.Price = v.(float64)
		}
		if v, ok := fields["message"]; ok {
			bid.Message = v.(string)
		}
		updated = bid

		payload, err := s.bidPayload(tx, bid, gig)
		if err != nil {
			return err
		}
		_, err = s.outboxRepo.Enqueue(tx, events.TopicBidUpdated, bid.ID, payload)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.kick()
	logger.CtxInfo(ctx, "bid updated", "bid_id", bidID)
	return dto.NewBidResponse(updated), nil
}

func (s *bidService) DeleteBid(ctx context.Context, bidID, requesterID string) error {
	err := s.withMutableBid(ctx, bidID, requesterID, func(tx *gorm.DB, bid *models.Bid, gig *models.Gig) error {
		// снимок до удаления: после коммита строки уже нет
		payload, err := s.bidPayload(tx, bid, gig)
		if err != nil {
			return err
		}
		if err := s.bidRepo.Delete(tx, bid.ID); err != nil {
			return err
		}
		_, err = s.outboxRepo.Enqueue(tx, events.TopicBidDeleted, bid.ID, payload)
		return err
	})
	if err != nil {
		return err
	}

	s.kick()
	logger.CtxInfo(ctx, "bid withdrawn", "bid_id", bidID)
	return nil
}

// withMutableBid выполняет fn в транзакции, где гиг открыт и заблокирован на чтение,
// а ставка pending, принадлежит requesterID и заблокирована на запись.
func (s *bidService) withMutableBid(ctx context.Context, bidID, requesterID string, fn func(tx *gorm.DB, bid *models.Bid, gig *models.Gig) error) error {
	return s.store.WithTransaction(ctx, func(tx *gorm.DB) error {
		bid, err := s.bidRepo.FindByID(tx, bidID)
		if err != nil {
			return err
		}
		if bid.FreelancerID != requesterID {
			return apperrors.ErrNotBidOwner
		}
		if !bid.IsPending() {
			return apperrors.ErrBidNotPending
		}

		// Порядок блокировок как у найма: гиг, потом ставка
		gig, err := s.gigRepo.FindByIDForShare(tx, bid.GigID)
		if err != nil {
			return err
		}
		if !gig.IsOpen() {
			return apperrors.ErrGigNotOpen
		}

		locked, err := s.bidRepo.FindByIDForUpdate(tx, bidID)
		if err != nil {
			return err
		}
		if !locked.IsPending() {
			return apperrors.ErrBidNotPending
		}

		return fn(tx, locked, gig)
	})
}

// ---------------- Hire ----------------

func (s *bidService) HireBid(ctx context.Context, bidID, requesterID string) (*dto.HireResponse, error) {
	if s.retry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.retry.Timeout)
		defer cancel()
	}

	b := backoff.NewExponentialBackOff()
	if s.retry.InitialInterval > 0 {
		b.InitialInterval = s.retry.InitialInterval
	}

	attempt := 0
	operation := func() (*hire.Result, error) {
		attempt++
		result, err := s.hirer.Hire(ctx, bidID, requesterID)
		if err == nil {
			return result, nil
		}
		if !apperrors.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		logger.CtxWarn(ctx, "hire attempt failed, retrying", "bid_id", bidID, "attempt", attempt, "error", err)
		return nil, err
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.retry.MaxTries)),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			if _, ok := apperrors.AsAppError(err); !ok {
				err = apperrors.DatabaseError(err, false)
			}
		}
		return nil, err
	}

	s.kick()

	rejected := make([]*dto.RejectedBidResponse, 0, len(result.RejectedBids))
	for _, r := range result.RejectedBids {
		rejected = append(rejected, &dto.RejectedBidResponse{
			BidID:        r.BidID,
			Price:        r.Price,
			FreelancerID: r.Freelancer.ID,
		})
	}

	return &dto.HireResponse{
		Message:           HireSuccessMessage,
		Bid:               dto.NewBidResponse(result.Bid),
		Gig:               dto.NewGigSummary(result.Gig),
		RejectedBidsCount: result.RejectedBidsCount,
		RejectedBids:      rejected,
	}, nil
}

// ---------------- Queries ----------------

func (s *bidService) GetBidsForGig(ctx context.Context, gigID, requesterID string) (*dto.BidListResponse, error) {
	db := s.store.DB(ctx)

	gig, err := s.gigRepo.FindByID(db, gigID)
	if err != nil {
		return nil, store.Classify(err)
	}
	if gig.OwnerID != requesterID {
		return nil, apperrors.ErrNotGigOwner
	}

	bids, err := s.bidRepo.ListByGig(db, gig.ID)
	if err != nil {
		return nil, store.Classify(err)
	}

	resp := &dto.BidListResponse{
		Bids: make([]*dto.BidResponse, 0, len(bids)),
		Meta: dto.BidListMeta{
			Total:     len(bids),
			GigTitle:  gig.Title,
			GigStatus: gig.Status,
		},
	}
	for i := range bids {
		resp.Bids = append(resp.Bids, dto.NewBidResponse(&bids[i]))
	}
	return resp, nil
}

func (s *bidService) GetMyBids(ctx context.Context, freelancerID string) ([]*dto.BidResponse, error) {
	bids, err := s.bidRepo.ListByFreelancer(s.store.DB(ctx), freelancerID)
	if err != nil {
		return nil, store.Classify(err)
	}

	resp := make([]*dto.BidResponse, 0, len(bids))
	for i := range bids {
		resp = append(resp, dto.NewBidResponse(&bids[i]))
	}
	return resp, nil
}

// ---------------- helpers ----------------

func (s *bidService) bidPayload(tx *gorm.DB, bid *models.Bid, gig *models.Gig) (*events.BidPayload, error) {
	users, err := s.userRepo.FindByIDs(tx, []string{bid.FreelancerID, gig.OwnerID})
	if err != nil {
		return nil, err
	}
	return &events.BidPayload{
		Bid:        events.SnapshotBid(bid),
		Freelancer: events.SnapshotUser(bid.FreelancerID, users[bid.FreelancerID]),
		Gig:        events.SnapshotGig(gig),
		GigOwner:   events.SnapshotUser(gig.OwnerID, users[gig.OwnerID]),
	}, nil
}

func (s *bidService) kick() {
	if s.notifier != nil {
		s.notifier.Kick()
	}
}
