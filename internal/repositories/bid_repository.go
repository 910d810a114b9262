package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigflow_backend/internal/models"
	"gigflow_backend/pkg/apperrors"
)

type BidRepository interface {
	Create(db *gorm.DB, bid *models.Bid) error
	FindByID(db *gorm.DB, id string) (*models.Bid, error)
	FindByIDForUpdate(db *gorm.DB, id string) (*models.Bid, error)
	ExistsForFreelancer(db *gorm.DB, gigID, freelancerID string) (bool, error)

	// FindPendingByGigForUpdate - все pending-ставки гига с блокировкой строк
	// до конца транзакции
	FindPendingByGigForUpdate(db *gorm.DB, gigID string) ([]models.Bid, error)
	TransitionStatus(db *gorm.DB, id string, from, to models.BidStatus) (bool, error)
	RejectPending(db *gorm.DB, ids []string) (int64, error)

	UpdateFields(db *gorm.DB, id string, fields map[string]any) error
	Delete(db *gorm.DB, id string) error

	ListByGig(db *gorm.DB, gigID string) ([]models.Bid, error)
	ListByFreelancer(db *gorm.DB, freelancerID string) ([]models.Bid, error)
	CountByGigAndStatus(db *gorm.DB, gigID string, status models.BidStatus) (int64, error)
}

type BidRepositoryImpl struct{}

func NewBidRepository() BidRepository {
	return &BidRepositoryImpl{}
}

func (r *BidRepositoryImpl) Create(db *gorm.DB, bid *models.Bid) error {
	if bid.Status == "" {
		bid.Status = models.BidStatusPending
	}
	return db.Create(bid).Error
}

func (r *BidRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Bid, error) {
	return r.find(db, id)
}

func (r *BidRepositoryImpl) FindByIDForUpdate(db *gorm.DB, id string) (*models.Bid, error) {
	return r.find(db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), id)
}

func (r *BidRepositoryImpl) find(db *gorm.DB, id string) (*models.Bid, error) {
	var bid models.Bid
	if err := db.Where("id = ?", id).Take(&bid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBidNotFound
		}
		return nil, err
	}
	return &bid, nil
}

func (r *BidRepositoryImpl) ExistsForFreelancer(db *gorm.DB, gigID, freelancerID string) (bool, error) {
	var count int64
	err := db.Model(&models.Bid{}).
		Where("gig_id = ? AND freelancer_id = ?", gigID, freelancerID).
		Count(&count).Error
	return count > 0, err
}

func (r *BidRepositoryImpl) FindPendingByGigForUpdate(db *gorm.DB, gigID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("gig_id = ? AND status = ?", gigID, models.BidStatusPending).
		Order("created_at ASC").
		Find(&bids).Error
	return bids, err
}

func (r *BidRepositoryImpl) TransitionStatus(db *gorm.DB, id string, from, to models.BidStatus) (bool, error) {
	result := db.Model(&models.Bid{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": db.NowFunc()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *BidRepositoryImpl) RejectPending(db *gorm.DB, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.Model(&models.Bid{}).
		Where("id IN ? AND status = ?", ids, models.BidStatusPending).
		Updates(map[string]any{"status": models.BidStatusRejected, "updated_at": db.NowFunc()})
	return result.RowsAffected, result.Error
}

func (r *BidRepositoryImpl) UpdateFields(db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = db.NowFunc()
	return db.Model(&models.Bid{}).Where("id = ?", id).Updates(fields).Error
}

func (r *BidRepositoryImpl) Delete(db *gorm.DB, id string) error {
	result := db.Where("id = ?", id).Delete(&models.Bid{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrBidNotFound
	}
	return nil
}

func (r *BidRepositoryImpl) ListByGig(db *gorm.DB, gigID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := db.Preload("Freelancer").
		Where("gig_id = ?", gigID).
		Order("created_at DESC").
		Find(&bids).Error
	return bids, err
}

func (r *BidRepositoryImpl) ListByFreelancer(db *gorm.DB, freelancerID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := db.Preload("Gig").
		Where("freelancer_id = ?", freelancerID).
		Order("created_at DESC").
		Find(&bids).Error
	return bids, err
}

func (r *BidRepositoryImpl) CountByGigAndStatus(db *gorm.DB, gigID string, status models.BidStatus) (int64, error) {
	var count int64
	err := db.Model(&models.Bid{}).Where("gig_id = ? AND status = ?", gigID, status).Count(&count).Error
	return count, err
}
