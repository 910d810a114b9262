package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigflow_backend/internal/models"
	"gigflow_backend/pkg/apperrors"
)

type GigRepository interface {
	Create(db *gorm.DB, gig *models.Gig) error
	FindByID(db *gorm.DB, id string) (*models.Gig, error)
	// FindByIDForShare читает гиг с разделяемой блокировкой строки:
	// подача/изменение ставки и найм сериализуются на строке гига.
	FindByIDForShare(db *gorm.DB, id string) (*models.Gig, error)
	// CompareAndSwapStatus переводит гиг из from в to, только если
	// статус и версия не изменились с момента чтения.
	CompareAndSwapStatus(db *gorm.DB, id string, version int, from, to models.GigStatus) (bool, error)
}

type GigRepositoryImpl struct{}

func NewGigRepository() GigRepository {
	return &GigRepositoryImpl{}
}

func (r *GigRepositoryImpl) Create(db *gorm.DB, gig *models.Gig) error {
	if gig.Status == "" {
		gig.Status = models.GigStatusOpen
	}
	if gig.Version == 0 {
		gig.Version = 1
	}
	return db.Create(gig).Error
}

func (r *GigRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Gig, error) {
	return r.find(db, id)
}

func (r *GigRepositoryImpl) FindByIDForShare(db *gorm.DB, id string) (*models.Gig, error) {
	return r.find(db.Clauses(clause.Locking{Strength: clause.LockingStrengthShare}), id)
}

func (r *GigRepositoryImpl) find(db *gorm.DB, id string) (*models.Gig, error) {
	var gig models.Gig
	if err := db.Where("id = ?", id).Take(&gig).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGigNotFound
		}
		return nil, err
	}
	return &gig, nil
}

func (r *GigRepositoryImpl) CompareAndSwapStatus(db *gorm.DB, id string, version int, from, to models.GigStatus) (bool, error) {
	result := db.Model(&models.Gig{}).
		Where("id = ? AND status = ? AND version = ?", id, from, version).
		Updates(map[string]any{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": db.NowFunc(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
