package services

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/models"
	"gigflow_backend/internal/repositories"
	"gigflow_backend/internal/services/dto"
	"gigflow_backend/internal/store"
	"gigflow_backend/pkg/apperrors"
)

// GigService - минимальный CRUD гигов, нужный процессу ставок
type GigService interface {
	CreateGig(ctx context.Context, ownerID string, req *dto.CreateGigRequest) (*dto.GigResponse, error)
	GetGig(ctx context.Context, gigID string) (*dto.GigResponse, error)
}

type gigService struct {
	store   *store.Store
	gigRepo repositories.GigRepository
}

func NewGigService(st *store.Store, gigRepo repositories.GigRepository) GigService {
	return &gigService{store: st, gigRepo: gigRepo}
}

func (s *gigService) CreateGig(ctx context.Context, ownerID string, req *dto.CreateGigRequest) (*dto.GigResponse, error) {
	if req.Budget == nil || *req.Budget < 0 {
		return nil, apperrors.ErrInvalidBudget
	}

	images := req.Images
	if images == nil {
		images = []models.GigImage{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	gig := &models.Gig{
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Budget:      *req.Budget,
		Images:      datatypes.JSON(imagesJSON),
		Status:      models.GigStatusOpen,
	}
	if err := s.gigRepo.Create(s.store.DB(ctx), gig); err != nil {
		return nil, store.Classify(err)
	}

	logger.CtxInfo(ctx, "gig created", "gig_id", gig.ID)
	return newGigResponse(gig), nil
}

func (s *gigService) GetGig(ctx context.Context, gigID string) (*dto.GigResponse, error) {
	gig, err := s.gigRepo.FindByID(s.store.DB(ctx), gigID)
	if err != nil {
		return nil, store.Classify(err)
	}
	return newGigResponse(gig), nil
}

func newGigResponse(gig *models.Gig) *dto.GigResponse {
	images := []models.GigImage{}
	if len(gig.Images) > 0 {
		// битый JSON в колонке не должен ломать чтение гига
		_ = json.Unmarshal(gig.Images, &images)
	}
	return &dto.GigResponse{
		ID:          gig.ID,
		OwnerID:     gig.OwnerID,
		Title:       gig.Title,
		Description: gig.Description,
		Budget:      gig.Budget,
		Images:      images,
		Status:      gig.Status,
		CreatedAt:   gig.CreatedAt,
		UpdatedAt:   gig.UpdatedAt,
	}
}
