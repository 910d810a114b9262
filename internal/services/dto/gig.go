package dto

import (
	"time"

	"gigflow_backend/internal/models"
)

type CreateGigRequest struct {
	Title       string            `json:"title" validate:"required,not-blank,max=200"`
	Description string            `json:"description" validate:"required,not-blank,max=5000"`
	Budget      *float64          `json:"budget" validate:"required,gte=0"`
	Images      []models.GigImage `json:"images,omitempty" validate:"omitempty,max=10,dive"`
}

type GigResponse struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Budget      float64           `json:"budget"`
	Images      []models.GigImage `json:"images"`
	Status      models.GigStatus  `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
