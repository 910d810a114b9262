package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gigflow_backend/internal/models"
	"gigflow_backend/internal/repositories"
)

// CreateUser создает пользователя с уникальным email
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Email:    fmt.Sprintf("%s_%s@test.com", username, uuid.NewString()[:8]),
		Username: username,
		FullName: username + " Test",
	}
	require.NoError(t, repositories.NewUserRepository().Create(db, user), "Не удалось создать пользователя")
	return user
}

// CreateGig создает открытый гиг
func CreateGig(t testing.TB, db *gorm.DB, ownerID, title string) *models.Gig {
	t.Helper()

	gig := &models.Gig{
		OwnerID:     ownerID,
		Title:       title,
		Description: "Test gig description",
		Budget:      500,
		Status:      models.GigStatusOpen,
		Version:     1,
	}
	require.NoError(t, db.Create(gig).Error, "Не удалось создать гиг")
	return gig
}

// CreateBid создает pending-ставку
func CreateBid(t testing.TB, db *gorm.DB, gigID, freelancerID string, price float64) *models.Bid {
	t.Helper()

	bid := &models.Bid{
		GigID:        gigID,
		FreelancerID: freelancerID,
		Message:      "I can do it",
		Price:        price,
		Status:       models.BidStatusPending,
	}
	require.NoError(t, db.Create(bid).Error, "Не удалось создать ставку")
	return bid
}

// ReloadBid перечитывает ставку из базы
func ReloadBid(t testing.TB, db *gorm.DB, id string) *models.Bid {
	t.Helper()

	var bid models.Bid
	require.NoError(t, db.Where("id = ?", id).Take(&bid).Error)
	return &bid
}

// ReloadGig перечитывает гиг из базы
func ReloadGig(t testing.TB, db *gorm.DB, id string) *models.Gig {
	t.Helper()

	var gig models.Gig
	require.NoError(t, db.Where("id = ?", id).Take(&gig).Error)
	return &gig
}

// CountOutbox считает outbox-события по топику
func CountOutbox(t testing.TB, db *gorm.DB, topic string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("topic = ?", topic).Count(&count).Error)
	return count
}
