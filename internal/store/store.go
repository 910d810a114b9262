// Package store - транзакции поверх GORM и перевод ошибок драйверов
// в таксономию apperrors.
package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"gigflow_backend/internal/logger"
	"gigflow_backend/pkg/apperrors"
)

// Store - точка входа в хранилище. Репозитории принимают *gorm.DB
// (пул или транзакцию), Store решает, какой из них передать.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB возвращает пул с привязанным контекстом (для чтений вне транзакции)
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// WithTransaction выполняет fn атомарно. Любая ошибка из fn (или отмена ctx)
// откатывает все изменения. Возвращаемая ошибка уже классифицирована.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	err := s.db.WithContext(ctx).Transaction(fn)
	if err != nil {
		err = Classify(err)
		if apperrors.KindOf(err) == apperrors.KindInfra {
			logger.DBLog("transaction", time.Since(start), err)
		}
		return err
	}
	return nil
}
