// Package testutil - общая обвязка тестов: временная SQLite-база со всеми
// миграциями и фабрики сущностей.
package testutil

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gigflow_backend/database"
	"gigflow_backend/internal/logger"
	"gigflow_backend/internal/store"
)

func init() {
	logger.InitWithWriter("test", io.Discard)
}

// NewTestDB открывает пустую базу во временной директории теста
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gigflow_test.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := database.Connect(database.Options{
		Driver:   "sqlite",
		DSN:      dsn,
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err, "Не удалось открыть тестовую БД")
	require.NoError(t, database.AutoMigrate(db), "Не удалось выполнить миграции")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewTestStore - NewTestDB, обернутая в store.Store
func NewTestStore(t testing.TB) (*store.Store, *gorm.DB) {
	db := NewTestDB(t)
	return store.New(db), db
}
