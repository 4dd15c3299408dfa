// Package testutil provides an in-memory database for repo and service tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chesschat/coach-backend/internal/db"
	"github.com/chesschat/coach-backend/internal/platform/logger"
)

var dbSeq atomic.Int64

// NewDB opens a fresh in-memory sqlite database with all tables migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gormDB
}

// NewLogger returns a no-op logger for tests.
func NewLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.NewNop()
}
