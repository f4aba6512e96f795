package postgres

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
)

// newTestDB opens an isolated in-memory SQLite database with the application schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entity.User{},
		&entity.OneTimeCode{},
		&entity.LaundryItem{},
		&entity.Order{},
		&entity.OrderItem{},
	))
	return db
}

func seedUser(t *testing.T, repo *UserRepo, username, email string, studentID int64) *entity.User {
	t.Helper()
	user := &entity.User{
		Username:   username,
		Email:      email,
		Password:   "$2a$04$abcdefghijklmnopqrstuuJ3x3sF1u0Yc6r2W0N2o6b9h3m0a2b3e", // pre-hashed placeholder
		Name:       "Test Student",
		StudentID:  studentID,
		HostelName: "GARGI",
		RoomNumber: "101",
		DegreeName: "BE",
	}
	require.NoError(t, repo.Create(user))
	return user
}
