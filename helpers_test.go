package rbac

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a migrated in-memory database. A single connection keeps
// every query on the same in-memory instance.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, mutate ...func(*Config)) *Service {
	t.Helper()

	cfg := Config{DB: db}
	for _, m := range mutate {
		m(&cfg)
	}
	svc, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.SeedDefaults(context.Background()))
	return svc
}

func createProfile(t *testing.T, db *gorm.DB, name string) string {
	t.Helper()

	id := uuid.NewString()
	require.NoError(t, db.Create(&Profile{ID: id, FullName: name, Email: name + "@example.com"}).Error)
	return id
}

func createTeam(t *testing.T, db *gorm.DB, name string) string {
	t.Helper()

	id := uuid.NewString()
	require.NoError(t, db.Create(&Team{ID: id, Name: name}).Error)
	return id
}

func assign(t *testing.T, svc *Service, userID string, role Role, by string) {
	t.Helper()
	require.NoError(t, svc.AssignRole(context.Background(), AssignRoleInput{UserID: userID, Role: role, PerformedBy: by}))
}
