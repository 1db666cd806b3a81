package rbac

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestHasPermissionUsesProcedure(t *testing.T) {
	db, mock := setupMockGorm(t)
	store, err := NewGormStore(db, "has_permission")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT has_permission($1, $2)")).
		WithArgs("u1", PermViewTickets).
		WillReturnRows(sqlmock.NewRows([]string{"has_permission"}).AddRow(true))

	allowed, err := store.HasPermission(context.Background(), "u1", PermViewTickets)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasPermissionPropagatesStoreErrors(t *testing.T) {
	db, mock := setupMockGorm(t)
	store, err := NewGormStore(db, "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("u1", PermViewTickets).
		WillReturnError(fmt.Errorf("connection reset"))

	_, err = store.HasPermission(context.Background(), "u1", PermViewTickets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewGormStoreRejectsBadProcedure(t *testing.T) {
	db := setupTestDB(t)

	_, err := NewGormStore(db, "has_permission(); DROP TABLE user_roles; --")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = NewGormStore(nil, "")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = NewGormStore(db, "authz.has_permission")
	assert.NoError(t, err)
}

func TestRoleAuditLogUnknownPerformer(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db)

	user := createProfile(t, db, "user")
	assign(t, svc, user, RoleAgent, "system")

	entries, err := svc.GetUserRoleAuditLog(ctx, user)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "system", entries[0].PerformedBy)
	assert.Empty(t, entries[0].PerformerName)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db)
	require.NoError(t, svc.SeedDefaults(ctx))

	var perms, grants int64
	require.NoError(t, db.Model(&Permission{}).Count(&perms).Error)
	require.NoError(t, db.Model(&RolePermission{}).Count(&grants).Error)
	assert.Equal(t, int64(len(Catalogue())), perms)

	want := 0
	for _, names := range DefaultRolePermissions() {
		want += len(names)
	}
	assert.Equal(t, int64(want), grants)
}

func TestTranslateUniqueViolations(t *testing.T) {
	assert.True(t, errors.Is(translate(&pq.Error{Code: "23505", Message: "duplicate key"}), ErrConstraint))
	assert.True(t, errors.Is(translate(gorm.ErrDuplicatedKey), ErrConstraint))
	assert.True(t, errors.Is(translate(errors.New("UNIQUE constraint failed: teams.lead_id")), ErrConstraint))

	other := errors.New("deadlock detected")
	assert.Same(t, other, translate(other))
	assert.Nil(t, translate(nil))
}
