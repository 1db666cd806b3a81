package rbac

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const hasPermissionQuery = `SELECT EXISTS (
	SELECT 1 FROM user_roles ur
	JOIN role_permissions rp ON rp.role = ur.role
	JOIN permissions p ON p.id = rp.permission_id
	WHERE ur.user_id = ? AND p.name = ?
)`

var procedureName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// GormStore implements Store on top of gorm.
type GormStore struct {
	db        *gorm.DB
	procedure string
}

// NewGormStore creates a store. When procedure is non-empty, permission
// checks call that stored function with (user_id, permission) instead of
// running the join query.
func NewGormStore(db *gorm.DB, procedure string) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database is required", ErrInvalidInput)
	}
	procedure = strings.TrimSpace(procedure)
	if procedure != "" && !procedureName.MatchString(procedure) {
		return nil, fmt.Errorf("%w: invalid procedure name %q", ErrInvalidInput, procedure)
	}
	return &GormStore{db: db, procedure: procedure}, nil
}

// AutoMigrate creates or updates every table in Models.
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

func (s *GormStore) UserRole(ctx context.Context, userID string) (Role, bool, error) {
	return findUserRole(s.db.WithContext(ctx), userID, false)
}

func (s *GormStore) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	query := hasPermissionQuery
	if s.procedure != "" {
		query = "SELECT " + s.procedure + "(?, ?)"
	}
	var allowed bool
	if err := s.db.WithContext(ctx).Raw(query, userID, permission).Row().Scan(&allowed); err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return allowed, nil
}

func (s *GormStore) RolePermissions(ctx context.Context, role Role) ([]Permission, error) {
	var perms []Permission
	err := s.db.WithContext(ctx).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role = ?", role).
		Order("permissions.name").
		Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch role permissions: %w", err)
	}
	return perms, nil
}

func (s *GormStore) RoleAuditLog(ctx context.Context, userID string) ([]AuditEntry, error) {
	db := s.db.WithContext(ctx)

	var logs []RoleAuditLog
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch audit log: %w", err)
	}

	performerIDs := make([]string, 0, len(logs))
	seen := make(map[string]struct{}, len(logs))
	for _, l := range logs {
		if _, ok := seen[l.PerformedBy]; ok {
			continue
		}
		seen[l.PerformedBy] = struct{}{}
		performerIDs = append(performerIDs, l.PerformedBy)
	}

	names := make(map[string]string, len(performerIDs))
	if len(performerIDs) > 0 {
		var profiles []Profile
		if err := db.Where("id IN ?", performerIDs).Find(&profiles).Error; err != nil {
			return nil, fmt.Errorf("failed to fetch performers: %w", err)
		}
		for _, p := range profiles {
			names[p.ID] = p.FullName
		}
	}

	entries := make([]AuditEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, newAuditEntry(l, names[l.PerformedBy]))
	}
	return entries, nil
}

func (s *GormStore) InTx(ctx context.Context, fn func(tx RoleTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

func (s *GormStore) Seed(ctx context.Context, catalogue []Permission, grants map[Role][]string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range catalogue {
			perm := Permission{Name: p.Name, Description: p.Description}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"description"}),
			}).Create(&perm).Error
			if err != nil {
				return fmt.Errorf("failed to upsert permission %s: %w", p.Name, err)
			}
		}

		var perms []Permission
		if err := tx.Find(&perms).Error; err != nil {
			return fmt.Errorf("failed to fetch permissions: %w", err)
		}
		ids := make(map[string]uint, len(perms))
		for _, p := range perms {
			ids[p.Name] = p.ID
		}

		for role, names := range grants {
			if !role.Valid() {
				return fmt.Errorf("%w: %q", ErrUnknownRole, role)
			}
			for _, name := range names {
				id, ok := ids[name]
				if !ok {
					return fmt.Errorf("%w: permission %s", ErrNotFound, name)
				}
				rp := RolePermission{Role: role, PermissionID: id}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rp).Error; err != nil {
					return fmt.Errorf("failed to grant %s to %s: %w", name, role, err)
				}
			}
		}
		return nil
	})
}

func (s *GormStore) GrantPermission(ctx context.Context, role Role, permission string) error {
	db := s.db.WithContext(ctx)
	perm, err := findPermission(db, permission)
	if err != nil {
		return err
	}
	rp := RolePermission{Role: role, PermissionID: perm.ID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rp).Error; err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}

func (s *GormStore) RevokePermission(ctx context.Context, role Role, permission string) (bool, error) {
	db := s.db.WithContext(ctx)
	perm, err := findPermission(db, permission)
	if err != nil {
		return false, err
	}
	res := db.Where("role = ? AND permission_id = ?", role, perm.ID).Delete(&RolePermission{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to revoke permission: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func findPermission(db *gorm.DB, name string) (*Permission, error) {
	var perms []Permission
	if err := db.Where("name = ?", name).Limit(1).Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch permission: %w", err)
	}
	if len(perms) == 0 {
		return nil, fmt.Errorf("permission %s: %w", name, ErrNotFound)
	}
	return &perms[0], nil
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LockUserRole(ctx context.Context, userID string) (Role, bool, error) {
	db := t.db.WithContext(ctx)
	// Locking the profile serializes first-time assignments, which have no
	// user_roles row to lock. Users without a profile are refused.
	var profiles []Profile
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).Limit(1).Find(&profiles).Error; err != nil {
		return "", false, fmt.Errorf("failed to lock profile: %w", err)
	}
	if len(profiles) == 0 {
		return "", false, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return findUserRole(db, userID, true)
}

func (t *gormTx) UpsertUserRole(ctx context.Context, userID string, role Role) error {
	ur := UserRole{UserID: userID, Role: role}
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&ur).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user role: %w", translate(err))
	}
	return nil
}

func (t *gormTx) DeleteUserRole(ctx context.Context, userID string) error {
	if err := t.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&UserRole{}).Error; err != nil {
		return fmt.Errorf("failed to delete user role: %w", err)
	}
	return nil
}

func (t *gormTx) AppendAudit(ctx context.Context, entry *RoleAuditLog) error {
	if err := t.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record audit log: %w", err)
	}
	return nil
}

func (t *gormTx) Memberships(ctx context.Context, userID string) (Memberships, error) {
	db := t.db.WithContext(ctx)
	var m Memberships
	if err := db.Model(&TeamMember{}).Where("user_id = ?", userID).Count(&m.Teams).Error; err != nil {
		return Memberships{}, fmt.Errorf("failed to count memberships: %w", err)
	}
	if err := db.Model(&Team{}).Where("lead_id = ?", userID).Pluck("id", &m.LedTeams).Error; err != nil {
		return Memberships{}, fmt.Errorf("failed to fetch led teams: %w", err)
	}
	return m, nil
}

func (t *gormTx) LockTeam(ctx context.Context, teamID string) (*Team, error) {
	var teams []Team
	if err := t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", teamID).Limit(1).Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("failed to lock team: %w", err)
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("team %s: %w", teamID, ErrNotFound)
	}
	return &teams[0], nil
}

func (t *gormTx) SetTeamLead(ctx context.Context, teamID, userID string) error {
	err := t.db.WithContext(ctx).Model(&Team{}).Where("id = ?", teamID).Update("lead_id", userID).Error
	if err != nil {
		return fmt.Errorf("failed to set team lead: %w", translate(err))
	}
	return nil
}

func (t *gormTx) UpsertTeamMember(ctx context.Context, member *TeamMember) error {
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(member).Error
	if err != nil {
		return fmt.Errorf("failed to upsert team member: %w", translate(err))
	}
	return nil
}

func findUserRole(db *gorm.DB, userID string, lock bool) (Role, bool, error) {
	q := db.Where("user_id = ?", userID).Limit(1)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []UserRole
	if err := q.Find(&rows).Error; err != nil {
		return "", false, fmt.Errorf("failed to fetch user role: %w", err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Role, true, nil
}

// translate marks unique violations with ErrConstraint.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConstraint, pqErr.Message)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}
