package access

import (
	"context"
	"fmt"

	rbac "github.com/bohemiyan/supportdesk"
	"gorm.io/gorm"
)

// DomainStore is the read access the guards need to domain rows.
type DomainStore interface {
	Ticket(ctx context.Context, id string) (*rbac.Ticket, error)
	Team(ctx context.Context, id string) (*rbac.Team, error)
	IsTeamMember(ctx context.Context, teamID, userID string) (bool, error)
	Article(ctx context.Context, id string) (*rbac.KBArticle, error)
}

// GormStore implements DomainStore with gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Ticket(ctx context.Context, id string) (*rbac.Ticket, error) {
	var t rbac.Ticket
	if err := first(ctx, s.db, &t, id); err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	return &t, nil
}

func (s *GormStore) Team(ctx context.Context, id string) (*rbac.Team, error) {
	var t rbac.Team
	if err := first(ctx, s.db, &t, id); err != nil {
		return nil, fmt.Errorf("team %s: %w", id, err)
	}
	return &t, nil
}

func (s *GormStore) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&rbac.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) Article(ctx context.Context, id string) (*rbac.KBArticle, error) {
	var a rbac.KBArticle
	if err := first(ctx, s.db, &a, id); err != nil {
		return nil, fmt.Errorf("article %s: %w", id, err)
	}
	return &a, nil
}

// first loads the row with primary key id into dest. A missing row yields
// rbac.ErrNotFound.
func first(ctx context.Context, db *gorm.DB, dest any, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(dest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rbac.ErrNotFound
	}
	return nil
}
