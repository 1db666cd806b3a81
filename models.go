package rbac

import (
	"time"
)

// Profile is the user record created at sign-up.
type Profile struct {
	ID        string `gorm:"primaryKey;type:text"`
	FullName  string
	Email     string `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permission represents a named capability.
type Permission struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"unique;not null" json:"name"`
	Description string `json:"description"`
}

// RolePermission grants a permission to a role.
type RolePermission struct {
	Role         Role `gorm:"primaryKey;type:text"`
	PermissionID uint `gorm:"primaryKey;autoIncrement:false"`
}

// UserRole is the single live role assignment of a user.
type UserRole struct {
	UserID    string `gorm:"primaryKey;type:text"`
	Role      Role   `gorm:"type:text;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuditAction names a role transition kind.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// RoleAuditLog is an append-only record of one role transition.
type RoleAuditLog struct {
	ID          uint        `gorm:"primaryKey"`
	UserID      string      `gorm:"type:text;not null;index"`
	Action      AuditAction `gorm:"type:text;not null"`
	OldRole     *Role       `gorm:"type:text"`
	NewRole     *Role       `gorm:"type:text"`
	PerformedBy string      `gorm:"type:text;not null"`
	CreatedAt   time.Time   `gorm:"index"`
}

// TeamMemberRole is the per-membership role carried by team_members rows.
type TeamMemberRole string

const (
	MemberAdmin    TeamMemberRole = "admin"
	MemberTeamLead TeamMemberRole = "team_lead"
	MemberAgent    TeamMemberRole = "agent"
)

// Valid reports whether r is an allowed membership role.
func (r TeamMemberRole) Valid() bool {
	switch r {
	case MemberAdmin, MemberTeamLead, MemberAgent:
		return true
	}
	return false
}

// Team groups agents under one lead.
type Team struct {
	ID        string  `gorm:"primaryKey;type:text" json:"id"`
	Name      string  `gorm:"not null" json:"name"`
	LeadID    *string `gorm:"type:text;uniqueIndex" json:"lead_id,omitempty"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TeamMember maps a user into a team.
type TeamMember struct {
	TeamID    string         `gorm:"primaryKey;type:text" json:"team_id"`
	UserID    string         `gorm:"primaryKey;type:text;index" json:"user_id"`
	Role      TeamMemberRole `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

// Ticket is a support request.
type Ticket struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	Status      string    `gorm:"type:text;not null;default:open" json:"status"`
	Priority    string    `gorm:"type:text;not null;default:medium" json:"priority"`
	CreatedBy   string    `gorm:"type:text;not null;index" json:"created_by"`
	AssigneeID  *string   `gorm:"type:text;index" json:"assignee_id,omitempty"`
	TeamID      *string   `gorm:"type:text;index" json:"team_id,omitempty"`
	CategoryID  *string   `gorm:"type:text" json:"category_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KBArticle is a knowledge-base article.
type KBArticle struct {
	ID         string    `gorm:"primaryKey;type:text" json:"id"`
	Title      string    `gorm:"not null" json:"title"`
	Body       string    `json:"body"`
	AuthorID   string    `gorm:"type:text;not null;index" json:"author_id"`
	CategoryID *string   `gorm:"type:text" json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// KBCategory groups knowledge-base articles.
type KBCategory struct {
	ID        string `gorm:"primaryKey;type:text" json:"id"`
	Name      string `gorm:"unique;not null" json:"name"`
	CreatedAt time.Time
}

// Models lists every table the core reads or writes, in migration order.
func Models() []any {
	return []any{
		&Profile{}, &Permission{}, &RolePermission{}, &UserRole{}, &RoleAuditLog{},
		&Team{}, &TeamMember{}, &Ticket{}, &KBCategory{}, &KBArticle{},
	}
}
