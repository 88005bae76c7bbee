package models

import "time"

type ProjectRole string

const (
	RoleOwner  ProjectRole = "owner"
	RoleMember ProjectRole = "member"

	// RoleNone is returned for users with no membership. It is never stored.
	RoleNone ProjectRole = "none"
)

// ProjectMember links a user to a project with a role. The composite
// primary key guarantees at most one membership per (project, user) pair.
type ProjectMember struct {
	ProjectID uint64      `gorm:"primarykey" json:"project_id"`
	UserID    uint64      `gorm:"primarykey" json:"user_id"`
	Role      ProjectRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	JoinedAt  time.Time   `json:"joined_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
