package models

import (
	"time"

	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "Active"
	ProjectStatusCompleted ProjectStatus = "Completed"
	ProjectStatusArchived  ProjectStatus = "Archived"
)

type Project struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	Name        string         `gorm:"type:varchar(128);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Status      ProjectStatus  `gorm:"type:varchar(20);not null;default:'Active'" json:"status"`
	OwnerID     uint64         `gorm:"not null" json:"owner_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Owner   User            `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
	Tasks   []Task          `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}
