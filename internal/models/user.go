package models

import (
	"time"
)

type User struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	OwnedProjects []Project       `gorm:"foreignKey:OwnerID" json:"-"`
	Memberships   []ProjectMember `gorm:"foreignKey:UserID" json:"-"`
	AssignedTasks []Task          `gorm:"foreignKey:AssigneeID" json:"-"`
}
