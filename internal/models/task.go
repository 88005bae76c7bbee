package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "To Do"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

// ValidTaskStatus reports whether s is one of the three board columns.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
)

// ValidTaskPriority reports whether p is a recognized priority.
func ValidTaskPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	Title       string         `gorm:"type:varchar(128);not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      TaskStatus     `gorm:"type:varchar(20);not null;default:'To Do'" json:"status"`
	Priority    TaskPriority   `gorm:"type:varchar(20);not null;default:'Medium'" json:"priority"`
	DueDate     *time.Time     `json:"due_date"`
	ProjectID   uint64         `gorm:"not null" json:"project_id"`
	AssigneeID  *uint64        `json:"assignee_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Project  Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Assignee *User   `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
}
