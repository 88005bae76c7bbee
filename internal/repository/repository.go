package repository

import (
	"time"

	"github.com/checkmate-app/checkmate-api/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsernameOrEmail finds a user by username or by email
	FindByUsernameOrEmail(identifier string) (*models.User, error)

	// Update persists changes to a user
	Update(user *models.User) error

	// UsernameTaken reports whether another user already holds the username
	UsernameTaken(username string, excludeID uint64) (bool, error)

	// EmailTaken reports whether another user already holds the email
	EmailTaken(email string, excludeID uint64) (bool, error)
}

// ProjectRepository defines the interface for project and membership data access
type ProjectRepository interface {
	// CreateWithOwner creates a project together with its owner membership
	// in a single transaction
	CreateWithOwner(project *models.Project, owner *models.ProjectMember) error

	// FindByID finds a project by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Project, error)

	// Update updates a project
	Update(project *models.Project) error

	// Delete deletes a project together with its tasks and memberships
	Delete(id uint64) error

	// AddMember adds a member to a project
	AddMember(member *models.ProjectMember) error

	// RemoveMember removes a member and clears their assignee references on
	// the project's tasks
	RemoveMember(projectID, userID uint64) error

	// FindMember finds a specific project membership
	FindMember(projectID, userID uint64) (*models.ProjectMember, error)

	// ListMembers lists all members of a project
	ListMembers(projectID uint64) ([]models.ProjectMember, error)

	// ListMembershipsByUserID lists all projects a user belongs to
	ListMembershipsByUserID(userID uint64) ([]models.ProjectMember, error)
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// ListByProjectID returns every task of a project
	ListByProjectID(projectID uint64) ([]models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// Update updates a task
	Update(task *models.Task) error

	// Delete deletes a task
	Delete(id uint64) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	ProjectIDs    []uint64
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	AssigneeID    *uint64
	DueDateFrom   *time.Time
	DueDateTo     *time.Time
	SortByDueDate bool
	Page          int
	PageSize      int
}
