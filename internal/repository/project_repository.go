package repository

import (
	"github.com/checkmate-app/checkmate-api/internal/models"
	"gorm.io/gorm"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

// CreateWithOwner creates the project and its owner membership atomically.
// A project must never exist without exactly one owner membership.
func (r *GormProjectRepository) CreateWithOwner(project *models.Project, owner *models.ProjectMember) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}

		owner.ProjectID = project.ID
		owner.UserID = project.OwnerID
		owner.Role = models.RoleOwner

		return tx.Create(owner).Error
	})
}

// FindByID finds a project by ID with optional preloading
func (r *GormProjectRepository) FindByID(id uint64, preload ...string) (*models.Project, error) {
	var project models.Project
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&project, id).Error; err != nil {
		return nil, err
	}

	return &project, nil
}

// Update updates a project
func (r *GormProjectRepository) Update(project *models.Project) error {
	return r.db.Save(project).Error
}

// Delete deletes a project and all related data in a transaction
func (r *GormProjectRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Delete all tasks in the project
		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}

		// Delete all memberships
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}

		// Delete the project itself
		return tx.Delete(&models.Project{}, id).Error
	})
}

// AddMember adds a member to a project
func (r *GormProjectRepository) AddMember(member *models.ProjectMember) error {
	return r.db.Create(member).Error
}

// RemoveMember removes a member and clears any tasks of this project still
// assigned to them, so no dangling assignee references remain.
func (r *GormProjectRepository) RemoveMember(projectID, userID uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("project_id = ? AND assignee_id = ?", projectID, userID).
			Update("assignee_id", nil).Error; err != nil {
			return err
		}

		return tx.Where("project_id = ? AND user_id = ?", projectID, userID).
			Delete(&models.ProjectMember{}).Error
	})
}

// FindMember finds a specific project membership
func (r *GormProjectRepository) FindMember(projectID, userID uint64) (*models.ProjectMember, error) {
	var member models.ProjectMember
	if err := r.db.Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ListMembers lists all members of a project
func (r *GormProjectRepository) ListMembers(projectID uint64) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	if err := r.db.Preload("User").
		Where("project_id = ?", projectID).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ListMembershipsByUserID lists all projects a user is a member of
func (r *GormProjectRepository) ListMembershipsByUserID(userID uint64) ([]models.ProjectMember, error) {
	var memberships []models.ProjectMember
	if err := r.db.Preload("Project").
		Where("user_id = ?", userID).
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}
