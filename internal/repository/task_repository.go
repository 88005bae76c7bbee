package repository

import (
	"github.com/checkmate-app/checkmate-api/internal/database"
	"github.com/checkmate-app/checkmate-api/internal/models"
	"github.com/checkmate-app/checkmate-api/internal/utils"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// ListByProjectID returns every task of a project. Ordering is left to the
// board projector, which sorts in memory.
func (r *GormTaskRepository) ListByProjectID(projectID uint64) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.Preload("Assignee").
		Where("project_id = ?", projectID).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	if len(filter.ProjectIDs) == 0 {
		return []models.Task{}, 0, nil
	}

	query := r.db.Model(&models.Task{}).Where("tasks.project_id IN ?", filter.ProjectIDs)

	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("tasks.priority = ?", *filter.Priority)
	}
	if filter.AssigneeID != nil {
		query = query.Where("tasks.assignee_id = ?", *filter.AssigneeID)
	}
	if filter.DueDateFrom != nil {
		query = query.Where("tasks.due_date >= ?", *filter.DueDateFrom)
	}
	if filter.DueDateTo != nil {
		query = query.Where("tasks.due_date < ?", *filter.DueDateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query
	if filter.SortByDueDate {
		listQuery = listQuery.Order("CASE WHEN tasks.due_date IS NULL THEN 1 ELSE 0 END, tasks.due_date ASC")
	} else {
		listQuery = listQuery.Order("tasks.created_at DESC")
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.PaginationParams{
			Page:   filter.Page,
			Limit:  filter.PageSize,
			Offset: (filter.Page - 1) * filter.PageSize,
		}))
	}

	if err := listQuery.Preload("Assignee").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update updates a task
func (r *GormTaskRepository) Update(task *models.Task) error {
	return r.db.Save(task).Error
}

// Delete deletes a task
func (r *GormTaskRepository) Delete(id uint64) error {
	return r.db.Delete(&models.Task{}, id).Error
}
