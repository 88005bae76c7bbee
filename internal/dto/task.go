package dto

import (
	"time"

	"github.com/checkmate-app/checkmate-api/internal/board"
	"github.com/checkmate-app/checkmate-api/internal/models"
)

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          uint64              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date"`
	ProjectID   uint64              `json:"project_id"`
	AssigneeID  *uint64             `json:"assignee_id"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Assignee    *UserDTO            `json:"assignee,omitempty"`
}

// BoardDTO represents the three kanban columns of a project
type BoardDTO struct {
	Todo       []TaskDTO `json:"todo"`
	InProgress []TaskDTO `json:"in_progress"`
	Done       []TaskDTO `json:"done"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO `json:"tasks"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int64     `json:"total_count"`
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		ProjectID:   task.ProjectID,
		AssigneeID:  task.AssigneeID,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}

	// Include assignee if preloaded
	if task.Assignee != nil && task.Assignee.ID != 0 {
		assignee := ToUserDTO(*task.Assignee)
		dto.Assignee = &assignee
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	out := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		out[i] = ToTaskDTO(task)
	}
	return out
}

// ToBoardDTO converts a board projection to its response shape
func ToBoardDTO(b board.Board) BoardDTO {
	return BoardDTO{
		Todo:       ToTaskDTOs(b.Todo),
		InProgress: ToTaskDTOs(b.InProgress),
		Done:       ToTaskDTOs(b.Done),
	}
}

// ToTaskListResponse converts a slice of tasks to TaskListResponse
func ToTaskListResponse(tasks []models.Task, page, pageSize int, totalCount int64) TaskListResponse {
	return TaskListResponse{
		Tasks:      ToTaskDTOs(tasks),
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
	}
}
