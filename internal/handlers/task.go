package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/checkmate-app/checkmate-api/internal/dto"
	apierrors "github.com/checkmate-app/checkmate-api/internal/errors"
	"github.com/checkmate-app/checkmate-api/internal/middleware"
	"github.com/checkmate-app/checkmate-api/internal/models"
	"github.com/checkmate-app/checkmate-api/internal/services"
	"github.com/checkmate-app/checkmate-api/internal/utils"
	"github.com/gin-gonic/gin"
)

// TaskHandler coordinates task HTTP handlers.
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// CreateTask creates a task inside the project loaded by
// RequireProjectAccess.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	type CreateTaskRequest struct {
		Title       string              `json:"title" binding:"required"`
		Description string              `json:"description"`
		Status      models.TaskStatus   `json:"status"`
		Priority    models.TaskPriority `json:"priority"`
		DueDate     *time.Time          `json:"due_date"`
		AssigneeID  *uint64             `json:"assignee_id"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(services.CreateTaskInput{
		ProjectID:   project.ID,
		ActorID:     userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// GetTask returns the task loaded by RequireTaskAccess.
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(task))
}

// UpdateTask applies a partial update to a task.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	// Parse raw JSON to tell "field absent" apart from "field set to null".
	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input := services.UpdateTaskInput{}

	if title, ok := rawReq["title"].(string); ok {
		input.Title = &title
	}
	if description, ok := rawReq["description"].(string); ok {
		input.Description = &description
	}
	if status, ok := rawReq["status"].(string); ok {
		s := models.TaskStatus(status)
		input.Status = &s
	}
	if priority, ok := rawReq["priority"].(string); ok {
		p := models.TaskPriority(priority)
		input.Priority = &p
	}
	if raw, present := rawReq["due_date"]; present {
		if raw == nil {
			input.ClearDueDate = true
		} else if str, ok := raw.(string); ok {
			parsed, err := time.Parse(time.RFC3339, str)
			if err != nil {
				apierrors.BadRequest(c, "Invalid due_date format")
				return
			}
			input.DueDate = &parsed
		}
	}
	if raw, present := rawReq["assignee_id"]; present {
		if raw == nil {
			input.ClearAssignee = true
		} else if num, ok := raw.(float64); ok {
			id := uint64(num)
			input.AssigneeID = &id
		}
	}

	updated, err := h.taskService.UpdateTask(userID, task.ID, input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// ChangeStatus moves the task to another kanban column.
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	type ChangeStatusRequest struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}

	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.taskService.ChangeStatus(userID, task.ID, req.Status)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// DeleteTask deletes a task.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	if err := h.taskService.DeleteTask(userID, task.ID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// ListTasks returns tasks across the user's projects, filtered by query
// parameters.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	params := utils.GetPaginationParams(c)

	input := services.ListTasksInput{
		UserID:        userID,
		AssignedToMe:  c.Query("assigned_to_me") == "true",
		DueToday:      c.Query("due_today") == "true",
		SortByDueDate: c.Query("sort") == "due_date",
		Page:          params.Page,
		PageSize:      params.Limit,
	}

	if raw := c.Query("project_id"); raw != "" {
		projectID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project_id")
			return
		}
		input.ProjectID = &projectID
	}
	if raw := c.Query("status"); raw != "" {
		status := models.TaskStatus(raw)
		if !models.ValidTaskStatus(status) {
			apierrors.BadRequest(c, "Invalid status")
			return
		}
		input.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := models.TaskPriority(raw)
		if !models.ValidTaskPriority(priority) {
			apierrors.BadRequest(c, "Invalid priority")
			return
		}
		input.Priority = &priority
	}

	tasks, total, err := h.taskService.ListTasks(input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params.Page, params.Limit, total))
}

func respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskTitleRequired),
		errors.Is(err, services.ErrInvalidTaskStatus),
		errors.Is(err, services.ErrInvalidTaskPriority),
		errors.Is(err, services.ErrAssigneeNotMember):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrNotProjectMember),
		errors.Is(err, services.ErrTaskPermissionDenied):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrProjectNotFound):
		apierrors.NotFound(c, err.Error())
	default:
		apierrors.InternalError(c, "")
	}
}
