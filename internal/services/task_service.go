package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/checkmate-app/checkmate-api/internal/authz"
	"github.com/checkmate-app/checkmate-api/internal/board"
	"github.com/checkmate-app/checkmate-api/internal/models"
	"github.com/checkmate-app/checkmate-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrTaskTitleRequired    = errors.New("title cannot be empty")
	ErrInvalidTaskStatus    = errors.New("invalid task status")
	ErrInvalidTaskPriority  = errors.New("invalid task priority")
	ErrNotProjectMember     = errors.New("user is not a member of the project")
	ErrTaskPermissionDenied = errors.New("only the project owner or the assignee can modify this task")
	ErrAssigneeNotMember    = errors.New("assignee must be a member of the project")
)

// TaskService handles task business logic and board projection.
type TaskService struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
}

// NewTaskService creates a new TaskService.
func NewTaskService(taskRepo repository.TaskRepository, projectRepo repository.ProjectRepository) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
	}
}

// CreateTaskInput represents input for creating a task.
type CreateTaskInput struct {
	ProjectID   uint64
	ActorID     uint64
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     *time.Time
	AssigneeID  *uint64
}

// CreateTask creates a task in a project. Any project member may add tasks.
func (s *TaskService) CreateTask(input CreateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrTaskTitleRequired
	}

	project, role, err := s.projectAndRole(input.ProjectID, input.ActorID)
	if err != nil {
		return nil, err
	}

	if !authz.Can(input.ActorID, project, role, nil, authz.ActionAddTask) {
		return nil, ErrNotProjectMember
	}

	if input.Status == "" {
		input.Status = models.TaskStatusTodo
	} else if !models.ValidTaskStatus(input.Status) {
		return nil, ErrInvalidTaskStatus
	}

	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	} else if !models.ValidTaskPriority(input.Priority) {
		return nil, ErrInvalidTaskPriority
	}

	if input.AssigneeID != nil {
		if err := s.ensureAssigneeMember(input.ProjectID, *input.AssigneeID); err != nil {
			return nil, err
		}
	}

	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		ProjectID:   input.ProjectID,
		AssigneeID:  input.AssigneeID,
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return s.taskRepo.FindByID(task.ID, "Assignee")
}

// GetTask returns a task with its assignee loaded.
func (s *TaskService) GetTask(taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID, "Assignee")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// UpdateTaskInput holds the mutable task fields; nil means unchanged. The
// project reference is immutable and deliberately absent.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	DueDate       *time.Time
	ClearDueDate  bool
	AssigneeID    *uint64
	ClearAssignee bool
}

// UpdateTask applies field changes to a task. Only the project owner or the
// task's current assignee may edit.
func (s *TaskService) UpdateTask(actorID, taskID uint64, input UpdateTaskInput) (*models.Task, error) {
	task, project, role, err := s.taskProjectAndRole(taskID, actorID)
	if err != nil {
		return nil, err
	}

	if !authz.Can(actorID, project, role, task, authz.ActionEditTask) {
		return nil, ErrTaskPermissionDenied
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, ErrTaskTitleRequired
		}
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		if !models.ValidTaskStatus(*input.Status) {
			return nil, ErrInvalidTaskStatus
		}
		task.Status = *input.Status
	}
	if input.Priority != nil {
		if !models.ValidTaskPriority(*input.Priority) {
			return nil, ErrInvalidTaskPriority
		}
		task.Priority = *input.Priority
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.ClearAssignee {
		task.AssigneeID = nil
	} else if input.AssigneeID != nil {
		if err := s.ensureAssigneeMember(task.ProjectID, *input.AssigneeID); err != nil {
			return nil, err
		}
		task.AssigneeID = input.AssigneeID
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return s.taskRepo.FindByID(task.ID, "Assignee")
}

// ChangeStatus moves a task to another board column. Same permission rule
// as editing.
func (s *TaskService) ChangeStatus(actorID, taskID uint64, status models.TaskStatus) (*models.Task, error) {
	if !models.ValidTaskStatus(status) {
		return nil, ErrInvalidTaskStatus
	}

	task, project, role, err := s.taskProjectAndRole(taskID, actorID)
	if err != nil {
		return nil, err
	}

	if !authz.Can(actorID, project, role, task, authz.ActionEditTask) {
		return nil, ErrTaskPermissionDenied
	}

	task.Status = status

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to change task status: %w", err)
	}

	return task, nil
}

// DeleteTask deletes a task. Only the project owner or the assignee may
// delete.
func (s *TaskService) DeleteTask(actorID, taskID uint64) error {
	task, project, role, err := s.taskProjectAndRole(taskID, actorID)
	if err != nil {
		return err
	}

	if !authz.Can(actorID, project, role, task, authz.ActionDeleteTask) {
		return ErrTaskPermissionDenied
	}

	if err := s.taskRepo.Delete(taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// ProjectBoard loads the project's tasks and projects them onto the three
// kanban columns. Callers are responsible for the view permission check.
func (s *TaskService) ProjectBoard(projectID uint64, sort board.Sort) (board.Board, error) {
	tasks, err := s.taskRepo.ListByProjectID(projectID)
	if err != nil {
		return board.Board{}, fmt.Errorf("failed to load project tasks: %w", err)
	}

	return board.Build(tasks, sort), nil
}

// ListTasksInput represents filters for the cross-project task list.
type ListTasksInput struct {
	UserID        uint64
	ProjectID     *uint64
	AssignedToMe  bool
	DueToday      bool
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	SortByDueDate bool
	Page          int
	PageSize      int
}

// ListTasks returns tasks across every project the user belongs to,
// narrowed by the provided filters.
func (s *TaskService) ListTasks(input ListTasksInput) ([]models.Task, int64, error) {
	projectIDs, err := s.resolveAccessibleProjectIDs(input.UserID, input.ProjectID)
	if err != nil {
		return nil, 0, err
	}

	if len(projectIDs) == 0 {
		return []models.Task{}, 0, nil
	}

	filter := repository.TaskFilter{
		ProjectIDs:    projectIDs,
		Status:        input.Status,
		Priority:      input.Priority,
		SortByDueDate: input.SortByDueDate,
		Page:          input.Page,
		PageSize:      input.PageSize,
	}

	if input.AssignedToMe {
		filter.AssigneeID = &input.UserID
	}
	if input.DueToday {
		now := time.Now()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		endOfDay := startOfDay.Add(24 * time.Hour)
		filter.DueDateFrom = &startOfDay
		filter.DueDateTo = &endOfDay
	}

	tasks, total, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

func (s *TaskService) resolveAccessibleProjectIDs(userID uint64, projectID *uint64) ([]uint64, error) {
	if projectID != nil {
		if err := s.ensureProjectMember(*projectID, userID); err != nil {
			return nil, err
		}
		return []uint64{*projectID}, nil
	}

	memberships, err := s.projectRepo.ListMembershipsByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project memberships: %w", err)
	}

	projectIDs := make([]uint64, 0, len(memberships))
	for _, m := range memberships {
		projectIDs = append(projectIDs, m.ProjectID)
	}

	return projectIDs, nil
}

// ensureAssigneeMember enforces that tasks are only ever delegated to
// members of their project.
func (s *TaskService) ensureAssigneeMember(projectID, userID uint64) error {
	if err := s.ensureProjectMember(projectID, userID); err != nil {
		if errors.Is(err, ErrNotProjectMember) {
			return ErrAssigneeNotMember
		}
		return err
	}
	return nil
}

func (s *TaskService) ensureProjectMember(projectID, userID uint64) error {
	_, err := s.projectRepo.FindMember(projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotProjectMember
		}
		return fmt.Errorf("failed to verify project membership: %w", err)
	}
	return nil
}

func (s *TaskService) projectAndRole(projectID, userID uint64) (*models.Project, models.ProjectRole, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.RoleNone, ErrProjectNotFound
		}
		return nil, models.RoleNone, fmt.Errorf("failed to find project: %w", err)
	}

	role := models.RoleNone
	member, err := s.projectRepo.FindMember(projectID, userID)
	if err == nil {
		role = member.Role
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.RoleNone, fmt.Errorf("failed to find project member: %w", err)
	}

	return project, role, nil
}

func (s *TaskService) taskProjectAndRole(taskID, userID uint64) (*models.Task, *models.Project, models.ProjectRole, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, models.RoleNone, ErrTaskNotFound
		}
		return nil, nil, models.RoleNone, fmt.Errorf("failed to find task: %w", err)
	}

	project, role, err := s.projectAndRole(task.ProjectID, userID)
	if err != nil {
		return nil, nil, models.RoleNone, err
	}

	// An assignee who is somehow not a member anymore must not pass the
	// membership gate silently.
	if role == models.RoleNone && project.OwnerID != userID {
		return nil, nil, models.RoleNone, ErrNotProjectMember
	}

	return task, project, role, nil
}
