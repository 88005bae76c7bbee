package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/checkmate-app/checkmate-api/internal/board"
	"github.com/checkmate-app/checkmate-api/internal/dto"
	apierrors "github.com/checkmate-app/checkmate-api/internal/errors"
	"github.com/checkmate-app/checkmate-api/internal/middleware"
	"github.com/checkmate-app/checkmate-api/internal/models"
	"github.com/checkmate-app/checkmate-api/internal/services"
	"github.com/gin-gonic/gin"
)

// ProjectHandler coordinates project and membership HTTP handlers.
type ProjectHandler struct {
	projectService *services.ProjectService
	taskService    *services.TaskService
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService *services.ProjectService, taskService *services.TaskService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		taskService:    taskService,
	}
}

// CreateProject creates a project owned by the authenticated user.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type CreateProjectRequest struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, err := h.projectService.CreateProject(services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectDTO(*project))
}

// ListProjects returns the authenticated user's projects with their roles.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	memberships, err := h.projectService.ListProjectsForUser(userID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	projects := make([]dto.ProjectWithRoleDTO, len(memberships))
	for i, membership := range memberships {
		projects[i] = dto.ToProjectWithRoleDTO(membership)
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
	})
}

// GetProject returns the project with its member list. Access is enforced
// by RequireProjectAccess.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	role, ok := middleware.GetProjectRole(c)
	if !ok {
		apierrors.InternalError(c, "Project role not found in context")
		return
	}

	loaded, members, err := h.projectService.GetProjectWithMembers(project.ID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDetailDTO(*loaded, members, role))
}

// UpdateProject changes project fields; the service rejects non-owners.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
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

	type UpdateProjectRequest struct {
		Name        *string               `json:"name"`
		Description *string               `json:"description"`
		Status      *models.ProjectStatus `json:"status"`
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.projectService.UpdateProject(userID, project.ID, services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(*updated))
}

// DeleteProject deletes the project with its tasks and memberships.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
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

	if err := h.projectService.DeleteProject(userID, project.ID); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Project and all its tasks deleted successfully",
	})
}

// GetBoard returns the project's tasks partitioned into the three kanban
// columns, ordered by the optional sort query parameters.
func (h *ProjectHandler) GetBoard(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	sort := board.ParseSort(c.Query("sort"), c.Query("direction"))

	b, err := h.taskService.ProjectBoard(project.ID, sort)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToBoardDTO(b))
}

// InviteMember adds a user to the project by username or email.
func (h *ProjectHandler) InviteMember(c *gin.Context) {
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

	type InviteMemberRequest struct {
		Identifier string `json:"identifier" binding:"required"`
	}

	var req InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.projectService.InviteMember(project.ID, userID, req.Identifier)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectMemberDTO(*member))
}

// RemoveMember removes a member from the project.
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
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

	targetID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	if err := h.projectService.RemoveMember(project.ID, userID, targetID); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member removed successfully",
	})
}

func respondProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrProjectNameRequired),
		errors.Is(err, services.ErrInvalidProjectStatus):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrProjectAccessDenied):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrInvitedUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrAlreadyMember):
		apierrors.Conflict(c, apierrors.ErrCodeAlreadyMember, err.Error())
	case errors.Is(err, services.ErrCannotRemoveOwner):
		apierrors.Conflict(c, apierrors.ErrCodeCannotRemoveOwner, err.Error())
	default:
		apierrors.InternalError(c, "")
	}
}
