package middleware

import (
	"errors"
	"strconv"

	"github.com/checkmate-app/checkmate-api/internal/authz"
	"github.com/checkmate-app/checkmate-api/internal/database"
	apierrors "github.com/checkmate-app/checkmate-api/internal/errors"
	"github.com/checkmate-app/checkmate-api/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RequireTaskAccess loads the task from the :id route parameter and rejects
// actors who may not view the task's project. The task, its project and
// the actor's role are stored in the gin context.
func RequireTaskAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid task ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var task models.Task
		if err := database.GetDB().
			Preload("Assignee").
			First(&task, taskID).Error; err != nil {
			apierrors.NotFound(c, "Task not found")
			c.Abort()
			return
		}

		var project models.Project
		if err := database.GetDB().First(&project, task.ProjectID).Error; err != nil {
			apierrors.NotFound(c, "Task not found")
			c.Abort()
			return
		}

		role := models.RoleNone
		var member models.ProjectMember
		err = database.GetDB().
			Where("project_id = ? AND user_id = ?", task.ProjectID, userID).
			First(&member).Error
		if err == nil {
			role = member.Role
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			apierrors.InternalError(c, "")
			c.Abort()
			return
		}

		if !authz.Can(userID, &project, role, nil, authz.ActionView) {
			apierrors.Forbidden(c, "You are not a member of this task's project")
			c.Abort()
			return
		}

		c.Set(ContextKeyTask, task)
		c.Set(ContextKeyProject, project)
		c.Set(ContextKeyProjectRole, role)
		c.Next()
	}
}

// GetTask retrieves the task loaded by RequireTaskAccess.
func GetTask(c *gin.Context) (models.Task, bool) {
	value, exists := c.Get(ContextKeyTask)
	if !exists {
		return models.Task{}, false
	}
	task, ok := value.(models.Task)
	return task, ok
}
