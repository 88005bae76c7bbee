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

// Context keys set by the access middlewares.
const (
	ContextKeyProject     = "project"
	ContextKeyProjectRole = "project_role"
	ContextKeyTask        = "task"
)

// RequireProjectAccess loads the project from the :id route parameter,
// resolves the actor's membership role and rejects anyone who may not view
// the project. The project and role are stored in the gin context.
func RequireProjectAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var project models.Project
		if err := database.GetDB().First(&project, projectID).Error; err != nil {
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		role := models.RoleNone
		var member models.ProjectMember
		err = database.GetDB().
			Where("project_id = ? AND user_id = ?", projectID, userID).
			First(&member).Error
		if err == nil {
			role = member.Role
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			apierrors.InternalError(c, "")
			c.Abort()
			return
		}

		if !authz.Can(userID, &project, role, nil, authz.ActionView) {
			apierrors.Forbidden(c, "You are not a member of this project")
			c.Abort()
			return
		}

		c.Set(ContextKeyProject, project)
		c.Set(ContextKeyProjectRole, role)
		c.Next()
	}
}

// GetProject retrieves the project loaded by RequireProjectAccess.
func GetProject(c *gin.Context) (models.Project, bool) {
	value, exists := c.Get(ContextKeyProject)
	if !exists {
		return models.Project{}, false
	}
	project, ok := value.(models.Project)
	return project, ok
}

// GetProjectRole retrieves the actor's role resolved by RequireProjectAccess.
func GetProjectRole(c *gin.Context) (models.ProjectRole, bool) {
	value, exists := c.Get(ContextKeyProjectRole)
	if !exists {
		return models.RoleNone, false
	}
	role, ok := value.(models.ProjectRole)
	return role, ok
}
