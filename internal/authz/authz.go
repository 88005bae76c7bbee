// Package authz decides whether an actor may perform an action on a
// project or on one of its tasks. Decisions are pure functions over
// already-loaded state: callers resolve the actor's membership role and
// the entities up front, so this package never touches storage.
package authz

import (
	"github.com/checkmate-app/checkmate-api/internal/models"
)

type Action string

const (
	ActionView          Action = "view"
	ActionEdit          Action = "edit"
	ActionDelete        Action = "delete"
	ActionAddTask       Action = "add_task"
	ActionEditTask      Action = "edit_task"
	ActionDeleteTask    Action = "delete_task"
	ActionManageMembers Action = "manage_members"
	ActionChangeStatus  Action = "change_status"
)

// Can reports whether the actor may perform action on the project, or on
// task for the task-scoped actions. role is the actor's membership role in
// the project (RoleNone when absent). task may be nil for project-scoped
// actions and must be a task of the given project otherwise.
func Can(actorID uint64, project *models.Project, role models.ProjectRole, task *models.Task, action Action) bool {
	if project == nil {
		return false
	}

	owner := role == models.RoleOwner || project.OwnerID == actorID
	member := owner || role == models.RoleMember

	switch action {
	case ActionView, ActionAddTask:
		return member
	case ActionEdit, ActionDelete, ActionManageMembers, ActionChangeStatus:
		return owner
	case ActionEditTask, ActionDeleteTask:
		if task == nil || task.ProjectID != project.ID {
			return false
		}
		return owner || (task.AssigneeID != nil && *task.AssigneeID == actorID)
	}

	return false
}
