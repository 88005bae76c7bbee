package authz

import (
	"testing"

	"github.com/checkmate-app/checkmate-api/internal/models"
	"github.com/stretchr/testify/assert"
)

const (
	ownerID    uint64 = 1
	memberID   uint64 = 2
	assigneeID uint64 = 3
	outsiderID uint64 = 4
)

func testProject() *models.Project {
	return &models.Project{ID: 10, Name: "Website Relaunch", OwnerID: ownerID}
}

func assignedTask(userID uint64) *models.Task {
	return &models.Task{ID: 100, ProjectID: 10, AssigneeID: &userID}
}

func TestCan_ProjectView(t *testing.T) {
	project := testProject()

	assert.True(t, Can(ownerID, project, models.RoleOwner, nil, ActionView))
	assert.True(t, Can(memberID, project, models.RoleMember, nil, ActionView))
	assert.False(t, Can(outsiderID, project, models.RoleNone, nil, ActionView))
}

func TestCan_ProjectOwnerOnlyActions(t *testing.T) {
	project := testProject()

	for _, action := range []Action{ActionEdit, ActionDelete, ActionManageMembers, ActionChangeStatus} {
		assert.True(t, Can(ownerID, project, models.RoleOwner, nil, action), "owner should be allowed %s", action)
		assert.False(t, Can(memberID, project, models.RoleMember, nil, action), "member should be denied %s", action)
		assert.False(t, Can(outsiderID, project, models.RoleNone, nil, action), "outsider should be denied %s", action)
	}
}

func TestCan_AddTaskAllowsAnyMember(t *testing.T) {
	project := testProject()

	assert.True(t, Can(ownerID, project, models.RoleOwner, nil, ActionAddTask))
	assert.True(t, Can(memberID, project, models.RoleMember, nil, ActionAddTask))
	assert.False(t, Can(outsiderID, project, models.RoleNone, nil, ActionAddTask))
}

func TestCan_TaskActionsOwnerOrAssignee(t *testing.T) {
	project := testProject()
	task := assignedTask(assigneeID)

	for _, action := range []Action{ActionEditTask, ActionDeleteTask} {
		assert.True(t, Can(ownerID, project, models.RoleOwner, task, action))
		assert.True(t, Can(assigneeID, project, models.RoleMember, task, action))
		assert.False(t, Can(memberID, project, models.RoleMember, task, action),
			"non-assignee member should be denied %s", action)
	}
}

func TestCan_TaskActionsUnassignedTask(t *testing.T) {
	project := testProject()
	task := &models.Task{ID: 100, ProjectID: 10}

	assert.True(t, Can(ownerID, project, models.RoleOwner, task, ActionEditTask))
	assert.False(t, Can(memberID, project, models.RoleMember, task, ActionEditTask))
}

func TestCan_TaskFromAnotherProject(t *testing.T) {
	project := testProject()
	foreign := &models.Task{ID: 200, ProjectID: 99, AssigneeID: &[]uint64{ownerID}[0]}

	assert.False(t, Can(ownerID, project, models.RoleOwner, foreign, ActionEditTask))
}

func TestCan_NilInputs(t *testing.T) {
	assert.False(t, Can(ownerID, nil, models.RoleOwner, nil, ActionView))
	assert.False(t, Can(ownerID, testProject(), models.RoleOwner, nil, ActionEditTask))
}

// The owner reference on the project counts even if the membership row was
// not loaded alongside it.
func TestCan_OwnerReferenceWithoutRole(t *testing.T) {
	project := testProject()

	assert.True(t, Can(ownerID, project, models.RoleNone, nil, ActionDelete))
}
