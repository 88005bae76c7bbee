package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/checkmate-app/checkmate-api/internal/constants"
	"github.com/checkmate-app/checkmate-api/internal/database"
	"github.com/checkmate-app/checkmate-api/internal/dto"
	"github.com/checkmate-app/checkmate-api/internal/middleware"
	"github.com/checkmate-app/checkmate-api/internal/models"
	"github.com/checkmate-app/checkmate-api/internal/repository"
	"github.com/checkmate-app/checkmate-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ProjectHandlerTestSuite defines the test suite for ProjectHandler
type ProjectHandlerTestSuite struct {
	suite.Suite
	db             *gorm.DB
	handler        *ProjectHandler
	projectService *services.ProjectService
	taskService    *services.TaskService
}

// SetupTest runs before each test
func (suite *ProjectHandlerTestSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Task{},
	)
	suite.Require().NoError(err)

	database.SetDB(suite.db)

	userRepo := repository.NewUserRepository(suite.db)
	projectRepo := repository.NewProjectRepository(suite.db)
	taskRepo := repository.NewTaskRepository(suite.db)

	suite.projectService = services.NewProjectService(projectRepo, userRepo)
	suite.taskService = services.NewTaskService(taskRepo, projectRepo)
	suite.handler = NewProjectHandler(suite.projectService, suite.taskService)

	gin.SetMode(gin.TestMode)
}

// TearDownTest runs after each test
func (suite *ProjectHandlerTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *ProjectHandlerTestSuite) createTestUser(username string) *models.User {
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashedpassword",
	}
	suite.db.Create(user)
	return user
}

func (suite *ProjectHandlerTestSuite) createTestProject(name string, ownerID uint64) *models.Project {
	project, err := suite.projectService.CreateProject(services.CreateProjectInput{
		Name:    name,
		OwnerID: ownerID,
	})
	suite.Require().NoError(err)
	return project
}

func (suite *ProjectHandlerTestSuite) createAuthContext(method, url string, body []byte, userID uint64) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(constants.ContextKeyUserID, userID)

	return c, w
}

// Simulates RequireProjectAccess having loaded the project for the actor.
func (suite *ProjectHandlerTestSuite) setProjectContext(c *gin.Context, project models.Project, role models.ProjectRole) {
	c.Set(middleware.ContextKeyProject, project)
	c.Set(middleware.ContextKeyProjectRole, role)
}

func (suite *ProjectHandlerTestSuite) TestCreateProject_Success() {
	owner := suite.createTestUser("owner")

	body, _ := json.Marshal(map[string]string{
		"name":        "Website Redesign",
		"description": "Q4 marketing site refresh",
	})

	c, w := suite.createAuthContext("POST", "/api/projects", body, owner.ID)

	suite.handler.CreateProject(c)

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response dto.ProjectDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), "Website Redesign", response.Name)
	assert.Equal(suite.T(), models.ProjectStatusActive, response.Status)
	assert.Equal(suite.T(), owner.ID, response.OwnerID)

	// The creator must hold the owner membership
	var member models.ProjectMember
	err := suite.db.Where("project_id = ? AND user_id = ?", response.ID, owner.ID).First(&member).Error
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.RoleOwner, member.Role)
}

func (suite *ProjectHandlerTestSuite) TestCreateProject_MissingName() {
	owner := suite.createTestUser("owner")

	body, _ := json.Marshal(map[string]string{"description": "no name"})

	c, w := suite.createAuthContext("POST", "/api/projects", body, owner.ID)

	suite.handler.CreateProject(c)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *ProjectHandlerTestSuite) TestListProjects_OnlyMemberProjects() {
	owner := suite.createTestUser("owner")
	outsider := suite.createTestUser("outsider")

	suite.createTestProject("Mine", owner.ID)
	suite.createTestProject("Theirs", outsider.ID)

	c, w := suite.createAuthContext("GET", "/api/projects", nil, owner.ID)

	suite.handler.ListProjects(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string][]dto.ProjectWithRoleDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	projects := response["projects"]
	suite.Require().Len(projects, 1)
	assert.Equal(suite.T(), "Mine", projects[0].Name)
	assert.Equal(suite.T(), models.RoleOwner, projects[0].Role)
}

func (suite *ProjectHandlerTestSuite) TestGetProject_WithMembers() {
	owner := suite.createTestUser("owner")
	member := suite.createTestUser("member")
	project := suite.createTestProject("Shared", owner.ID)

	_, err := suite.projectService.InviteMember(project.ID, owner.ID, member.Username)
	suite.Require().NoError(err)

	c, w := suite.createAuthContext("GET", fmt.Sprintf("/api/projects/%d", project.ID), nil, member.ID)
	suite.setProjectContext(c, *project, models.RoleMember)

	suite.handler.GetProject(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response dto.ProjectDetailDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), "Shared", response.Name)
	assert.Equal(suite.T(), models.RoleMember, response.YourRole)
	assert.Len(suite.T(), response.Members, 2)
}

func (suite *ProjectHandlerTestSuite) TestUpdateProject_NonOwnerForbidden() {
	owner := suite.createTestUser("owner")
	member := suite.createTestUser("member")
	project := suite.createTestProject("Locked", owner.ID)

	_, err := suite.projectService.InviteMember(project.ID, owner.ID, member.Username)
	suite.Require().NoError(err)

	body, _ := json.Marshal(map[string]string{"name": "Hijacked"})

	c, w := suite.createAuthContext("PUT", fmt.Sprintf("/api/projects/%d", project.ID), body, member.ID)
	suite.setProjectContext(c, *project, models.RoleMember)

	suite.handler.UpdateProject(c)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func (suite *ProjectHandlerTestSuite) TestUpdateProject_StatusTransition() {
	owner := suite.createTestUser("owner")
	project := suite.createTestProject("Finishing", owner.ID)

	body, _ := json.Marshal(map[string]string{"status": string(models.ProjectStatusCompleted)})

	c, w := suite.createAuthContext("PUT", fmt.Sprintf("/api/projects/%d", project.ID), body, owner.ID)
	suite.setProjectContext(c, *project, models.RoleOwner)

	suite.handler.UpdateProject(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response dto.ProjectDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), models.ProjectStatusCompleted, response.Status)
}

func (suite *ProjectHandlerTestSuite) TestUpdateProject_InvalidStatus() {
	owner := suite.createTestUser("owner")
	project := suite.createTestProject("Finishing", owner.ID)

	body, _ := json.Marshal(map[string]string{"status": "OnHold"})

	c, w := suite.createAuthContext("PUT", fmt.Sprintf("/api/projects/%d", project.ID), body, owner.ID)
	suite.setProjectContext(c, *project, models.RoleOwner)

	suite.handler.UpdateProject(c)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *ProjectHandlerTestSuite) TestDeleteProject_CascadesTasksAndMembers() {
	owner := suite.createTestUser("owner")
	member := suite.createTestUser("member")
	project := suite.createTestProject("Doomed", owner.ID)

	_, err := suite.projectService.InviteMember(project.ID, owner.ID, member.Username)
	suite.Require().NoError(err)

	task, err := suite.taskService.CreateTask(services.CreateTaskInput{
		ProjectID: project.ID,
		ActorID:   owner.ID,
		Title:     "Orphan candidate",
	})
	suite.Require().NoError(err)

	c, w := suite.createAuthContext("DELETE", fmt.Sprintf("/api/projects/%d", project.ID), nil, owner.ID)
	suite.setProjectContext(c, *project, models.RoleOwner)

	suite.handler.DeleteProject(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	// Project, its tasks and its memberships must all be gone
	var gone models.Project
	assert.Error(suite.T(), suite.db.First(&gone, project.ID).Error)

	var goneTask models.Task
	assert.Error(suite.T(), suite.db.First(&goneTask, task.ID).Error)

	var memberCount int64
	suite.db.Model(&models.ProjectMember{}).Where("project_id = ?", project.ID).Count(&memberCount)
	assert.Zero(suite.T(), memberCount)
}

func (suite *ProjectHandlerTestSuite) TestDeleteProject_NonOwnerForbidden() {
	owner := suite.createTestUser("owner")
	member := suite.createTestUser("member")
	project := suite.createTestProject("Protected", owner.ID)

	_, err := suite.projectService.InviteMember(project.ID, owner.ID, member.Username)
	suite.Require().NoError(err)

	c, w := suite.createAuthContext("DELETE", fmt.Sprintf("/api/projects/%d", project.ID), nil, member.ID)
	suite.setProjectContext(c, *project, models.RoleMember)

	suite.handler.DeleteProject(c)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	var still models.Project
	assert.NoError(suite.T(), suite.db.First(&still, project.ID).Error)
}

func (suite *ProjectHandlerTestSuite) TestInviteMember_ByEmail() {
	owner := suite.createTestUser("owner")
	invitee := suite.createTestUser("invitee")
	project := suite.createTestProject("Team", owner.ID)

	body, _ := json.Marshal(map[string]string{"identifier": invitee.Email})

	c, w := suite.createAuthContext("POST", fmt.Sprintf("/api/projects/%d/members", project.ID), body, owner.ID)
	suite.setProjectContext(c, *project, models.RoleOwner)

	suite.handler.InviteMember(c)

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response dto.ProjectMemberDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), models.RoleMember, response.Role)
	assert.Equal(suite.T(), invitee.Username, response.User.Username)
}

func (suite *ProjectHandlerTestSuite) TestInviteMember_UnknownUser() {
	owner := suite.createTestUser("owner")
	project := suite.createTestProject("Team", owner.ID)

	body, _ := json.Marshal(map[string]string{"identifier": "ghost@example.com"})

	c, w := suite.createAuthContext("POST", fmt.Sprintf("/api/projects/%d/members", project.ID), body, owner.ID)
	suite.setProjectContext(c, *project, models.RoleOwner)

	suite.handler.InviteMember(c)

	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *ProjectHandlerTestSuite) TestInviteMember_AlreadyMember() {
	owner := suite.createTestUser("owner")
	invitee := suite.createTestUser("invitee")
	project := suite.createTestProject("Team", owner.ID)

	_, err := suite.projectService.InviteMember(project.ID, owner.ID, invitee.Username)
	suite.Require().NoError(err)

	body, _ := json.Marshal(map[string]string{"identifier": invitee.Username})

	c, w := suite.createAuthContext("POST", fmt.Sprintf("/api/projects/%d/members", project.ID), body, owner.ID)
	suite.setProjectContext(c, *project, models.RoleOwner)

	suite.handler.InviteMember(c)

	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	// The membership ledger must not contain a duplicate row
	var count int64
	suite.db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", project.ID, invitee.ID).
		Count(&count)
	assert.Equal(suite.T(), int64(1), count)
}

func (suite *ProjectHandlerTestSuite) TestInviteMember_NonOwnerForbidden() {
	owner := suite.createTestUser("owner")
	member := suite.createTestUser("member")
	other := suite.createTestUser("other")
	project := suite.createTestProject("Team", owner.ID)

	_, err := suite.projectService.InviteMember(project.ID, owner.ID, member.Username)
	suite.Require().NoError(err)

	body, _ := json.Marshal(map[string]string{"identifier": other.Username})

	c, w := suite.createAuthContext("POST", fmt.Sprintf("/api/projects/%d/members", project.ID), body, member.ID)
	suite.setProjectContext(c, *project, models.RoleMember)

	suite.handler.InviteMember(c)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func (suite *ProjectHandlerTestSuite) TestRemoveMember_ClearsAssignments() {
	owner := suite.createTestUser("owner")
	member := suite.createTestUser("member")
	project := suite.createTestProject("Team", owner.ID)

	_, err := suite.projectService.InviteMember(project.ID, owner.ID, member.Username)
	suite.Require().NoError(err)

	task, err := suite.taskService.CreateTask(services.CreateTaskInput{
		ProjectID:  project.ID,
		ActorID:    owner.ID,
		Title:      "Assigned work",
		AssigneeID: &member.ID,
	})
	suite.Require().NoError(err)

	c, w := suite.createAuthContext("DELETE", fmt.Sprintf("/api/projects/%d/members/%d", project.ID, member.ID), nil, owner.ID)
	suite.setProjectContext(c, *project, models.RoleOwner)
	c.Params = append(c.Params, gin.Param{Key: "user_id", Value: fmt.Sprintf("%d", member.ID)})

	suite.handler.RemoveMember(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	// The removed member's assignment must be cleared, not left dangling
	var reloaded models.Task
	suite.Require().NoError(suite.db.First(&reloaded, task.ID).Error)
	assert.Nil(suite.T(), reloaded.AssigneeID)

	var count int64
	suite.db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", project.ID, member.ID).
		Count(&count)
	assert.Zero(suite.T(), count)
}

func (suite *ProjectHandlerTestSuite) TestRemoveMember_OwnerCannotBeRemoved() {
	owner := suite.createTestUser("owner")
	project := suite.createTestProject("Team", owner.ID)

	c, w := suite.createAuthContext("DELETE", fmt.Sprintf("/api/projects/%d/members/%d", project.ID, owner.ID), nil, owner.ID)
	suite.setProjectContext(c, *project, models.RoleOwner)
	c.Params = append(c.Params, gin.Param{Key: "user_id", Value: fmt.Sprintf("%d", owner.ID)})

	suite.handler.RemoveMember(c)

	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	var count int64
	suite.db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", project.ID, owner.ID).
		Count(&count)
	assert.Equal(suite.T(), int64(1), count)
}

func (suite *ProjectHandlerTestSuite) TestRemoveMember_NotAMember() {
	owner := suite.createTestUser("owner")
	stranger := suite.createTestUser("stranger")
	project := suite.createTestProject("Team", owner.ID)

	c, w := suite.createAuthContext("DELETE", fmt.Sprintf("/api/projects/%d/members/%d", project.ID, stranger.ID), nil, owner.ID)
	suite.setProjectContext(c, *project, models.RoleOwner)
	c.Params = append(c.Params, gin.Param{Key: "user_id", Value: fmt.Sprintf("%d", stranger.ID)})

	suite.handler.RemoveMember(c)

	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *ProjectHandlerTestSuite) TestGetBoard_PartitionsByStatus() {
	owner := suite.createTestUser("owner")
	project := suite.createTestProject("Board", owner.ID)

	statuses := []models.TaskStatus{
		models.TaskStatusTodo,
		models.TaskStatusInProgress,
		models.TaskStatusInProgress,
		models.TaskStatusDone,
	}
	for i, status := range statuses {
		_, err := suite.taskService.CreateTask(services.CreateTaskInput{
			ProjectID: project.ID,
			ActorID:   owner.ID,
			Title:     fmt.Sprintf("Task %d", i+1),
			Status:    status,
		})
		suite.Require().NoError(err)
	}

	c, w := suite.createAuthContext("GET", fmt.Sprintf("/api/projects/%d/board", project.ID), nil, owner.ID)
	suite.setProjectContext(c, *project, models.RoleOwner)

	suite.handler.GetBoard(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response dto.BoardDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(suite.T(), response.Todo, 1)
	assert.Len(suite.T(), response.InProgress, 2)
	assert.Len(suite.T(), response.Done, 1)
}

func (suite *ProjectHandlerTestSuite) TestGetBoard_DueDateSortKeepsNilsLast() {
	owner := suite.createTestUser("owner")
	project := suite.createTestProject("Board", owner.ID)

	soon := time.Now().Add(24 * time.Hour)
	later := time.Now().Add(72 * time.Hour)

	inputs := []services.CreateTaskInput{
		{ProjectID: project.ID, ActorID: owner.ID, Title: "No deadline"},
		{ProjectID: project.ID, ActorID: owner.ID, Title: "Later", DueDate: &later},
		{ProjectID: project.ID, ActorID: owner.ID, Title: "Soon", DueDate: &soon},
	}
	for _, input := range inputs {
		_, err := suite.taskService.CreateTask(input)
		suite.Require().NoError(err)
	}

	c, w := suite.createAuthContext("GET", fmt.Sprintf("/api/projects/%d/board", project.ID), nil, owner.ID)
	c.Request.URL.RawQuery = "sort=due_date&direction=asc"
	suite.setProjectContext(c, *project, models.RoleOwner)

	suite.handler.GetBoard(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response dto.BoardDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Require().Len(response.Todo, 3)
	assert.Equal(suite.T(), "Soon", response.Todo[0].Title)
	assert.Equal(suite.T(), "Later", response.Todo[1].Title)
	assert.Equal(suite.T(), "No deadline", response.Todo[2].Title)
}

// TestSuite runs the test suite
func TestProjectHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ProjectHandlerTestSuite))
}
