package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/checkmate-app/checkmate-api/internal/authz"
	"github.com/checkmate-app/checkmate-api/internal/models"
	"github.com/checkmate-app/checkmate-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrProjectNameRequired  = errors.New("project name cannot be empty")
	ErrInvalidProjectStatus = errors.New("invalid project status")
	ErrProjectAccessDenied  = errors.New("user is not allowed to perform this action on the project")
	ErrAlreadyMember        = errors.New("user is already a member of this project")
	ErrCannotRemoveOwner    = errors.New("the project owner cannot be removed")
	ErrMemberNotFound       = errors.New("project member not found")
	ErrInvitedUserNotFound  = errors.New("no user with that username or email exists")
)

// ProjectService provides business logic for projects and their membership
// ledger.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, userRepo repository.UserRepository) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		userRepo:    userRepo,
	}
}

// CreateProjectInput represents parameters to create a new project.
type CreateProjectInput struct {
	Name        string
	Description string
	OwnerID     uint64
}

// CreateProject creates a new project; the creator becomes its owner and
// receives the sole owner membership in the same transaction.
func (s *ProjectService) CreateProject(input CreateProjectInput) (*models.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrProjectNameRequired
	}

	project := &models.Project{
		Name:        input.Name,
		Description: input.Description,
		Status:      models.ProjectStatusActive,
		OwnerID:     input.OwnerID,
	}

	owner := &models.ProjectMember{
		JoinedAt: time.Now(),
	}

	if err := s.projectRepo.CreateWithOwner(project, owner); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

// ListProjectsForUser returns the projects the user belongs to, with roles.
func (s *ProjectService) ListProjectsForUser(userID uint64) ([]models.ProjectMember, error) {
	memberships, err := s.projectRepo.ListMembershipsByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return memberships, nil
}

// GetProjectWithMembers returns a project and all of its members.
func (s *ProjectService) GetProjectWithMembers(projectID uint64) (*models.Project, []models.ProjectMember, error) {
	project, err := s.findProject(projectID)
	if err != nil {
		return nil, nil, err
	}

	members, err := s.projectRepo.ListMembers(projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list project members: %w", err)
	}

	return project, members, nil
}

// UpdateProjectInput holds the mutable project fields; nil means unchanged.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *models.ProjectStatus
}

// UpdateProject applies field changes; only the owner may edit a project.
func (s *ProjectService) UpdateProject(actorID, projectID uint64, input UpdateProjectInput) (*models.Project, error) {
	project, role, err := s.projectAndRole(projectID, actorID)
	if err != nil {
		return nil, err
	}

	if !authz.Can(actorID, project, role, nil, authz.ActionEdit) {
		return nil, ErrProjectAccessDenied
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, ErrProjectNameRequired
		}
		project.Name = *input.Name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.Status != nil {
		switch *input.Status {
		case models.ProjectStatusActive, models.ProjectStatusCompleted, models.ProjectStatusArchived:
			project.Status = *input.Status
		default:
			return nil, ErrInvalidProjectStatus
		}
	}

	if err := s.projectRepo.Update(project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return project, nil
}

// DeleteProject removes a project together with its tasks and memberships.
// Only the owner may delete.
func (s *ProjectService) DeleteProject(actorID, projectID uint64) error {
	project, role, err := s.projectAndRole(projectID, actorID)
	if err != nil {
		return err
	}

	if !authz.Can(actorID, project, role, nil, authz.ActionDelete) {
		return ErrProjectAccessDenied
	}

	if err := s.projectRepo.Delete(projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	return nil
}

// InviteMember adds the user identified by username or email as a member.
// Only the owner may invite.
func (s *ProjectService) InviteMember(projectID, actorID uint64, identifier string) (*models.ProjectMember, error) {
	project, role, err := s.projectAndRole(projectID, actorID)
	if err != nil {
		return nil, err
	}

	if !authz.Can(actorID, project, role, nil, authz.ActionManageMembers) {
		return nil, ErrProjectAccessDenied
	}

	target, err := s.userRepo.FindByUsernameOrEmail(strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitedUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if _, err := s.projectRepo.FindMember(projectID, target.ID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to verify membership: %w", err)
	}

	member := &models.ProjectMember{
		ProjectID: projectID,
		UserID:    target.ID,
		Role:      models.RoleMember,
		JoinedAt:  time.Now(),
	}

	if err := s.projectRepo.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	member.User = *target
	return member, nil
}

// RemoveMember removes a member from the project. Only the owner may
// remove, and the owner themselves can never be removed.
func (s *ProjectService) RemoveMember(projectID, actorID, targetID uint64) error {
	project, role, err := s.projectAndRole(projectID, actorID)
	if err != nil {
		return err
	}

	if !authz.Can(actorID, project, role, nil, authz.ActionManageMembers) {
		return ErrProjectAccessDenied
	}

	if targetID == project.OwnerID {
		return ErrCannotRemoveOwner
	}

	if _, err := s.projectRepo.FindMember(projectID, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to find project member: %w", err)
	}

	if err := s.projectRepo.RemoveMember(projectID, targetID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

// RoleOf returns the user's membership role in the project, or RoleNone.
func (s *ProjectService) RoleOf(projectID, userID uint64) (models.ProjectRole, error) {
	member, err := s.projectRepo.FindMember(projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoleNone, nil
		}
		return models.RoleNone, fmt.Errorf("failed to find project member: %w", err)
	}
	return member.Role, nil
}

func (s *ProjectService) findProject(projectID uint64) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

func (s *ProjectService) projectAndRole(projectID, userID uint64) (*models.Project, models.ProjectRole, error) {
	project, err := s.findProject(projectID)
	if err != nil {
		return nil, models.RoleNone, err
	}

	role, err := s.RoleOf(projectID, userID)
	if err != nil {
		return nil, models.RoleNone, err
	}

	return project, role, nil
}
