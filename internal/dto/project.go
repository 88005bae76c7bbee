package dto

import (
	"time"

	"github.com/checkmate-app/checkmate-api/internal/models"
)

// ProjectDTO represents a project in API responses
type ProjectDTO struct {
	ID          uint64               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      models.ProjectStatus `json:"status"`
	OwnerID     uint64               `json:"owner_id"`
	CreatedAt   time.Time            `json:"created_at"`
}

// ProjectWithRoleDTO represents a project with the requesting user's role
type ProjectWithRoleDTO struct {
	ProjectDTO
	Role models.ProjectRole `json:"role"`
}

// ProjectMemberDTO represents a member of a project
type ProjectMemberDTO struct {
	User     UserDTO            `json:"user"`
	Role     models.ProjectRole `json:"role"`
	JoinedAt time.Time          `json:"joined_at"`
}

// ProjectDetailDTO represents a project together with its member list
type ProjectDetailDTO struct {
	ProjectDTO
	Members  []ProjectMemberDTO `json:"members"`
	YourRole models.ProjectRole `json:"your_role"`
}

// ToProjectDTO converts a Project model to ProjectDTO
func ToProjectDTO(project models.Project) ProjectDTO {
	return ProjectDTO{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Status:      project.Status,
		OwnerID:     project.OwnerID,
		CreatedAt:   project.CreatedAt,
	}
}

// ToProjectWithRoleDTO converts a membership to a project DTO with role
func ToProjectWithRoleDTO(member models.ProjectMember) ProjectWithRoleDTO {
	return ProjectWithRoleDTO{
		ProjectDTO: ToProjectDTO(member.Project),
		Role:       member.Role,
	}
}

// ToProjectMemberDTO converts a membership to a member DTO
func ToProjectMemberDTO(member models.ProjectMember) ProjectMemberDTO {
	return ProjectMemberDTO{
		User:     ToUserDTO(member.User),
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	}
}

// ToProjectDetailDTO converts a project with members to a detail DTO
func ToProjectDetailDTO(project models.Project, members []models.ProjectMember, yourRole models.ProjectRole) ProjectDetailDTO {
	memberDTOs := make([]ProjectMemberDTO, len(members))
	for i, member := range members {
		memberDTOs[i] = ToProjectMemberDTO(member)
	}

	return ProjectDetailDTO{
		ProjectDTO: ToProjectDTO(project),
		Members:    memberDTOs,
		YourRole:   yourRole,
	}
}
