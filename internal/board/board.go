// Package board turns a project's task collection into the three kanban
// columns in display order. Building a board is a pure transform: input
// tasks are never mutated and every task lands in exactly one column.
package board

import (
	"sort"

	"github.com/checkmate-app/checkmate-api/internal/models"
)

type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByDueDate   SortField = "due_date"
	SortByPriority  SortField = "priority"
)

type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// Sort describes how the tasks inside each column are ordered.
type Sort struct {
	Field     SortField
	Direction SortDirection
}

// DefaultSort orders newest tasks first.
func DefaultSort() Sort {
	return Sort{Field: SortByCreatedAt, Direction: Descending}
}

// ParseSort builds a Sort from raw query values, falling back to the
// default for anything it does not recognize.
func ParseSort(field, direction string) Sort {
	s := DefaultSort()

	switch SortField(field) {
	case SortByCreatedAt, SortByDueDate, SortByPriority:
		s.Field = SortField(field)
	}
	switch SortDirection(direction) {
	case Ascending, Descending:
		s.Direction = SortDirection(direction)
	}

	return s
}

// Board holds the three kanban columns of a project.
type Board struct {
	Todo       []models.Task
	InProgress []models.Task
	Done       []models.Task
}

// Build partitions tasks by status and orders each column by the given
// sort. The sort is stable: tasks comparing equal keep their input order.
func Build(tasks []models.Task, s Sort) Board {
	var b Board

	for _, task := range tasks {
		switch task.Status {
		case models.TaskStatusInProgress:
			b.InProgress = append(b.InProgress, task)
		case models.TaskStatusDone:
			b.Done = append(b.Done, task)
		default:
			b.Todo = append(b.Todo, task)
		}
	}

	sortTasks(b.Todo, s)
	sortTasks(b.InProgress, s)
	sortTasks(b.Done, s)

	return b
}

// priorityRank maps priorities to their sort rank; unrecognized values rank
// after Low.
func priorityRank(p models.TaskPriority) int {
	switch p {
	case models.TaskPriorityHigh:
		return 1
	case models.TaskPriorityMedium:
		return 2
	case models.TaskPriorityLow:
		return 3
	}
	return 99
}

const unrankedPriority = 99

func sortTasks(tasks []models.Task, s Sort) {
	desc := s.Direction == Descending

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := &tasks[i], &tasks[j]

		switch s.Field {
		case SortByDueDate:
			// Tasks without a due date always sort last, regardless of
			// direction.
			if (a.DueDate == nil) != (b.DueDate == nil) {
				return b.DueDate == nil
			}
			if a.DueDate == nil {
				return false
			}
			if a.DueDate.Equal(*b.DueDate) {
				return false
			}
			if desc {
				return a.DueDate.After(*b.DueDate)
			}
			return a.DueDate.Before(*b.DueDate)

		case SortByPriority:
			ra, rb := priorityRank(a.Priority), priorityRank(b.Priority)
			// Unrecognized priorities always sort last, like missing due
			// dates.
			if (ra == unrankedPriority) != (rb == unrankedPriority) {
				return rb == unrankedPriority
			}
			if ra == rb {
				return false
			}
			// Descending means most important first, i.e. lowest rank first.
			if desc {
				return ra < rb
			}
			return ra > rb

		default:
			if a.CreatedAt.Equal(b.CreatedAt) {
				return false
			}
			if desc {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}
