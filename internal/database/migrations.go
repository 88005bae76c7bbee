package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// AddIndexes creates the secondary indexes the hot queries rely on. Safe to
// run repeatedly; existing indexes are skipped.
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		name    string
		columns string
	}{
		// Task lookups for board building and cross-project filtering
		{"tasks", "idx_tasks_project_id", "project_id"},
		{"tasks", "idx_tasks_assignee_id", "assignee_id"},
		{"tasks", "idx_tasks_status", "status"},
		{"tasks", "idx_tasks_due_date", "due_date"},
		{"tasks", "idx_tasks_created_at", "created_at"},

		// Membership lookups drive every access decision
		{"project_members", "idx_project_members_project_id", "project_id"},
		{"project_members", "idx_project_members_user_id", "user_id"},

		{"projects", "idx_projects_owner_id", "owner_id"},
	}

	for _, idx := range indexes {
		var count int64
		err := db.Raw(`
			SELECT COUNT(*)
			FROM pg_indexes
			WHERE tablename = ? AND indexname = ?
		`, idx.table, idx.name).Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", idx.name, err)
		}

		if count > 0 {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.Printf("Created index %s on %s(%s)", idx.name, idx.table, idx.columns)
	}

	return nil
}
