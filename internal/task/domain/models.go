package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

func ValidPriority(raw string) bool {
	switch raw {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

func ValidStatus(raw string) bool {
	switch raw {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Task is ordered within its scope: subtasks under their parent, top-level
// tasks within their category. Uncategorized top-level tasks carry no
// meaningful position.
type Task struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	WorkspaceID snowflake.ID    `gorm:"index;not null"`
	CategoryID  *snowflake.ID   `gorm:"index"`
	ParentID    *snowflake.ID   `gorm:"index"`
	Title       string          `gorm:"not null"`
	Description string          ``
	Priority    string          `gorm:"not null;default:medium"`
	Status      string          `gorm:"not null;default:todo"`
	DueDate     *datatypes.Date ``
	Position    int             `gorm:"not null;default:0"`
	CompletedAt *time.Time      ``
	CreatedAt   time.Time       ``
	UpdatedAt   time.Time       ``
}

func (Task) TableName() string {
	return "tasks"
}

type TaskAssignee struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TaskID    snowflake.ID `gorm:"uniqueIndex:ux_task_user;not null"`
	UserID    snowflake.ID `gorm:"uniqueIndex:ux_task_user;not null"`
	CreatedAt time.Time    ``
}

func (TaskAssignee) TableName() string {
	return "task_assignees"
}
