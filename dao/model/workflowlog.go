package model

import (
	"gorm.io/gorm"
)

// WorkflowLog is the append-only record of accepted project status
// transitions. It is authoritative history, not derivable from the
// current status, and is queried in chronological order.
type WorkflowLog struct {
	gorm.Model
	ProjectID  uint          `gorm:"index;not null"`
	FromStatus ProjectStatus `gorm:"type:varchar(32);not null"`
	ToStatus   ProjectStatus `gorm:"type:varchar(32);not null"`
	ActorID    uint          `gorm:"not null;comment:user who performed the transition"`
	RequestID  string        `gorm:"type:varchar(64);comment:gateway request correlation ID"`
}
