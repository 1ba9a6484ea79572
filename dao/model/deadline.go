package model

import (
	"time"

	"gorm.io/gorm"
)

// Deadline is a coordinator-managed due date for a capstone phase.
// The reminder manager mails team leaders ahead of DueAt.
type Deadline struct {
	gorm.Model
	Title         string    `gorm:"type:varchar(128);not null;comment:deadline title"`
	CapstonePhase int       `gorm:"not null;comment:capstone phase the deadline applies to"`
	DueAt         time.Time `gorm:"not null;comment:due time"`
	Note          string    `gorm:"type:varchar(512);comment:free-form note"`
}
