package model

import (
	"time"

	"gorm.io/gorm"
)

// Chapter is a document unit inside a capstone phase. (ProjectID,
// CapstonePhase, ChapterNumber) is unique; chapters are never deleted.
// Status is advanced by version uploads and adviser reviews only.
type Chapter struct {
	gorm.Model
	ProjectID     uint          `gorm:"uniqueIndex:idx_project_phase_number;not null"`
	CapstonePhase int           `gorm:"uniqueIndex:idx_project_phase_number;not null;comment:capstone phase (1-3)"`
	ChapterNumber int           `gorm:"uniqueIndex:idx_project_phase_number;not null;comment:chapter number within phase"`
	Title         string        `gorm:"type:varchar(256);not null;comment:chapter title"`
	Status        ChapterStatus `gorm:"type:varchar(32);not null;comment:chapter status"`

	Versions []ChapterVersion `gorm:"foreignKey:ChapterID"`
	Feedback []FeedbackEntry  `gorm:"foreignKey:ChapterID"`
}

// ChapterVersion is one uploaded revision. Versions are append-only and
// immutable; the latest version is the one with the highest Seq.
type ChapterVersion struct {
	gorm.Model
	ChapterID   uint      `gorm:"uniqueIndex:idx_chapter_seq;not null"`
	Seq         int       `gorm:"uniqueIndex:idx_chapter_seq;not null;comment:1-based upload position"`
	FileID      string    `gorm:"type:varchar(128);not null;comment:opaque Drive file ID"`
	WebViewLink string    `gorm:"type:varchar(512);comment:opaque Drive view link"`
	UploadedAt  time.Time `gorm:"not null;comment:upload time"`
}

// FeedbackEntry is one adviser review decision with its comment.
// Entries are append-only, never edited or removed.
type FeedbackEntry struct {
	gorm.Model
	ChapterID    uint           `gorm:"uniqueIndex:idx_chapter_feedback_seq;not null"`
	Seq          int            `gorm:"uniqueIndex:idx_chapter_feedback_seq;not null;comment:1-based position within chapter"`
	ReviewerID   uint           `gorm:"not null;comment:reviewing user ID"`
	ReviewerName string         `gorm:"type:varchar(64);not null;comment:reviewer display name at review time"`
	Decision     ReviewDecision `gorm:"type:varchar(32);not null;comment:review decision"`
	Comment      string         `gorm:"type:text;not null;comment:review comment"`
}

// LatestVersion returns the highest-Seq version of a preloaded chapter,
// or nil when no version has been uploaded yet.
func (ch *Chapter) LatestVersion() *ChapterVersion {
	var latest *ChapterVersion
	for i := range ch.Versions {
		if latest == nil || ch.Versions[i].Seq > latest.Seq {
			latest = &ch.Versions[i]
		}
	}
	return latest
}
