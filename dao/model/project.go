package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProposalContent is the free-form authored proposal, stored as a JSON
// column. It is not interpreted by the workflow engines.
type ProposalContent struct {
	Abstract   string   `json:"abstract"`
	Objectives []string `json:"objectives"`
	Scope      string   `json:"scope"`
}

// Capstone4Content holds the final-stage artifacts: the academic and
// journal versions of the manuscript, submission credentials, and the
// defense verdict. Both file references must be present before the
// project may move to FinalSubmitted.
type Capstone4Content struct {
	AcademicFileID      string `json:"academicFileId"`
	AcademicWebViewLink string `json:"academicWebViewLink"`
	JournalFileID       string `json:"journalFileId"`
	JournalWebViewLink  string `json:"journalWebViewLink"`
	CredentialsNote     string `json:"credentialsNote"`

	Verdict DefenseVerdict `json:"verdict"`
}

// Complete reports whether both final-stage manuscript versions are present.
func (c Capstone4Content) Complete() bool {
	return c.AcademicFileID != "" && c.JournalFileID != ""
}

// Project is the top-level capstone entity. Its Status field is owned by
// the lifecycle engine; CapstonePhase is monotonic non-decreasing.
type Project struct {
	gorm.Model
	Title         string        `gorm:"type:varchar(256);not null;comment:project title"`
	Status        ProjectStatus `gorm:"type:varchar(32);not null;comment:lifecycle status"`
	CapstonePhase int           `gorm:"not null;default:1;comment:capstone phase (1-4), monotonic"`

	AdviserID *uint `gorm:"comment:assigned adviser, null until assigned"`
	Adviser   *User `gorm:"foreignKey:AdviserID"`
	TeamID    uint  `gorm:"uniqueIndex;not null;comment:owning team, one project per team"`
	Team      Team  `gorm:"foreignKey:TeamID"`

	Proposal datatypes.JSONType[ProposalContent] `gorm:"comment:authored proposal content"`

	// Current primary submission pointer; Drive references are opaque.
	DocumentFileID      string `gorm:"type:varchar(128);comment:primary document file ID"`
	DocumentWebViewLink string `gorm:"type:varchar(512);comment:primary document view link"`

	PlagiarismStatus    PlagiarismStatus `gorm:"type:varchar(32);not null;default:none;comment:similarity check status"`
	PlagiarismScore     *float64         `gorm:"comment:similarity score, percent"`
	PlagiarismCheckedAt *time.Time       `gorm:"comment:when the similarity result arrived"`

	Capstone4 datatypes.JSONType[Capstone4Content] `gorm:"comment:final-stage artifacts"`

	Members []ProjectMember
}

// ProjectMember is the member snapshot taken from the locked team when
// the project is created. Team dissolution after the fact does not
// change project membership.
type ProjectMember struct {
	gorm.Model
	ProjectID uint `gorm:"uniqueIndex:idx_project_user;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_project_user;not null"`
	User      User `gorm:"foreignKey:UserID"`
}

// HasMember reports membership on a preloaded project.
func (p *Project) HasMember(userID uint) bool {
	for i := range p.Members {
		if p.Members[i].UserID == userID {
			return true
		}
	}
	return false
}

// IsAdviser reports whether userID is the assigned adviser.
func (p *Project) IsAdviser(userID uint) bool {
	return p.AdviserID != nil && *p.AdviserID == userID
}
