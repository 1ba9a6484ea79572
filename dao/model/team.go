package model

import (
	"time"

	"gorm.io/gorm"
)

// Team is the unit of capstone membership. A team is created in forming
// state and must be locked before its members can start a project.
// Teams are never physically deleted; dissolution is a status.
type Team struct {
	gorm.Model
	Name     string     `gorm:"type:varchar(64);not null;comment:team name"`
	Status   TeamStatus `gorm:"type:varchar(32);not null;comment:team status (forming, locked, dissolved)"`
	LeaderID uint       `gorm:"not null;comment:leader user ID"`
	Leader   User       `gorm:"foreignKey:LeaderID"`
	MaxSize  int        `gorm:"not null;comment:maximum accepted members"`

	Memberships []TeamMembership
}

// TeamMembership records one user's relation to a team. A pending
// membership is an open invitation; it is resolved exactly once to
// accepted or declined by the invited user.
type TeamMembership struct {
	gorm.Model
	TeamID      uint             `gorm:"uniqueIndex:idx_team_user;not null"`
	Team        Team             `gorm:"foreignKey:TeamID"`
	UserID      uint             `gorm:"uniqueIndex:idx_team_user;not null"`
	User        User             `gorm:"foreignKey:UserID"`
	Role        MembershipRole   `gorm:"type:varchar(32);not null;comment:role in team (leader, member)"`
	Status      MembershipStatus `gorm:"type:varchar(32);not null;comment:membership status (pending, accepted, declined)"`
	InvitedByID uint             `gorm:"comment:inviting user ID, zero for the founding leader"`
	RespondedAt *time.Time       `gorm:"comment:when the invitation was resolved"`
}

// AcceptedCount counts accepted memberships on a preloaded team.
func (t *Team) AcceptedCount() int {
	n := 0
	for i := range t.Memberships {
		if t.Memberships[i].Status == MembershipStatusAccepted {
			n++
		}
	}
	return n
}
