package model

import (
	"gorm.io/gorm"
)

// User is the basic entity of the system
type User struct {
	gorm.Model
	Name     string     `gorm:"uniqueIndex;type:varchar(32);not null;comment:username"`
	Nickname *string    `gorm:"type:varchar(64);comment:display name"`
	Email    *string    `gorm:"uniqueIndex;type:varchar(128);comment:email address"`
	Password *string    `gorm:"type:varchar(128);comment:bcrypt hash, empty for LDAP accounts"`
	Role     Role       `gorm:"not null;comment:platform role (student, adviser, panelist, coordinator)"`
	Status   UserStatus `gorm:"type:varchar(32);not null;comment:account status (active, inactive)"`
}

// UserInfo is the minimal public projection of a user.
type UserInfo struct {
	ID       uint    `json:"id"`
	Username string  `json:"username"`
	Nickname *string `json:"nickname"`
}

func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Username: u.Name, Nickname: u.Nickname}
}
