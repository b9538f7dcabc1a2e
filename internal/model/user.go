package model

import (
	"time"
)

type UserRole string

const (
	Student    UserRole = "student"
	Admin      UserRole = "admin"
	SuperAdmin UserRole = "superadmin"
)

// swagger:model User
type User struct {
	BaseModel
	Name      string     `gorm:"size:100;not null" json:"name"`
	Email     string     `gorm:"size:100;unique;not null" json:"email"`
	Password  string     `gorm:"size:100;not null" json:"-"`
	Role      UserRole   `gorm:"size:20;default:'student'" json:"role"`
	Avatar    string     `gorm:"size:255" json:"avatar"`
	Disabled  bool       `gorm:"default:false" json:"disabled"`
	LastLogin *time.Time `json:"last_login"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin 管理员与超级管理员均视为管理端身份
func (r UserRole) IsAdmin() bool {
	return r == Admin || r == SuperAdmin
}
