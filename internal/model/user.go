package model

import "time"

// User is a dashboard account.
type User struct {
	ID           uint      `gorm:"column:USER_ID;primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"column:USERNAME;size:64;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"column:EMAIL;size:128;not null;uniqueIndex" json:"email"`
	DisplayName  string    `gorm:"column:DISPLAY_NAME;size:128" json:"display_name"`
	PasswordHash string    `gorm:"column:PASSWORD_HASH;size:255;not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:CREATED_AT" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:UPDATED_AT" json:"updated_at"`
}

func (User) TableName() string {
	return "DASHBOARD_USERS"
}
