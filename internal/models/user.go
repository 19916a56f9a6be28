package models

import (
	"time"
)

// User - пользователь системы
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:150;not null" json:"username"` // логин, не меняется после создания
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         Role      `gorm:"size:20;default:'client'" json:"role"` // client, service, manager
	Company      *string   `gorm:"size:255" json:"company"`              // название компании (для сервисных организаций)
	Phone        *string   `gorm:"size:20" json:"phone"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
