package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`              // 主键
	Email        string         `gorm:"uniqueIndex;not null" json:"email"` // 邮箱
	FullName     string         `gorm:"default:''" json:"full_name"`       // 姓名
	PasswordHash string         `gorm:"not null" json:"-"`                 // 密码哈希（不返回给前端）
	Status       string         `gorm:"default:'disabled'" json:"status"`  // 账号状态（disabled 表示未激活）
	TokenVersion uint64         `gorm:"not null;default:0" json:"-"`       // Token 版本（改密后全量失效）
	ActivatedAt  *time.Time     `gorm:"index" json:"activated_at"`         // 激活时间
	LastLoginAt  *time.Time     `json:"last_login_at"`                     // 最后登录时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`           // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`           // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                    // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// IsActive 账号是否已激活可用
func (u *User) IsActive() bool {
	return u.Status == "active"
}
