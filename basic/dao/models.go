// Package dao 关系型数据库中的群、用户与功能开关记录
package dao

import (
	"fmt"

	"gorm.io/gorm"
)

type UserSetting struct {
	ID         int64 `gorm:"primaryKey;autoIncrement:false"`
	Permission int   // 权限等级
}

type GroupSetting struct {
	ID         int64 `gorm:"primaryKey;autoIncrement:false"`
	Permission int
	BotEnabled bool // 是否在此群中响应
}

// CapabilityState 插件/任务的开关状态
type CapabilityState struct {
	Kind           string `gorm:"primaryKey;size:16"`  // plugin 或 task
	ID             string `gorm:"primaryKey;size:128"` // 插件/任务ID
	GlobalEnabled  bool
	EnabledGroups  string `gorm:"size:4096"` // 被单独开启的群 "|群号|群号|"
	DisabledGroups string `gorm:"size:4096"` // 被单独关闭的群
}

// Migrate 初始化各表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserSetting{}, &GroupSetting{}, &CapabilityState{}); err != nil {
		return fmt.Errorf("初始化基本数据库失败: %w", err)
	}
	return nil
}
